package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"marketsync-service/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type AccountChange struct {
	Previous string
	Current  string
	At       time.Time
}

// WalletSession tracks the account exposed by the wallet provider.
type WalletSession struct {
	provider WalletProvider
	deps

	mu      sync.RWMutex
	address string
}

func NewWalletSession(provider WalletProvider, opts ...Option) *WalletSession {
	return &WalletSession{provider: provider, deps: buildDeps(opts)}
}

// Restore picks up an already authorised account without prompting (eth_accounts).
func (s *WalletSession) Restore(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", errNoWalletProvider
	}
	accounts, err := s.provider.Accounts(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: eth_accounts: %w", ErrUpstream, err)
	}
	addr := firstAccount(accounts)
	s.set(addr)
	return addr, nil
}

// Connect asks the provider to authorise an account (eth_requestAccounts).
func (s *WalletSession) Connect(ctx context.Context) (string, error) {
	if s.provider == nil {
		return "", errNoWalletProvider
	}
	accounts, err := s.provider.RequestAccounts(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: eth_requestAccounts: %w", ErrUpstream, err)
	}
	addr := firstAccount(accounts)
	if addr == "" {
		return "", domain.ErrWalletNotConnected
	}
	s.set(addr)
	s.log.Info("wallet.connected", zap.String("address", addr))
	return addr, nil
}

func (s *WalletSession) Disconnect() {
	s.set("")
	s.log.Info("wallet.disconnected")
}

func (s *WalletSession) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

func (s *WalletSession) set(addr string) (prev string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, s.address = s.address, addr
	return prev
}

// Watch polls eth_accounts and reports account switches and disconnects.
// The returned channel is closed when ctx is done.
func (s *WalletSession) Watch(ctx context.Context, every time.Duration) <-chan AccountChange {
	out := make(chan AccountChange, 1)
	if s.provider == nil {
		close(out)
		return out
	}
	if every <= 0 {
		every = 2 * time.Second
	}
	go func() {
		defer close(out)
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			accounts, err := s.provider.Accounts(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.log.Warn("wallet.watch_failed", zap.Error(err))
				}
				continue
			}
			cur := firstAccount(accounts)
			prev := s.set(cur)
			if strings.EqualFold(prev, cur) {
				continue
			}
			s.log.Info("wallet.accounts_changed", zap.String("previous", prev), zap.String("current", cur))
			select {
			case out <- AccountChange{Previous: prev, Current: cur, At: s.clock.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func firstAccount(accounts []string) string {
	for _, a := range accounts {
		if common.IsHexAddress(a) {
			return common.HexToAddress(a).Hex()
		}
	}
	return ""
}
