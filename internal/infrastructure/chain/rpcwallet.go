package chain

import (
	"context"
	"fmt"
	"math/big"

	"marketsync-service/internal/application"
	"marketsync-service/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// RPCWallet exposes an EIP-1193 style provider reachable over JSON-RPC.
type RPCWallet struct {
	c   *rpc.Client
	Log *zap.Logger
}

var _ application.WalletProvider = (*RPCWallet)(nil)

func Dial(ctx context.Context, url string, log *zap.Logger) (*RPCWallet, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RPCWallet{c: c, Log: log}, nil
}

func (w *RPCWallet) Close() { w.c.Close() }

func (w *RPCWallet) Accounts(ctx context.Context) ([]string, error) {
	return w.accounts(ctx, "eth_accounts")
}

func (w *RPCWallet) RequestAccounts(ctx context.Context) ([]string, error) {
	return w.accounts(ctx, "eth_requestAccounts")
}

func (w *RPCWallet) accounts(ctx context.Context, method string) ([]string, error) {
	var out []common.Address
	if err := w.c.CallContext(ctx, &out, method); err != nil {
		w.Log.Warn("rpc.call_failed", zap.String("method", method), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	accts := make([]string, 0, len(out))
	for _, a := range out {
		accts = append(accts, a.Hex())
	}
	return accts, nil
}

// Balance returns the latest native balance in wei.
func (w *RPCWallet) Balance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}
	var out hexutil.Big
	if err := w.c.CallContext(ctx, &out, "eth_getBalance", common.HexToAddress(address), "latest"); err != nil {
		w.Log.Warn("rpc.call_failed", zap.String("method", "eth_getBalance"), zap.Error(err))
		return nil, fmt.Errorf("eth_getBalance: %w", err)
	}
	return out.ToInt(), nil
}
