package application

import (
	"context"
	"testing"
	"time"

	"marketsync-service/internal/domain"

	"github.com/stretchr/testify/require"
)

const otherWallet = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"

func TestWalletSession_RestoreWithoutPrompt(t *testing.T) {
	w := &fakeWallet{accounts: []string{"0x52908400098527886e0f7030069857d2e4169ee7"}}
	s := NewWalletSession(w)

	addr, err := s.Restore(context.Background())
	require.NoError(t, err)
	require.Equal(t, testWallet, addr)
	require.Equal(t, testWallet, s.Address())
}

func TestWalletSession_RestoreNoAccounts(t *testing.T) {
	s := NewWalletSession(&fakeWallet{})
	addr, err := s.Restore(context.Background())
	require.NoError(t, err)
	require.Empty(t, addr)
}

func TestWalletSession_Connect(t *testing.T) {
	w := &fakeWallet{requested: []string{"garbage", testWallet}}
	s := NewWalletSession(w)

	addr, err := s.Connect(context.Background())
	require.NoError(t, err)
	require.Equal(t, testWallet, addr)

	s.Disconnect()
	require.Empty(t, s.Address())
}

func TestWalletSession_ConnectErrors(t *testing.T) {
	s := NewWalletSession(&fakeWallet{})
	_, err := s.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrWalletNotConnected)

	s = NewWalletSession(&fakeWallet{accErr: errBoom})
	_, err = s.Connect(context.Background())
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, errBoom)

	s = NewWalletSession(nil)
	_, err = s.Connect(context.Background())
	require.Error(t, err)
}

func TestWalletSession_WatchReportsSwitches(t *testing.T) {
	w := &fakeWallet{accounts: []string{testWallet}}
	s := NewWalletSession(w)
	_, err := s.Restore(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changes := s.Watch(ctx, 5*time.Millisecond)

	w.setAccounts([]string{otherWallet})
	select {
	case ch := <-changes:
		require.Equal(t, testWallet, ch.Previous)
		require.Equal(t, otherWallet, ch.Current)
	case <-time.After(time.Second):
		t.Fatal("no account change reported")
	}

	w.setAccounts(nil)
	select {
	case ch := <-changes:
		require.Equal(t, otherWallet, ch.Previous)
		require.Empty(t, ch.Current)
	case <-time.After(time.Second):
		t.Fatal("no disconnect reported")
	}
	require.Empty(t, s.Address())

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-changes:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestWalletSession_WatchWithoutProvider(t *testing.T) {
	s := NewWalletSession(nil)
	_, open := <-s.Watch(context.Background(), time.Millisecond)
	require.False(t, open)
}
