package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrMissingInput        = errors.New("missing input")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrUnsupportedAsset    = errors.New("unsupported asset")
	ErrInvalidAddress      = errors.New("invalid wallet address")
	ErrWalletNotConnected  = errors.New("wallet not connected")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoQuote             = errors.New("no quote available")
	ErrPollerRunning       = errors.New("poller already running")
	ErrPollerStopped       = errors.New("poller stopped")
)
