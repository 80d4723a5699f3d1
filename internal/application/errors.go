package application

import "errors"

// ErrUpstream marks failures of an external service (price API, aggregator, wallet RPC).
var ErrUpstream = errors.New("upstream failure")
