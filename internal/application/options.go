package application

import (
	"time"

	"go.uber.org/zap"
)

type deps struct {
	log     *zap.Logger
	clock   Clock
	metrics Metrics
	idgen   IDGen

	// quoteTTL bounds how old a displayed quote may be when a swap reuses it.
	quoteTTL time.Duration
}

type Option func(*deps)

func WithLogger(l *zap.Logger) Option { return func(d *deps) { d.log = l } }
func WithClock(c Clock) Option        { return func(d *deps) { d.clock = c } }
func WithMetrics(m Metrics) Option    { return func(d *deps) { d.metrics = m } }
func WithIDGen(g IDGen) Option        { return func(d *deps) { d.idgen = g } }

func WithQuoteTTL(ttl time.Duration) Option { return func(d *deps) { d.quoteTTL = ttl } }

func buildDeps(opts []Option) deps {
	var d deps
	for _, opt := range opts {
		opt(&d)
	}
	if d.log == nil {
		d.log = zap.NewNop()
	}
	if d.clock == nil {
		d.clock = realClock{}
	}
	if d.metrics == nil {
		d.metrics = NoopMetrics{}
	}
	if d.idgen == nil {
		d.idgen = defaultIDGen{}
	}
	if d.quoteTTL <= 0 {
		d.quoteTTL = DefaultQuoteTTL
	}
	return d
}
