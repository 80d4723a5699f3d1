package application

import "marketsync-service/internal/domain"

// Metrics receives component events. The prometheus adapter lives in infrastructure/metrics.
type Metrics interface {
	PollCompleted(err error)
	QuoteServed(kind domain.QuoteKind)
	BalanceServed(source domain.BalanceSource)
}

type NoopMetrics struct{}

func (NoopMetrics) PollCompleted(error)                {}
func (NoopMetrics) QuoteServed(domain.QuoteKind)       {}
func (NoopMetrics) BalanceServed(domain.BalanceSource) {}
