package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"marketsync-service/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const DefaultPollInterval = 30 * time.Second

const fetchKey = "prices"

type PollerState struct {
	Snapshot      domain.PriceSnapshot
	IsLoading     bool
	LastError     error
	LastUpdatedAt time.Time
}

// PricePoller keeps the latest price snapshot for a fixed set of assets.
// At most one fetch is in flight per poller; overlapping triggers join it.
type PricePoller struct {
	source   PriceSource
	ids      []string
	interval time.Duration
	deps

	sf singleflight.Group

	mu      sync.RWMutex
	state   PollerState
	running bool
	stopped bool
	life    context.Context
	cancel  context.CancelFunc
	subs    map[int]chan domain.PriceSnapshot
	nextSub int
}

func NewPricePoller(source PriceSource, ids []string, interval time.Duration, opts ...Option) *PricePoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	seen := make(map[string]bool, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		uniq = append(uniq, id)
	}
	return &PricePoller{
		source:   source,
		ids:      uniq,
		interval: interval,
		deps:     buildDeps(opts),
		subs:     map[int]chan domain.PriceSnapshot{},
	}
}

// Seed installs a previously persisted snapshot before the first fetch.
func (p *PricePoller) Seed(snap domain.PriceSnapshot, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Snapshot.IsZero() {
		p.state.Snapshot = snap
		p.state.LastUpdatedAt = at
	}
}

func (p *PricePoller) Interval() time.Duration { return p.interval }

func (p *PricePoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return domain.ErrPollerStopped
	}
	if p.running {
		return domain.ErrPollerRunning
	}
	p.life, p.cancel = context.WithCancel(ctx)
	p.running = true
	go p.loop(p.life)
	return nil
}

// Run starts the poller and blocks until ctx is done or Stop is called.
// The poller is always stopped on return.
func (p *PricePoller) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	defer p.Stop()
	p.mu.RLock()
	life := p.life
	p.mu.RUnlock()
	<-life.Done()
	return nil
}

// Stop cancels the periodic task and any in-flight fetch. Results that arrive later are dropped.
func (p *PricePoller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.state.IsLoading = false
	cancel := p.cancel
	for id, ch := range p.subs {
		close(ch)
		delete(p.subs, id)
	}
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.log.Info("price_poller.stopped")
}

func (p *PricePoller) loop(ctx context.Context) {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	p.log.Info("price_poller.started", zap.Strings("ids", p.ids), zap.Duration("interval", p.interval))
	p.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.trigger(ctx)
		}
	}
}

func (p *PricePoller) trigger(ctx context.Context) {
	_, _, _ = p.sf.Do(fetchKey, func() (any, error) {
		return nil, p.fetch(ctx)
	})
}

// RefetchNow fetches immediately, or waits for the fetch already in flight.
func (p *PricePoller) RefetchNow(ctx context.Context) error {
	p.mu.RLock()
	stopped, life := p.stopped, p.life
	p.mu.RUnlock()
	if stopped {
		return domain.ErrPollerStopped
	}
	if life == nil {
		life = ctx
	}
	ch := p.sf.DoChan(fetchKey, func() (any, error) {
		return nil, p.fetch(life)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		return r.Err
	}
}

func (p *PricePoller) fetch(ctx context.Context) error {
	if len(p.ids) == 0 {
		return nil
	}
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return domain.ErrPollerStopped
	}
	p.state.IsLoading = true
	p.mu.Unlock()

	prices, err := p.source.SimplePrices(ctx, p.ids)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return domain.ErrPollerStopped
	}
	p.state.IsLoading = false
	p.metrics.PollCompleted(err)
	if err != nil {
		p.state.LastError = err
		if !errors.Is(err, context.Canceled) {
			p.log.Warn("price_poll.failed", zap.Error(err), zap.Bool("has_snapshot", !p.state.Snapshot.IsZero()))
		}
		return err
	}
	snap := domain.NewPriceSnapshot(prices)
	p.state.Snapshot = snap
	p.state.LastError = nil
	p.state.LastUpdatedAt = p.clock.Now()
	p.publish(snap)
	p.log.Debug("price_poll.success", zap.Int("assets", snap.Len()))
	return nil
}

// publish must be called with p.mu held. Slow subscribers only ever see the newest snapshot.
func (p *PricePoller) publish(snap domain.PriceSnapshot) {
	for _, ch := range p.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (p *PricePoller) State() PollerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe delivers every snapshot produced after the call. The channel is closed on Stop or cancel.
func (p *PricePoller) Subscribe() (<-chan domain.PriceSnapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan domain.PriceSnapshot, 1)
	if p.stopped {
		close(ch)
		return ch, func() {}
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}
