package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/uhyunpark/bookwatch/pkg/market"
	"github.com/uhyunpark/bookwatch/pkg/metrics"
	"github.com/uhyunpark/bookwatch/pkg/store"
	"github.com/uhyunpark/bookwatch/pkg/util"
)

const DefaultInterval = 1000 * time.Millisecond

// ErrStopped is returned by Refresh once the poller has been stopped.
var ErrStopped = errors.New("poller stopped")

// Source is the read side of the matching service API.
type Source interface {
	FetchBook(ctx context.Context) (market.OrderBook, error)
	FetchTrades(ctx context.Context) ([]market.Trade, error)
	FetchBestPrices(ctx context.Context) (market.BestPrices, error)
}

// Poller refreshes the store on a fixed cadence. Every cycle gets the next
// sequence number and the store drops results older than what it already
// holds, so a slow cycle can never overwrite a newer one. Cycles are not
// serialized: the timer re-arms as soon as a cycle is launched.
type Poller struct {
	Source   Source
	Store    *store.Store
	Clock    util.Clock
	Interval time.Duration

	Logger  *zap.SugaredLogger
	Metrics *metrics.Metrics

	seq atomic.Uint64

	mu      sync.Mutex // guards the fields below and every delivery to Store
	running bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	loop    chan struct{}
	cycles  sync.WaitGroup
}

func New(src Source, st *store.Store, clock util.Clock, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		Source:   src,
		Store:    st,
		Clock:    clock,
		Interval: interval,
		Logger:   zap.NewNop().Sugar(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs one cycle immediately and then one per Interval until Stop or
// until parent is done. Start on a running or stopped poller is a no-op.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running || p.stopped {
		return
	}
	p.running = true
	p.loop = make(chan struct{})

	go func() {
		select {
		case <-parent.Done():
			p.Stop()
		case <-p.ctx.Done():
		}
	}()
	go p.run()

	p.Logger.Infow("poller_started", "interval_ms", p.Interval.Milliseconds())
}

func (p *Poller) run() {
	defer close(p.loop)
	for {
		if !p.launch() {
			return
		}
		select {
		case <-p.ctx.Done():
			return
		case <-p.Clock.After(p.Interval):
		}
	}
}

// launch starts one background cycle unless the poller is stopping.
func (p *Poller) launch() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	seq := p.seq.Add(1)
	p.cycles.Add(1)
	go func() {
		defer p.cycles.Done()
		if err := p.cycle(p.ctx, seq); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrStopped) {
			p.Logger.Warnw("poll_cycle_failed", "seq", seq, "err", err)
		}
	}()
	return true
}

// Refresh runs one cycle outside the schedule and waits for it. It shares the
// sequence counter with scheduled cycles.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	seq := p.seq.Add(1)
	p.cycles.Add(1)
	p.mu.Unlock()
	defer p.cycles.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	return p.cycle(ctx, seq)
}

// Stop cancels the timer and every in-flight cycle and waits for them to
// unwind. Once Stop returns no read is issued and nothing reaches the store.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cancel()
	loop := p.loop
	p.mu.Unlock()

	if loop != nil {
		<-loop
	}
	p.cycles.Wait()
	p.Logger.Infow("poller_stopped", "last_seq", p.Store.LastSeq())
}

// Seq returns the sequence number handed to the most recent cycle.
func (p *Poller) Seq() uint64 { return p.seq.Load() }

func (p *Poller) cycle(ctx context.Context, seq uint64) error {
	p.Metrics.Cycle(metrics.CycleStarted)

	var (
		book   market.OrderBook
		trades []market.Trade
		prices market.BestPrices
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		book, err = p.Source.FetchBook(gctx)
		return err
	})
	g.Go(func() (err error) {
		trades, err = p.Source.FetchTrades(gctx)
		return err
	})
	g.Go(func() (err error) {
		prices, err = p.Source.FetchBestPrices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		p.Metrics.Cycle(metrics.CycleFailed)
		return err
	}

	return p.deliver(seq, book, trades, prices)
}

func (p *Poller) deliver(seq uint64, book market.OrderBook, trades []market.Trade, prices market.BestPrices) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		p.Metrics.Cycle(metrics.CycleDiscarded)
		return ErrStopped
	}
	if !p.Store.Apply(seq, book, trades, prices) {
		p.Metrics.Cycle(metrics.CycleStale)
		p.Logger.Debugw("poll_cycle_stale", "seq", seq, "applied_seq", p.Store.LastSeq())
		return nil
	}
	p.Metrics.Applied(seq)
	return nil
}
