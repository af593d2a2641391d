package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"roomchat/models"
)

const (
	// DefaultPollInterval is the fixed delta-fetch cadence.
	DefaultPollInterval = 2 * time.Second
	// DefaultFetchTimeout bounds one delta fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// Fetcher retrieves the delta for a room past a watermark. *network.Client
// satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, roomID string, lastUpdate int64) (*models.GetResponse, error)
}

// PollerOptions tunes a Poller. The zero value gives defaults.
type PollerOptions struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	// Visible suppresses ticks while it returns false, mirroring a hidden
	// browser tab. Nil means always visible.
	Visible func() bool
	Logger  *log.Logger
}

func (o PollerOptions) withDefaults() PollerOptions {
	out := o
	if out.Interval <= 0 {
		out.Interval = DefaultPollInterval
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = DefaultFetchTimeout
	}
	if out.Logger == nil {
		out.Logger = log.Default()
	}
	return out
}

// Poller drives the reconciliation loop: one worker goroutine runs
// fetch-and-apply cycles on a fixed ticker. At most one cycle is in flight
// at a time; ticks arriving while a cycle runs are dropped, not queued, so
// the effective cadence degrades gracefully on slow networks.
type Poller struct {
	session    *Session
	fetcher    Fetcher
	reconciler *Reconciler

	interval     time.Duration
	fetchTimeout time.Duration
	visible      func() bool
	logger       *log.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPoller builds a poller for one room session.
func NewPoller(session *Session, fetcher Fetcher, reconciler *Reconciler, opts PollerOptions) *Poller {
	o := opts.withDefaults()
	return &Poller{
		session:      session,
		fetcher:      fetcher,
		reconciler:   reconciler,
		interval:     o.Interval,
		fetchTimeout: o.FetchTimeout,
		visible:      o.Visible,
		logger:       o.Logger,
		stop:         make(chan struct{}),
	}
}

// Start launches the polling worker.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.run()
}

// Stop halts the ticker and waits for the worker to exit. A fetch racing the
// stop is not aborted; its result is discarded on return. Stop is
// idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}

// Poll runs one fetch-and-apply cycle immediately. Used for the initial
// backlog fetch at join time; per-cycle errors are returned to the caller
// instead of logged.
func (p *Poller) Poll(ctx context.Context) error {
	delta, err := p.fetcher.Fetch(ctx, p.session.RoomID, p.reconciler.Watermark())
	if err != nil {
		return err
	}
	p.reconciler.ApplyDelta(delta)
	return nil
}

func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			if p.visible != nil && !p.visible() {
				continue
			}
			p.tick()
		}
	}
}

// tick runs one cycle synchronously on the worker goroutine. Running cycles
// inline is what enforces the depth-one gate: ticker ticks that fire while a
// cycle is still executing are dropped by the ticker channel.
func (p *Poller) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), p.fetchTimeout)
	defer cancel()

	delta, err := p.fetcher.Fetch(ctx, p.session.RoomID, p.reconciler.Watermark())
	if err != nil {
		select {
		case <-p.stop:
		default:
			p.logger.Printf("poll room %s: %v", p.session.RoomID, err)
		}
		return
	}

	select {
	case <-p.stop:
		// Result of a fetch racing a stop; no further view mutation.
		return
	default:
	}

	p.reconciler.ApplyDelta(delta)
}
