package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Naem-ali/AIOPS/internal/config"
	"github.com/Naem-ali/AIOPS/internal/promapi"
	"github.com/Naem-ali/AIOPS/internal/stats"
)

// Poller states.
const (
	StateIdle    = "idle"
	StateRunning = "running"
	StatePaused  = "paused"
	StateStopped = "stopped"
)

// interQueryDelay is the pacing sleep between catalog queries within one
// cycle, so a large catalog does not hammer the backend.
const interQueryDelay = 100 * time.Millisecond

// subBufSize is the per-subscriber snapshot buffer depth.
const subBufSize = 4

// Poller drives repeated poll cycles: every catalog query is fetched, parsed,
// grouped, and classified, and exactly one Snapshot per completed cycle is
// fanned out to subscribers. At most one cycle runs at a time, so snapshots
// are never interleaved or emitted out of order.
//
// All exported methods are safe for concurrent use.
type Poller struct {
	client  *promapi.Client
	catalog []config.Query

	// queryDelay is the inter-query pacing sleep. Overridable in tests so
	// cycles complete without real waits.
	queryDelay time.Duration

	mu         sync.Mutex
	state      string
	interval   time.Duration
	classifier *stats.Classifier
	subs       []chan *Snapshot
	latest     *Snapshot
	cancel     context.CancelFunc
	resume     chan struct{}
}

// New creates an idle Poller. The catalog is fixed for the Poller's lifetime;
// interval and classifier may be swapped at runtime via Apply or SetInterval.
func New(client *promapi.Client, catalog []config.Query, classifier *stats.Classifier, interval time.Duration) *Poller {
	return &Poller{
		client:     client,
		catalog:    catalog,
		queryDelay: interQueryDelay,
		state:      StateIdle,
		interval:   config.ClampInterval(interval),
		classifier: classifier,
	}
}

// Start moves the Poller from idle to running and launches the cycle loop in
// its own goroutine. The first cycle fires immediately — no initial interval
// sleep. Start is a no-op unless the Poller is idle.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StateRunning

	go p.run(runCtx)
}

// Pause stops scheduling new cycles. An in-flight cycle is not cancelled and
// its snapshot is still emitted. No-op unless running.
func (p *Poller) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateRunning {
		return
	}
	p.state = StatePaused
	p.resume = make(chan struct{})
	slog.Info("poller: paused")
}

// Resume restarts cycle scheduling after a Pause. No-op unless paused.
func (p *Poller) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePaused {
		return
	}
	p.state = StateRunning
	close(p.resume)
	p.resume = nil
	slog.Info("poller: resumed")
}

// Stop cancels the loop. Any in-flight request or sleep is interrupted and
// the partial cycle's snapshot is discarded — Stop never waits out a backoff
// or interval sleep. The Poller reaches the stopped state shortly after.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.state {
	case StateIdle:
		p.state = StateStopped
	case StateRunning, StatePaused:
		p.cancel()
	}
}

// State returns the current state: idle | running | paused | stopped.
func (p *Poller) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Interval returns the refresh interval currently in effect.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// SetInterval updates the refresh interval, clamped to [5s, 60s]. It takes
// effect at the next end-of-cycle sleep, not retroactively.
func (p *Poller) SetInterval(d time.Duration) {
	d = config.ClampInterval(d)
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
	slog.Info("poller: interval updated", "interval", d)
}

// Apply installs the hot-reloadable config subset: refresh interval and
// threshold overrides. The catalog is fixed at startup and left untouched.
func (p *Poller) Apply(cfg *config.Config) {
	p.SetInterval(cfg.RefreshInterval)
	p.mu.Lock()
	p.classifier = stats.NewClassifier(cfg.Thresholds)
	p.mu.Unlock()
}

// Subscribe registers a new snapshot subscriber. Delivery is non-blocking:
// when a subscriber's buffer is full the oldest snapshot is evicted, so a
// slow consumer can never stall the loop.
func (p *Poller) Subscribe() <-chan *Snapshot {
	ch := make(chan *Snapshot, subBufSize)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Latest returns the most recently emitted snapshot, if any. This is the
// poll-able alternative to Subscribe for consumers without an event loop.
func (p *Poller) Latest() (*Snapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.latest != nil
}

// run is the cycle loop. It exits only when ctx is cancelled, marking the
// Poller stopped on the way out.
func (p *Poller) run(ctx context.Context) {
	defer p.setStopped()

	for {
		if ch := p.pauseGate(); ch != nil {
			select {
			case <-ctx.Done():
				return
			case <-ch:
			}
		}

		snap, ok := p.cycle(ctx)
		if !ok {
			// Cancelled mid-cycle — the partial snapshot is never emitted.
			return
		}
		p.publish(snap)

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.Interval()):
		}
	}
}

// cycle executes one full pass over the catalog. It returns ok=false only on
// cancellation; query failures degrade to an empty metric entry plus an
// Errors note, never aborting the pass.
func (p *Poller) cycle(ctx context.Context) (*Snapshot, bool) {
	p.mu.Lock()
	classifier := p.classifier
	p.mu.Unlock()

	snap := &Snapshot{
		Taken:   time.Now().UTC(),
		Names:   make([]string, 0, len(p.catalog)),
		Metrics: make(map[string][]Series, len(p.catalog)),
		Errors:  make(map[string]string),
	}

	for i, q := range p.catalog {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, false
			case <-time.After(p.queryDelay):
			}
		}

		snap.Names = append(snap.Names, q.Name)
		snap.Metrics[q.Name] = []Series{}

		res, err := p.client.Query(ctx, q.Expr)
		if ctx.Err() != nil {
			return nil, false
		}
		if err != nil {
			slog.Warn("poller: query failed", "metric", q.Name, "err", err)
			snap.Errors[q.Name] = err.Error()
			continue
		}

		samples, skipped := promapi.Parse(res)
		if skipped > 0 {
			slog.Warn("poller: malformed samples skipped",
				"metric", q.Name, "skipped", skipped)
		}

		series := make([]Series, 0, len(samples))
		for _, g := range stats.GroupBy(samples, q.GroupBy) {
			st := stats.Compute(g)
			series = append(series, Series{
				Group:    g,
				Stat:     st,
				Severity: classifier.Classify(q.Name, st.Latest),
			})
		}
		snap.Metrics[q.Name] = series
	}

	return snap, true
}

// publish records snap as the latest snapshot and fans it out.
func (p *Poller) publish(snap *Snapshot) {
	p.mu.Lock()
	p.latest = snap
	subs := make([]chan *Snapshot, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- snap:
		default:
			// Buffer full — drop the oldest snapshot, keep the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	slog.Debug("poller: snapshot emitted",
		"metrics", len(snap.Metrics), "errors", len(snap.Errors))
}

// pauseGate returns the channel to wait on when paused, or nil when running.
func (p *Poller) pauseGate() chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePaused {
		return p.resume
	}
	return nil
}

func (p *Poller) setStopped() {
	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
	slog.Info("poller: stopped")
}
