package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Naem-ali/AIOPS/internal/config"
	"github.com/Naem-ali/AIOPS/internal/poller"
	"github.com/Naem-ali/AIOPS/internal/stats"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
)

// Alert represents a single alert event produced by snapshot evaluation.
type Alert struct {
	ID         string     `json:"id"`
	Metric     string     `json:"metric"`
	GroupKey   string     `json:"group_key"`
	Value      float64    `json:"value"`
	Message    string     `json:"message"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"` // "firing" | "resolved"
}

// Notifier watches snapshots for series groups in the critical bucket and
// delivers webhook notifications when one enters or leaves it. One alert is
// tracked per (metric, groupKey), with a cooldown suppressing re-fires.
//
// Notifier is safe for concurrent use.
type Notifier struct {
	webhooks []config.Webhook
	cooldown time.Duration

	mu       sync.Mutex
	active   map[string]*Alert    // key: "metric:groupKey"
	lastFire map[string]time.Time // last fire time per key
	history  []*Alert             // recently resolved alerts
	client   *http.Client
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Notifier delivering to the given webhook targets.
// A Notifier with no webhooks is valid — alerts are still tracked and
// exposed via Active, only delivery becomes a no-op.
func New(webhooks []config.Webhook) *Notifier {
	return &Notifier{
		webhooks: webhooks,
		cooldown: defaultCooldown,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
	}
}

// SetWebhooks swaps the delivery targets (config hot-reload).
func (n *Notifier) SetWebhooks(webhooks []config.Webhook) {
	n.mu.Lock()
	n.webhooks = webhooks
	n.mu.Unlock()
}

// Evaluate inspects every series in snap. Groups classified critical fire an
// alert (cooldown permitting); previously-firing groups that are no longer
// critical resolve. Webhook delivery happens asynchronously.
func (n *Notifier) Evaluate(snap *poller.Snapshot) {
	now := n.now()
	seen := make(map[string]bool)

	for _, name := range snap.Names {
		for _, s := range snap.Metrics[name] {
			key := name + ":" + s.Group.Key
			if s.Severity == stats.SeverityCritical {
				seen[key] = true
				n.fire(key, name, s.Group.Key, s.Stat.Latest, now)
			}
		}
	}

	n.resolveMissing(seen, now)
}

// Active returns copies of all currently firing alerts plus alerts resolved
// within the past hour, in unspecified order.
func (n *Notifier) Active() []*Alert {
	n.mu.Lock()
	defer n.mu.Unlock()

	cutoff := n.now().Add(-time.Hour)
	out := make([]*Alert, 0, len(n.active))
	for _, a := range n.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range n.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

func (n *Notifier) fire(key, metric, groupKey string, value float64, now time.Time) {
	n.mu.Lock()

	if _, firing := n.active[key]; firing {
		n.mu.Unlock()
		return
	}
	if now.Sub(n.lastFire[key]) <= n.cooldown {
		n.mu.Unlock()
		return
	}

	a := &Alert{
		ID:       fmt.Sprintf("%s:%d", key, now.UnixNano()),
		Metric:   metric,
		GroupKey: groupKey,
		Value:    value,
		Message: fmt.Sprintf("[critical] %s (%s) = %.1f%% — needs attention",
			metric, groupKey, value),
		FiredAt: now,
		State:   "firing",
	}
	n.active[key] = a
	n.lastFire[key] = now
	alertCopy := *a
	n.mu.Unlock()

	slog.Warn("alert fired", "metric", metric, "group", groupKey, "value", value)
	go n.deliver(&alertCopy)
}

// resolveMissing resolves every firing alert whose key was not critical in
// the latest snapshot.
func (n *Notifier) resolveMissing(seen map[string]bool, now time.Time) {
	n.mu.Lock()
	var resolved []*Alert
	for key, a := range n.active {
		if seen[key] {
			continue
		}
		t := now
		a.State = "resolved"
		a.ResolvedAt = &t
		delete(n.active, key)

		n.history = append(n.history, a)
		if len(n.history) > maxHistoryLen {
			n.history = n.history[len(n.history)-maxHistoryLen:]
		}
		cp := *a
		resolved = append(resolved, &cp)
	}
	n.mu.Unlock()

	for _, a := range resolved {
		slog.Info("alert resolved", "metric", a.Metric, "group", a.GroupKey)
		go n.deliver(a)
	}
}
