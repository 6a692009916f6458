package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Naem-ali/AIOPS/internal/config"
	"github.com/Naem-ali/AIOPS/internal/promapi"
	"github.com/Naem-ali/AIOPS/internal/stats"
)

// newTestPoller builds a Poller against srv with a tiny inter-query delay so
// cycles complete without real pacing waits.
func newTestPoller(srv *httptest.Server, catalog []config.Query, thresholds map[string]config.Thresholds) *Poller {
	p := New(
		promapi.NewClient(srv.URL),
		catalog,
		stats.NewClassifier(thresholds),
		config.MinRefreshInterval,
	)
	p.queryDelay = time.Millisecond
	return p
}

// vectorBody wraps items into a query API success envelope.
func vectorBody(items string) string {
	return `{"status":"success","data":{"resultType":"vector","result":[` + items + `]}}`
}

// recvSnapshot waits for one snapshot or fails the test.
func recvSnapshot(t *testing.T, ch <-chan *Snapshot) *Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

// waitState polls until the Poller reaches want or the deadline passes.
func waitState(t *testing.T, p *Poller, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if p.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %q, want %q within %v", p.State(), want, timeout)
}

// --- End-to-end cycles ---

func TestPoller_SingleMetric_UngroupedSample(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(`{"metric":{},"value":[1000,"42.5"]}`)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "cpu_usage", Expr: "cpu_expr"}}, nil)
	ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	snap := recvSnapshot(t, ch)

	series, ok := snap.Metrics["cpu_usage"]
	if !ok {
		t.Fatal("snapshot missing cpu_usage")
	}
	if len(series) != 1 {
		t.Fatalf("series = %d, want 1", len(series))
	}

	s := series[0]
	if s.Group.Key != stats.UnknownGroup {
		t.Errorf("group key = %q, want %q", s.Group.Key, stats.UnknownGroup)
	}
	if s.Stat.Latest != 42.5 || s.Stat.Mean != 42.5 {
		t.Errorf("stat = %+v, want latest=mean=42.5", s.Stat)
	}
	if s.Stat.DeltaPct != 0 {
		t.Errorf("deltaPct = %v, want 0", s.Stat.DeltaPct)
	}
	if s.Severity != stats.SeverityNormal {
		t.Errorf("severity = %q, want %q (default thresholds 70/85)", s.Severity, stats.SeverityNormal)
	}
}

func TestPoller_TwoDevices_PerGroupClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(
			`{"metric":{"device":"eth0"},"value":[1000,"90"]},` +
				`{"metric":{"device":"eth1"},"value":[1000,"10"]}`)))
	}))
	defer srv.Close()

	p := newTestPoller(srv,
		[]config.Query{{Name: "disk_space", Expr: "disk_expr", GroupBy: "device"}},
		map[string]config.Thresholds{"disk_space": {WarningPct: 70, CriticalPct: 85}},
	)
	ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	snap := recvSnapshot(t, ch)

	series := snap.Metrics["disk_space"]
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}
	if series[0].Group.Key != "eth0" || series[1].Group.Key != "eth1" {
		t.Fatalf("group order = %q, %q; want eth0, eth1", series[0].Group.Key, series[1].Group.Key)
	}
	if series[0].Severity != stats.SeverityCritical {
		t.Errorf("eth0 severity = %q, want critical (90 >= 85)", series[0].Severity)
	}
	if series[1].Severity != stats.SeverityNormal {
		t.Errorf("eth1 severity = %q, want normal", series[1].Severity)
	}
}

func TestPoller_FailedQuery_EmptyEntryAndErrorNote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("query") == "bad_expr" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.Write([]byte(vectorBody(`{"metric":{},"value":[1000,"1"]}`)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{
		{Name: "good_metric", Expr: "good_expr"},
		{Name: "bad_metric", Expr: "bad_expr"},
	}, nil)
	ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	snap := recvSnapshot(t, ch)

	// The cycle completed despite the failure and kept catalog order.
	if len(snap.Names) != 2 || snap.Names[0] != "good_metric" || snap.Names[1] != "bad_metric" {
		t.Fatalf("names = %v", snap.Names)
	}
	if len(snap.Metrics["good_metric"]) != 1 {
		t.Errorf("good_metric series = %d, want 1", len(snap.Metrics["good_metric"]))
	}

	series, ok := snap.Metrics["bad_metric"]
	if !ok {
		t.Fatal("failed metric must still contribute an (empty) entry")
	}
	if len(series) != 0 {
		t.Errorf("bad_metric series = %d, want 0", len(series))
	}
	if snap.Errors["bad_metric"] == "" {
		t.Error("failed metric missing error note")
	}
	if snap.Errors["good_metric"] != "" {
		t.Errorf("good metric has error note: %q", snap.Errors["good_metric"])
	}
}

func TestPoller_DeterministicGrouping_AcrossCycles(t *testing.T) {
	body := vectorBody(
		`{"metric":{"device":"sdb"},"value":[1000,"1"]},` +
			`{"metric":{"device":"sda"},"value":[1000,"2"]}`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	catalog := []config.Query{{Name: "disk_reads", Expr: "e", GroupBy: "device"}}

	// Two independent cycles over the same raw result must produce identical
	// group keys in identical order.
	var keys [2][]string
	for cycle := 0; cycle < 2; cycle++ {
		p := newTestPoller(srv, catalog, nil)
		snap, ok := p.cycle(context.Background())
		if !ok {
			t.Fatalf("cycle %d aborted", cycle)
		}
		for _, s := range snap.Metrics["disk_reads"] {
			keys[cycle] = append(keys[cycle], s.Group.Key)
		}
	}

	if len(keys[0]) != 2 || keys[0][0] != "sdb" || keys[0][1] != "sda" {
		t.Fatalf("cycle 0 keys = %v", keys[0])
	}
	for i := range keys[0] {
		if keys[0][i] != keys[1][i] {
			t.Errorf("keys[%d]: cycle 0 %q != cycle 1 %q", i, keys[0][i], keys[1][i])
		}
	}
}

// --- State machine ---

func TestPoller_StateTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(``)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)

	if p.State() != StateIdle {
		t.Fatalf("initial state = %q, want idle", p.State())
	}

	// Pause and Resume are no-ops outside running/paused.
	p.Pause()
	if p.State() != StateIdle {
		t.Errorf("pause while idle: state = %q", p.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := p.Subscribe()
	p.Start(ctx)

	if p.State() != StateRunning {
		t.Errorf("after start: state = %q, want running", p.State())
	}

	// First cycle fires immediately, then the loop sleeps out the interval.
	recvSnapshot(t, ch)

	p.Pause()
	if p.State() != StatePaused {
		t.Errorf("after pause: state = %q, want paused", p.State())
	}

	p.Resume()
	if p.State() != StateRunning {
		t.Errorf("after resume: state = %q, want running", p.State())
	}

	p.Stop()
	waitState(t, p, StateStopped, 2*time.Second)
}

func TestPoller_StopWhileIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(``)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)
	p.Stop()
	if p.State() != StateStopped {
		t.Errorf("state = %q, want stopped", p.State())
	}
}

func TestPoller_StopWhilePaused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(``)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)
	ch := p.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	recvSnapshot(t, ch)

	p.Pause()
	p.Stop()
	waitState(t, p, StateStopped, 2*time.Second)
}

func TestPoller_StopDuringBackoff_NoPartialSnapshot(t *testing.T) {
	// Backend always 503 — the client sits in its 1s retry backoff.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	// Let the first request fail and the backoff sleep begin.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	p.Stop()
	waitState(t, p, StateStopped, time.Second)

	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("stop took %v, must not wait out backoff + retries", elapsed)
	}
	if _, ok := p.Latest(); ok {
		t.Error("partial cycle must not emit a snapshot")
	}
}

// --- Interval ---

func TestPoller_SetInterval_Clamped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(``)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)

	p.SetInterval(time.Second)
	if got := p.Interval(); got != config.MinRefreshInterval {
		t.Errorf("interval = %v, want clamped to %v", got, config.MinRefreshInterval)
	}

	p.SetInterval(5 * time.Minute)
	if got := p.Interval(); got != config.MaxRefreshInterval {
		t.Errorf("interval = %v, want clamped to %v", got, config.MaxRefreshInterval)
	}

	p.SetInterval(30 * time.Second)
	if got := p.Interval(); got != 30*time.Second {
		t.Errorf("interval = %v, want 30s", got)
	}
}

func TestPoller_Apply_SwapsThresholds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(`{"metric":{},"value":[1000,"75"]}`)))
	}))
	defer srv.Close()

	catalog := []config.Query{{Name: "m", Expr: "e"}}
	p := newTestPoller(srv, catalog, nil)

	snap, ok := p.cycle(context.Background())
	if !ok {
		t.Fatal("cycle aborted")
	}
	if got := snap.Metrics["m"][0].Severity; got != stats.SeverityWarning {
		t.Fatalf("default severity = %q, want warning", got)
	}

	p.Apply(&config.Config{
		RefreshInterval: 20 * time.Second,
		Thresholds:      map[string]config.Thresholds{"m": {WarningPct: 90, CriticalPct: 95}},
	})

	if got := p.Interval(); got != 20*time.Second {
		t.Errorf("interval after apply = %v, want 20s", got)
	}

	snap, ok = p.cycle(context.Background())
	if !ok {
		t.Fatal("cycle aborted")
	}
	if got := snap.Metrics["m"][0].Severity; got != stats.SeverityNormal {
		t.Errorf("severity after apply = %q, want normal (75 < 90)", got)
	}
}

// --- Subscription and latest slot ---

func TestPoller_LatestSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(`{"metric":{},"value":[1000,"1"]}`)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)

	if _, ok := p.Latest(); ok {
		t.Fatal("Latest before first cycle should report none")
	}

	snap, _ := p.cycle(context.Background())
	p.publish(snap)

	got, ok := p.Latest()
	if !ok || got != snap {
		t.Errorf("Latest = %v, %v; want the published snapshot", got, ok)
	}
}

func TestPoller_SlowSubscriber_DropsOldest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(vectorBody(``)))
	}))
	defer srv.Close()

	p := newTestPoller(srv, []config.Query{{Name: "m", Expr: "e"}}, nil)
	ch := p.Subscribe()

	// Publish more snapshots than the buffer holds without consuming any.
	snaps := make([]*Snapshot, subBufSize+2)
	for i := range snaps {
		snaps[i] = &Snapshot{Taken: time.Now(), Metrics: map[string][]Series{}, Errors: map[string]string{}}
		p.publish(snaps[i])
	}

	// The newest snapshot must still be delivered; the oldest were evicted.
	var last *Snapshot
	for {
		select {
		case s := <-ch:
			last = s
			continue
		default:
		}
		break
	}
	if last != snaps[len(snaps)-1] {
		t.Error("newest snapshot was not retained for the slow subscriber")
	}
}
