package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

const probeTimeout = 10 * time.Second

// Backend self-telemetry metric names inspected by the probe.
const (
	// TSDB ingestion counter — total samples written to the local TSDB head.
	backendSamplesAppended = "prometheus_tsdb_head_samples_appended_total"

	// WAL storage errors — unrecoverable write errors to the local WAL.
	backendWALErrors = "prometheus_tsdb_wal_storage_errors_total"

	// Active series currently held in the TSDB head.
	backendHeadSeries = "prometheus_tsdb_head_series"
)

// Status is the outcome of one connectivity check. A failed check is a
// status, not an error — the caller renders it, the poller keeps running.
type Status struct {
	Reachable bool      `json:"reachable"`
	CheckedAt time.Time `json:"checked_at"`
	Error     string    `json:"error,omitempty"`

	// Ingestion counters from the backend's own telemetry; zero when the
	// backend does not expose them.
	SamplesAppended float64 `json:"samples_appended"`
	WALErrors       float64 `json:"wal_errors"`
	HeadSeries      float64 `json:"head_series"`
}

// Probe checks that the metrics backend is reachable by scraping its own
// /metrics exposition endpoint. It reuses one HTTP client across checks.
type Probe struct {
	url    string
	client *http.Client
}

// New creates a Probe for the backend at baseURL.
func New(baseURL string) *Probe {
	return &Probe{
		url:    strings.TrimRight(baseURL, "/") + "/metrics",
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Check fetches and parses the backend's exposition endpoint.
func (p *Probe) Check(ctx context.Context) Status {
	st := Status{CheckedAt: time.Now().UTC()}

	mfs, err := p.fetch(ctx)
	if err != nil {
		st.Error = err.Error()
		slog.Warn("health: backend probe failed", "url", p.url, "err", err)
		return st
	}

	st.Reachable = true
	st.SamplesAppended = sumFamily(mfs[backendSamplesAppended])
	st.WALErrors = sumFamily(mfs[backendWALErrors])
	st.HeadSeries = sumFamily(mfs[backendHeadSeries])
	return st
}

// fetch performs an HTTP GET and returns parsed metric families.
func (p *Probe) fetch(ctx context.Context) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseExposition(resp.Body)
}

// parseExposition decodes a Prometheus text exposition from r.
// A partial result with a non-fatal parse warning is still returned.
func parseExposition(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a MetricFamily.
// Returns 0 if mf is nil (metric not present in the scrape).
func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
