package server

import (
	"time"

	"github.com/Naem-ali/AIOPS/internal/poller"
)

// SeriesResponse is the JSON representation of one grouped series.
type SeriesResponse struct {
	GroupKey string  `json:"group_key"`
	Latest   float64 `json:"latest"`
	Mean     float64 `json:"mean"`
	DeltaPct float64 `json:"delta_pct"`
	Severity string  `json:"severity"`
	Samples  int     `json:"samples"`
}

// MetricResponse is one catalog metric's series for the current cycle.
// Error is set when the metric's query failed and Series is empty.
type MetricResponse struct {
	Name   string           `json:"name"`
	Series []SeriesResponse `json:"series"`
	Error  string           `json:"error,omitempty"`
}

// SnapshotResponse is the JSON dump of one poll cycle.
type SnapshotResponse struct {
	Taken   string           `json:"taken"`
	Metrics []MetricResponse `json:"metrics"`
}

// StatusResponse reports the poller's current state and interval.
type StatusResponse struct {
	State    string `json:"state"`
	Interval string `json:"interval"`
}

type intervalRequest struct {
	Interval string `json:"interval"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// BuildSnapshot maps a pipeline snapshot to its JSON representation,
// preserving catalog order and first-seen group order.
func BuildSnapshot(snap *poller.Snapshot) SnapshotResponse {
	out := SnapshotResponse{
		Taken:   snap.Taken.UTC().Format(time.RFC3339),
		Metrics: make([]MetricResponse, 0, len(snap.Names)),
	}
	for _, name := range snap.Names {
		m := MetricResponse{
			Name:   name,
			Series: make([]SeriesResponse, 0, len(snap.Metrics[name])),
			Error:  snap.Errors[name],
		}
		for _, s := range snap.Metrics[name] {
			m.Series = append(m.Series, SeriesResponse{
				GroupKey: s.Group.Key,
				Latest:   s.Stat.Latest,
				Mean:     s.Stat.Mean,
				DeltaPct: s.Stat.DeltaPct,
				Severity: s.Severity,
				Samples:  len(s.Group.Samples),
			})
		}
		out.Metrics = append(out.Metrics, m)
	}
	return out
}
