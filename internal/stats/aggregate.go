package stats

import (
	"github.com/Naem-ali/AIOPS/internal/promapi"
)

// UnknownGroup is the sentinel key for samples that lack the grouping label
// (or when a metric has no grouping label at all).
const UnknownGroup = "unknown"

// Group is one label-dimension slice of a metric's samples within a single
// poll cycle. It is built and consumed inside one cycle — nothing retains it
// across cycles.
type Group struct {
	// Key is the grouping label's value, e.g. a device name or mount point.
	Key string

	// Samples holds every sample seen for Key this cycle, in input order.
	Samples []promapi.Sample
}

// Stat is the per-group summary, recomputed from scratch every cycle.
type Stat struct {
	// Latest is the value of the sample with the greatest timestamp.
	Latest float64

	// Mean is the arithmetic mean of the cycle's values for this group.
	Mean float64

	// DeltaPct is (Latest/Mean - 1) * 100, or 0 when Mean is 0.
	DeltaPct float64
}

// GroupBy splits samples by the value of the named label. Samples missing the
// label fall into the UnknownGroup sentinel. Groups are emitted in first-seen
// key order, so identical input always produces identical grouping.
func GroupBy(samples []promapi.Sample, label string) []Group {
	byKey := make(map[string]int)

	var groups []Group
	for _, s := range samples {
		key := UnknownGroup
		if label != "" {
			if v := s.Label(label); v != "" {
				key = v
			}
		}

		idx, ok := byKey[key]
		if !ok {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, Group{Key: key})
		}
		groups[idx].Samples = append(groups[idx].Samples, s)
	}
	return groups
}

// Compute derives the summary statistics for one group.
//
// Latest is the value at the maximum timestamp, ties broken by last-seen
// order. DeltaPct is pinned to 0 when the mean is 0 — an explicit policy to
// avoid an infinite or undefined delta, not an omission.
func Compute(g Group) Stat {
	if len(g.Samples) == 0 {
		return Stat{}
	}

	latest := g.Samples[0]
	var sum float64
	for _, s := range g.Samples {
		sum += s.Value
		if !s.Timestamp.Before(latest.Timestamp) {
			latest = s
		}
	}

	mean := sum / float64(len(g.Samples))

	var deltaPct float64
	if mean != 0 {
		deltaPct = (latest.Value/mean - 1) * 100
	}

	return Stat{
		Latest:   latest.Value,
		Mean:     mean,
		DeltaPct: deltaPct,
	}
}
