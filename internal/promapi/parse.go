package promapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/common/model"
)

// Sample is one parsed instant-vector element.
type Sample struct {
	Timestamp time.Time
	Value     float64
	Labels    model.Metric
}

// Label returns the value of the named label, or "" if absent.
func (s Sample) Label(name string) string {
	return string(s.Labels[model.LabelName(name)])
}

// Parse converts a query Result into samples. It never fails the batch: a
// response without a result collection yields an empty slice (a normal
// outcome, distinct from a query failure), and each item is parsed
// independently — malformed items are logged, counted in skipped, and the
// remaining items are still returned.
func Parse(res *Result) (samples []Sample, skipped int) {
	if res == nil || len(res.Data.Result) == 0 {
		return nil, 0
	}

	for i, item := range res.Data.Result {
		s, err := parseItem(item)
		if err != nil {
			skipped++
			slog.Warn("promapi: skipped sample", "index", i, "err", err)
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped
}

// parseItem decodes one instant-vector element. The value must be the
// two-element [unixTimestamp, "stringValue"] pair; model.SamplePair handles
// both the pair shape and the string-encoded float.
func parseItem(item Item) (Sample, error) {
	var labels model.Metric
	if len(item.Metric) > 0 {
		if err := json.Unmarshal(item.Metric, &labels); err != nil {
			return Sample{}, err
		}
	}

	// Validate the pair shape first: model.SamplePair zero-fills missing
	// array elements instead of erroring, which would turn an absent
	// timestamp into epoch zero.
	var elems []json.RawMessage
	if err := json.Unmarshal(item.Value, &elems); err != nil {
		return Sample{}, err
	}
	if len(elems) != 2 {
		return Sample{}, fmt.Errorf("value pair has %d elements, want 2", len(elems))
	}

	var pair model.SamplePair
	if err := json.Unmarshal(item.Value, &pair); err != nil {
		return Sample{}, err
	}

	return Sample{
		Timestamp: pair.Timestamp.Time(),
		Value:     float64(pair.Value),
		Labels:    labels,
	}, nil
}
