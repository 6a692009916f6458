package stats

import (
	"github.com/Naem-ali/AIOPS/internal/config"
)

// Severity constants assigned to a group's latest value.
const (
	SeverityNormal   = "normal"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Classifier maps a metric's latest value to a severity level using
// per-metric threshold pairs. Metrics without an override use the
// 70/85 defaults.
//
// A Classifier is immutable once built; swap in a new one on config reload.
type Classifier struct {
	overrides map[string]config.Thresholds
}

// NewClassifier builds a Classifier from the configured overrides.
// A nil map is valid — every metric then uses the defaults.
func NewClassifier(overrides map[string]config.Thresholds) *Classifier {
	return &Classifier{overrides: overrides}
}

// ThresholdsFor returns the threshold pair in effect for metric.
func (c *Classifier) ThresholdsFor(metric string) config.Thresholds {
	if th, ok := c.overrides[metric]; ok {
		return th
	}
	return config.Thresholds{
		WarningPct:  config.DefaultWarningPct,
		CriticalPct: config.DefaultCriticalPct,
	}
}

// Classify buckets latest against the metric's thresholds. Boundary values
// belong to the higher-severity bucket: latest == critical_pct is critical,
// latest == warning_pct is warning.
func (c *Classifier) Classify(metric string, latest float64) string {
	th := c.ThresholdsFor(metric)
	switch {
	case latest >= th.CriticalPct:
		return SeverityCritical
	case latest >= th.WarningPct:
		return SeverityWarning
	default:
		return SeverityNormal
	}
}
