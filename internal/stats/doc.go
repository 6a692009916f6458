// Package stats groups parsed samples into per-label series and derives
// their summary statistics and severity classification.
//
// GroupBy(samples, label) splits one metric's samples by a label dimension
// (device, mountpoint, or mode), assigning samples without the label to the
// "unknown" sentinel group, in deterministic first-seen order. Compute(g)
// derives Stat{Latest, Mean, DeltaPct} for one group within one poll cycle —
// no state survives the cycle.
//
// Classifier maps a latest value to normal | warning | critical using
// per-metric threshold pairs (default 70/85); boundary values take the
// higher-severity bucket.
package stats
