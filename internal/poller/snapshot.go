package poller

import (
	"time"

	"github.com/Naem-ali/AIOPS/internal/stats"
)

// Series is one grouped slice of a metric together with its derived
// statistics and severity.
type Series struct {
	Group    stats.Group
	Stat     stats.Stat
	Severity string
}

// Snapshot is the fully-assembled result of one poll cycle. It completely
// replaces the previous snapshot — there is no incremental update contract —
// and must be treated as immutable by consumers.
type Snapshot struct {
	// Taken is when the cycle started.
	Taken time.Time

	// Names lists the catalog's metric names in catalog order, so consumers
	// can render deterministically without sorting map keys.
	Names []string

	// Metrics maps each metric name to its series, in first-seen group-key
	// order. A metric whose query failed this cycle has an empty slice.
	Metrics map[string][]Series

	// Errors maps metric names to the query failure that left them empty
	// this cycle. Surfaced as non-blocking notifications alongside whatever
	// data the other metrics produced.
	Errors map[string]string
}
