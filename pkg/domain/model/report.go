package model

import (
	"time"

	"github.com/m-mizutani/herald/pkg/domain/types"
)

// SourceStatus describes how a single source came out of a watch pass.
type SourceStatus string

const (
	StatusUpdated   SourceStatus = "updated"   // A new release was detected and recorded
	StatusUnchanged SourceStatus = "unchanged" // The latest release matches the stored one
	StatusEmpty     SourceStatus = "empty"     // The feed listed no releases
	StatusFailed    SourceStatus = "failed"    // Fetch or parse failed; source skipped this pass
)

// SourceResult is the per-source outcome of one watch pass.
type SourceResult struct {
	Source   types.SourceID
	Status   SourceStatus
	Release  *ReleaseRecord // Set when Status is StatusUpdated
	Notified bool           // A notification was handed to at least one sink
	Err      error          // Set when Status is StatusFailed
}

// RunReport summarizes one watch pass. It is ephemeral: the report feeds the
// final log line and nothing else.
type RunReport struct {
	RunID     string
	StartedAt time.Time
	Results   []SourceResult
}

// Count returns the number of sources that finished with the given status.
func (x *RunReport) Count(status SourceStatus) int {
	var n int
	for _, r := range x.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// NotifiedCount returns the number of sources whose detection was handed to
// the notification sinks.
func (x *RunReport) NotifiedCount() int {
	var n int
	for _, r := range x.Results {
		if r.Notified {
			n++
		}
	}
	return n
}
