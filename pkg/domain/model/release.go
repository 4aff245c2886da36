package model

import (
	"time"

	"github.com/m-mizutani/herald/pkg/domain/types"
)

// ReleaseRecord is one normalized entry from a source's release feed.
type ReleaseRecord struct {
	ID        string    `json:"id" firestore:"id"`               // Stable unique identifier (feed GUID, falling back to link)
	Title     string    `json:"title" firestore:"title"`         // Release title as published
	Link      string    `json:"link" firestore:"link"`           // URI of the release
	Published time.Time `json:"published" firestore:"published"` // Publication time; zero when missing or unparseable
}

// ReleaseState maps each tracked source to its last-known release. An absent
// entry means the source has never produced a release. This is the only
// persisted entity.
type ReleaseState map[types.SourceID]ReleaseRecord

// Clone returns a shallow copy so callers can mutate a snapshot without
// touching the original.
func (x ReleaseState) Clone() ReleaseState {
	out := make(ReleaseState, len(x))
	for k, v := range x {
		out[k] = v
	}
	return out
}

// NotificationDecision is the per-source, per-run outcome of the detection
// engine. It is derived and never persisted.
type NotificationDecision struct {
	IsNew        bool // The latest fetched release differs from the stored one
	ShouldNotify bool // The release also passed the source's notification filter
}
