package interfaces

import (
	"context"

	"github.com/m-mizutani/herald/pkg/domain/model"
)

// FeedSource fetches and normalizes the release feed of one tracked source.
type FeedSource interface {
	// Fetch returns the source's releases in the feed's own listing order.
	// Transport failures and malformed content are source-local errors; they
	// must not affect other sources.
	Fetch(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error)
}

// Notifier delivers a rendered notification to one external channel. Delivery
// either succeeds or fails as a whole; there is no partial delivery.
type Notifier interface {
	// Notify delivers the notification. A failure is a delivery error: the
	// caller logs it and moves on, it never reverts detection state.
	Notify(ctx context.Context, n *model.Notification) error

	// Name identifies the sink in logs.
	Name() string
}

// StateStore persists the last-known release per source.
type StateStore interface {
	// Load reads the persisted state. A missing store yields an empty state,
	// not an error; malformed content is a state error.
	Load(ctx context.Context) (model.ReleaseState, error)

	// Save writes the full snapshot, overwriting prior content. It is called
	// at most once per run, after all sources have been processed.
	Save(ctx context.Context, state model.ReleaseState) error
}
