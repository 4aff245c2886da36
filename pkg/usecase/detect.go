package usecase

import (
	"slices"

	"github.com/m-mizutani/herald/pkg/domain/model"
)

// SelectLatest picks the representative release from a fetched feed: the
// newest by publication time, with the feed's own listing order as the
// tie-break (first-listed wins). Records without a usable timestamp carry the
// zero time, so they lose tie-breaks and never win over a dated release. The
// input is not modified. ok is false when the feed listed no releases, which
// is not an error.
func SelectLatest(records []model.ReleaseRecord) (model.ReleaseRecord, bool) {
	if len(records) == 0 {
		return model.ReleaseRecord{}, false
	}

	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b model.ReleaseRecord) int {
		return b.Published.Compare(a.Published)
	})

	return sorted[0], true
}

// Evaluate decides what to do with the latest fetched release for a source.
// Identity is the release ID alone: an absent stored record counts as
// different, publication times never enter the comparison. When the release
// is new, ShouldNotify additionally applies the source's notification filter
// against the title; tracking itself is unconditional and the caller must
// record the release either way.
func Evaluate(src model.TrackedSource, stored *model.ReleaseRecord, latest model.ReleaseRecord) model.NotificationDecision {
	if stored != nil && stored.ID == latest.ID {
		return model.NotificationDecision{}
	}

	return model.NotificationDecision{
		IsNew:        true,
		ShouldNotify: src.WantsNotification(latest.Title),
	}
}
