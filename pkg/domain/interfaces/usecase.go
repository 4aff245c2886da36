package interfaces

import (
	"context"

	"github.com/m-mizutani/herald/pkg/domain/model"
)

// WatchUseCase defines one full watch pass over the tracked sources.
type WatchUseCase interface {
	// Run loads state, processes every source with per-source failure
	// isolation, commits the updated state once, and reports the outcome.
	// The returned error is fatal (state load or commit failure); per-source
	// failures are recorded in the report instead.
	Run(ctx context.Context, sources []model.TrackedSource) (*model.RunReport, error)
}
