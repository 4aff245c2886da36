package usecase

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/utils/safe"
)

const defaultFetchTimeout = 30 * time.Second

type watchUseCase struct {
	feed      interfaces.FeedSource
	store     interfaces.StateStore
	notifiers []interfaces.Notifier

	concurrency  int
	fetchTimeout time.Duration
	dryRun       bool
}

// WatchOption is a functional option for the watch use case.
type WatchOption func(*watchUseCase)

// WithNotifiers sets the sinks that receive qualifying notifications. Every
// sink gets every notification; per-sink failures are isolated.
func WithNotifiers(notifiers ...interfaces.Notifier) WatchOption {
	return func(uc *watchUseCase) {
		uc.notifiers = append(uc.notifiers, notifiers...)
	}
}

// WithConcurrency bounds how many sources are fetched in parallel. The
// default of 1 processes sources sequentially.
func WithConcurrency(n int) WatchOption {
	return func(uc *watchUseCase) {
		uc.concurrency = n
	}
}

// WithFetchTimeout bounds a single source's fetch. A hung fetch is cut off
// and treated as that source's fetch failure.
func WithFetchTimeout(d time.Duration) WatchOption {
	return func(uc *watchUseCase) {
		uc.fetchTimeout = d
	}
}

// WithDryRun runs detection and logging only: no notification is delivered
// and the state is not committed.
func WithDryRun(enabled bool) WatchOption {
	return func(uc *watchUseCase) {
		uc.dryRun = enabled
	}
}

// NewWatch creates a new instance of WatchUseCase.
func NewWatch(feed interfaces.FeedSource, store interfaces.StateStore, opts ...WatchOption) interfaces.WatchUseCase {
	uc := &watchUseCase{
		feed:         feed,
		store:        store,
		concurrency:  1,
		fetchTimeout: defaultFetchTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}
	if uc.concurrency < 1 {
		uc.concurrency = 1
	}

	return uc
}

// Run performs one watch pass: load state, process every source, commit the
// updated state once. Per-source failures are recorded in the report and
// never abort the pass; only state load and state commit failures do.
func (uc *watchUseCase) Run(ctx context.Context, sources []model.TrackedSource) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}

	logger := ctxlog.From(ctx).With("run_id", report.RunID)
	ctx = ctxlog.With(ctx, logger)

	state, err := uc.store.Load(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load release state")
	}

	logger.Info("Starting watch pass",
		"sources", len(sources),
		"known_sources", len(state),
		"concurrency", uc.concurrency,
		"dry_run", uc.dryRun,
	)

	// Config maps iterate in random order; sort so runs are deterministic.
	ordered := slices.Clone(sources)
	slices.SortFunc(ordered, func(a, b model.TrackedSource) int {
		return cmp.Compare(a.ID, b.ID)
	})

	// Workers write only their own slot and read the state map, which is not
	// mutated until every worker is done. No two sources share a key.
	results := make([]model.SourceResult, len(ordered))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, src := range ordered {
		g.Go(func() error {
			results[i] = uc.processSource(ctx, src, state)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if r.Status == model.StatusUpdated && r.Release != nil {
			state[r.Source] = *r.Release
		}
	}
	report.Results = results

	if uc.dryRun {
		logger.Info("Dry run: state commit skipped")
		return report, nil
	}

	if err := uc.store.Save(ctx, state); err != nil {
		return nil, goerr.Wrap(err, "failed to commit release state")
	}

	return report, nil
}

// processSource runs detection and delivery for one source. All failures
// here are source-local: they are logged and reflected in the result, never
// propagated.
func (uc *watchUseCase) processSource(ctx context.Context, src model.TrackedSource, state model.ReleaseState) model.SourceResult {
	logger := ctxlog.From(ctx).With("source", src.ID)
	ctx = ctxlog.With(ctx, logger)

	result := model.SourceResult{Source: src.ID, Status: model.StatusUnchanged}

	var records []model.ReleaseRecord
	err := safe.Run(ctx, func(ctx context.Context) error {
		fetchCtx := ctx
		if uc.fetchTimeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, uc.fetchTimeout)
			defer cancel()
		}

		var fetchErr error
		records, fetchErr = uc.feed.Fetch(fetchCtx, src)
		return fetchErr
	})
	if err != nil {
		logger.Warn("Skipping source: feed fetch failed",
			"url", src.URL,
			"error", err,
		)
		result.Status = model.StatusFailed
		result.Err = err
		return result
	}

	latest, ok := SelectLatest(records)
	if !ok {
		logger.Debug("Feed listed no releases")
		result.Status = model.StatusEmpty
		return result
	}

	var stored *model.ReleaseRecord
	if rec, ok := state[src.ID]; ok {
		stored = &rec
	}

	decision := Evaluate(src, stored, latest)
	if !decision.IsNew {
		logger.Debug("Latest release already known", "release_id", latest.ID)
		return result
	}

	logger.Info("New release detected",
		"release_id", latest.ID,
		"title", latest.Title,
		"published", latest.Published,
		"notify", decision.ShouldNotify,
	)

	// Tracking is unconditional: the record replaces stored state whether or
	// not the filter lets the notification through.
	result.Status = model.StatusUpdated
	result.Release = &latest

	if !decision.ShouldNotify {
		logger.Debug("Notification suppressed by source filter")
		return result
	}

	if uc.dryRun {
		logger.Info("Dry run: notification delivery skipped")
		return result
	}

	result.Notified = uc.deliver(ctx, model.NewNotification(src.ID, latest))
	return result
}

// deliver hands the notification to every configured sink. Reports whether
// at least one sink accepted it. Delivery failures never revert the state
// update: once detected, a release counts as seen.
func (uc *watchUseCase) deliver(ctx context.Context, n *model.Notification) bool {
	logger := ctxlog.From(ctx)

	if len(uc.notifiers) == 0 {
		logger.Warn("No notification sinks configured; release tracked without delivery")
		return false
	}

	var delivered bool
	for _, sink := range uc.notifiers {
		if err := sink.Notify(ctx, n); err != nil {
			logger.Error("Notification delivery failed",
				"sink", sink.Name(),
				"error", err,
			)
			continue
		}

		logger.Info("Notification delivered", "sink", sink.Name())
		delivered = true
	}

	return delivered
}
