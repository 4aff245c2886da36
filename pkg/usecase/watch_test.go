package usecase_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
	"github.com/m-mizutani/herald/pkg/usecase"
)

// MockFeedSource is a mock implementation of FeedSource
type MockFeedSource struct {
	fetchFunc func(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error)

	mu         sync.Mutex
	fetchCalls []types.SourceID
}

func (m *MockFeedSource) Fetch(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
	m.mu.Lock()
	m.fetchCalls = append(m.fetchCalls, src.ID)
	m.mu.Unlock()

	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, src)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockFeedSource) FetchCalls() []types.SourceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.SourceID{}, m.fetchCalls...)
}

// MockStateStore is a mock implementation of StateStore
type MockStateStore struct {
	loadFunc func(ctx context.Context) (model.ReleaseState, error)
	saveFunc func(ctx context.Context, state model.ReleaseState) error

	saveCalls []model.ReleaseState
}

func (m *MockStateStore) Load(ctx context.Context) (model.ReleaseState, error) {
	if m.loadFunc != nil {
		return m.loadFunc(ctx)
	}
	return model.ReleaseState{}, nil
}

func (m *MockStateStore) Save(ctx context.Context, state model.ReleaseState) error {
	m.saveCalls = append(m.saveCalls, state.Clone())
	if m.saveFunc != nil {
		return m.saveFunc(ctx, state)
	}
	return nil
}

// MockNotifier is a mock implementation of Notifier
type MockNotifier struct {
	name       string
	notifyFunc func(ctx context.Context, n *model.Notification) error

	mu       sync.Mutex
	notified []*model.Notification
}

func (m *MockNotifier) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *MockNotifier) Notify(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	m.notified = append(m.notified, n)
	m.mu.Unlock()

	if m.notifyFunc != nil {
		return m.notifyFunc(ctx, n)
	}
	return nil
}

func (m *MockNotifier) Notified() []*model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Notification{}, m.notified...)
}

func feedWith(records ...model.ReleaseRecord) *MockFeedSource {
	return &MockFeedSource{
		fetchFunc: func(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
			return records, nil
		},
	}
}

func TestWatch_DetectAndNotify(t *testing.T) {
	ctx := context.Background()

	older := model.ReleaseRecord{ID: "v1.1.0", Title: "v1.1.0", Published: mustTime(t, "2026-03-01T00:00:00Z")}
	newer := model.ReleaseRecord{ID: "v1.2.0", Title: "v1.2.0", Published: mustTime(t, "2026-06-01T00:00:00Z")}

	feed := feedWith(older, newer)
	store := &MockStateStore{}
	sink := &MockNotifier{}

	uc := usecase.NewWatch(feed, store, usecase.WithNotifiers(sink))

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	gt.NoError(t, err)
	gt.Value(t, report).NotNil()
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(1)
	gt.Value(t, report.NotifiedCount()).Equal(1)

	// Only the newest release is announced and recorded.
	notified := sink.Notified()
	gt.Value(t, len(notified)).Equal(1)
	gt.Value(t, notified[0].Source).Equal(types.SourceID("example/repo"))
	gt.Value(t, notified[0].Release.ID).Equal("v1.2.0")

	gt.Value(t, len(store.saveCalls)).Equal(1)
	gt.Value(t, store.saveCalls[0][types.SourceID("example/repo")].ID).Equal("v1.2.0")
}

func TestWatch_SecondRunIsIdempotent(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v1.2.0", Title: "v1.2.0", Published: mustTime(t, "2026-06-01T00:00:00Z")}
	sources := []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	}

	// First pass detects and persists; its saved state feeds the second pass.
	firstStore := &MockStateStore{}
	firstSink := &MockNotifier{}
	firstUC := usecase.NewWatch(feedWith(release), firstStore, usecase.WithNotifiers(firstSink))

	_, err := firstUC.Run(ctx, sources)
	gt.NoError(t, err)
	gt.Value(t, len(firstSink.Notified())).Equal(1)
	gt.Value(t, len(firstStore.saveCalls)).Equal(1)

	persisted := firstStore.saveCalls[0]

	secondStore := &MockStateStore{
		loadFunc: func(ctx context.Context) (model.ReleaseState, error) {
			return persisted.Clone(), nil
		},
	}
	secondSink := &MockNotifier{}
	secondUC := usecase.NewWatch(feedWith(release), secondStore, usecase.WithNotifiers(secondSink))

	report, err := secondUC.Run(ctx, sources)
	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusUnchanged)).Equal(1)
	gt.Value(t, len(secondSink.Notified())).Equal(0)

	// State is still committed exactly once, with unchanged content.
	gt.Value(t, len(secondStore.saveCalls)).Equal(1)
	gt.Value(t, secondStore.saveCalls[0][types.SourceID("example/repo")].ID).Equal("v1.2.0")
}

func TestWatch_FilterSuppressesDeliveryButTracks(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v2.0.0-beta.1", Title: "v2.0.0-beta.1"}
	feed := feedWith(release)
	store := &MockStateStore{}
	sink := &MockNotifier{}

	uc := usecase.NewWatch(feed, store, usecase.WithNotifiers(sink))

	report, err := uc.Run(ctx, []model.TrackedSource{
		{
			ID:     types.SourceID("example/repo"),
			URL:    "https://example.com/feed",
			Filter: regexp.MustCompile(`^v[0-9]+\.[0-9]+\.[0-9]+$`),
		},
	})

	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(1)
	gt.Value(t, report.NotifiedCount()).Equal(0)
	gt.Value(t, len(sink.Notified())).Equal(0)

	// Tracking is unconditional: the suppressed release still replaces state.
	gt.Value(t, len(store.saveCalls)).Equal(1)
	gt.Value(t, store.saveCalls[0][types.SourceID("example/repo")].ID).Equal("v2.0.0-beta.1")
}

func TestWatch_SourceFailureIsIsolated(t *testing.T) {
	ctx := context.Background()

	good := model.ReleaseRecord{ID: "v3.0.0", Title: "v3.0.0"}
	feed := &MockFeedSource{
		fetchFunc: func(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
			if src.ID == "broken/repo" {
				return nil, errors.New("connection refused")
			}
			return []model.ReleaseRecord{good}, nil
		},
	}
	store := &MockStateStore{}
	sink := &MockNotifier{}

	uc := usecase.NewWatch(feed, store, usecase.WithNotifiers(sink))

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("broken/repo"), URL: "https://example.com/broken"},
		{ID: types.SourceID("healthy/repo"), URL: "https://example.com/healthy"},
	})

	// A failing source never aborts the pass.
	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusFailed)).Equal(1)
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(1)

	gt.Value(t, len(store.saveCalls)).Equal(1)
	saved := store.saveCalls[0]
	gt.Value(t, saved[types.SourceID("healthy/repo")].ID).Equal("v3.0.0")

	if _, ok := saved[types.SourceID("broken/repo")]; ok {
		t.Error("failed source must not gain a state entry")
	}
}

func TestWatch_DeliveryFailureKeepsStateCommitted(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v1.0.0", Title: "v1.0.0"}
	feed := feedWith(release)
	store := &MockStateStore{}
	sink := &MockNotifier{
		notifyFunc: func(ctx context.Context, n *model.Notification) error {
			return errors.New("smtp: connection reset")
		},
	}

	uc := usecase.NewWatch(feed, store, usecase.WithNotifiers(sink))

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	// Once detected, a release counts as seen whether or not delivery worked.
	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(1)
	gt.Value(t, report.NotifiedCount()).Equal(0)
	gt.Value(t, len(store.saveCalls)).Equal(1)
	gt.Value(t, store.saveCalls[0][types.SourceID("example/repo")].ID).Equal("v1.0.0")
}

func TestWatch_SecondSinkStillReceives(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v1.0.0", Title: "v1.0.0"}
	failing := &MockNotifier{
		name: "failing",
		notifyFunc: func(ctx context.Context, n *model.Notification) error {
			return errors.New("boom")
		},
	}
	working := &MockNotifier{name: "working"}

	store := &MockStateStore{}
	uc := usecase.NewWatch(feedWith(release), store,
		usecase.WithNotifiers(failing, working),
	)

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	gt.NoError(t, err)
	gt.Value(t, len(failing.Notified())).Equal(1)
	gt.Value(t, len(working.Notified())).Equal(1)
	gt.Value(t, report.NotifiedCount()).Equal(1)
}

func TestWatch_EmptyFeedIsNoOp(t *testing.T) {
	ctx := context.Background()

	feed := feedWith()
	store := &MockStateStore{}
	sink := &MockNotifier{}

	uc := usecase.NewWatch(feed, store, usecase.WithNotifiers(sink))

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("quiet/repo"), URL: "https://example.com/feed"},
	})

	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusEmpty)).Equal(1)
	gt.Value(t, len(sink.Notified())).Equal(0)
	gt.Value(t, len(store.saveCalls)).Equal(1)
	gt.Value(t, len(store.saveCalls[0])).Equal(0)
}

func TestWatch_DryRun(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v9.0.0", Title: "v9.0.0"}
	feed := feedWith(release)
	store := &MockStateStore{}
	sink := &MockNotifier{}

	uc := usecase.NewWatch(feed, store,
		usecase.WithNotifiers(sink),
		usecase.WithDryRun(true),
	)

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	// Detection is reported, but nothing leaves the process.
	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(1)
	gt.Value(t, len(sink.Notified())).Equal(0)
	gt.Value(t, len(store.saveCalls)).Equal(0)
}

func TestWatch_PanicInAdapterIsContained(t *testing.T) {
	ctx := context.Background()

	good := model.ReleaseRecord{ID: "v1.0.0", Title: "v1.0.0"}
	feed := &MockFeedSource{
		fetchFunc: func(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
			if src.ID == "panics/repo" {
				panic("feed adapter bug")
			}
			return []model.ReleaseRecord{good}, nil
		},
	}
	store := &MockStateStore{}

	uc := usecase.NewWatch(feed, store)

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("healthy/repo"), URL: "https://example.com/healthy"},
		{ID: types.SourceID("panics/repo"), URL: "https://example.com/panics"},
	})

	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusFailed)).Equal(1)
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(1)

	for _, r := range report.Results {
		if r.Source == "panics/repo" {
			gt.Error(t, r.Err)
			gt.String(t, r.Err.Error()).Contains("panic in guarded call")
		}
	}
}

func TestWatch_LoadFailureAbortsPass(t *testing.T) {
	ctx := context.Background()

	feed := &MockFeedSource{}
	store := &MockStateStore{
		loadFunc: func(ctx context.Context) (model.ReleaseState, error) {
			return nil, errors.New("state file is corrupt")
		},
	}

	uc := usecase.NewWatch(feed, store)

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	gt.Error(t, err)
	gt.Value(t, report).Nil()
	gt.String(t, err.Error()).Contains("failed to load release state")

	// No source work may start on a corrupt state.
	gt.Value(t, len(feed.FetchCalls())).Equal(0)
	gt.Value(t, len(store.saveCalls)).Equal(0)
}

func TestWatch_SaveFailureAbortsPass(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v1.0.0", Title: "v1.0.0"}
	store := &MockStateStore{
		saveFunc: func(ctx context.Context, state model.ReleaseState) error {
			return errors.New("disk full")
		},
	}

	uc := usecase.NewWatch(feedWith(release), store)

	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	gt.Error(t, err)
	gt.Value(t, report).Nil()
	gt.String(t, err.Error()).Contains("failed to commit release state")
}

func TestWatch_StaleEntriesSurviveCommit(t *testing.T) {
	ctx := context.Background()

	release := model.ReleaseRecord{ID: "v2.0.0", Title: "v2.0.0"}
	stale := model.ReleaseRecord{ID: "v0.9.0", Title: "v0.9.0"}

	store := &MockStateStore{
		loadFunc: func(ctx context.Context) (model.ReleaseState, error) {
			return model.ReleaseState{
				types.SourceID("retired/repo"): stale,
			}, nil
		},
	}

	uc := usecase.NewWatch(feedWith(release), store)

	_, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("example/repo"), URL: "https://example.com/feed"},
	})

	// The snapshot is the loaded state plus this pass's updates; entries for
	// sources no longer watched are preserved.
	gt.NoError(t, err)
	gt.Value(t, len(store.saveCalls)).Equal(1)
	saved := store.saveCalls[0]
	gt.Value(t, saved[types.SourceID("retired/repo")].ID).Equal("v0.9.0")
	gt.Value(t, saved[types.SourceID("example/repo")].ID).Equal("v2.0.0")
}

func TestWatch_ConcurrentFetch(t *testing.T) {
	ctx := context.Background()

	feed := &MockFeedSource{
		fetchFunc: func(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
			time.Sleep(10 * time.Millisecond)
			return []model.ReleaseRecord{
				{ID: "release-" + src.ID.String(), Title: src.ID.String()},
			}, nil
		},
	}
	store := &MockStateStore{}
	sink := &MockNotifier{}

	uc := usecase.NewWatch(feed, store,
		usecase.WithNotifiers(sink),
		usecase.WithConcurrency(4),
	)

	sources := []model.TrackedSource{
		{ID: types.SourceID("a/one"), URL: "https://example.com/a"},
		{ID: types.SourceID("b/two"), URL: "https://example.com/b"},
		{ID: types.SourceID("c/three"), URL: "https://example.com/c"},
		{ID: types.SourceID("d/four"), URL: "https://example.com/d"},
	}

	report, err := uc.Run(ctx, sources)

	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusUpdated)).Equal(4)
	gt.Value(t, report.NotifiedCount()).Equal(4)
	gt.Value(t, len(feed.FetchCalls())).Equal(4)

	gt.Value(t, len(store.saveCalls)).Equal(1)
	gt.Value(t, len(store.saveCalls[0])).Equal(4)
	for _, src := range sources {
		gt.Value(t, store.saveCalls[0][src.ID].ID).Equal("release-" + src.ID.String())
	}
}

func TestWatch_FetchTimeoutCutsOffHungSource(t *testing.T) {
	ctx := context.Background()

	feed := &MockFeedSource{
		fetchFunc: func(ctx context.Context, src model.TrackedSource) ([]model.ReleaseRecord, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(5 * time.Second):
				return []model.ReleaseRecord{{ID: "too-late"}}, nil
			}
		},
	}
	store := &MockStateStore{}

	uc := usecase.NewWatch(feed, store,
		usecase.WithFetchTimeout(20*time.Millisecond),
	)

	start := time.Now()
	report, err := uc.Run(ctx, []model.TrackedSource{
		{ID: types.SourceID("slow/repo"), URL: "https://example.com/slow"},
	})

	gt.NoError(t, err)
	gt.Value(t, report.Count(model.StatusFailed)).Equal(1)

	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("hung fetch was not cut off: took %s", elapsed)
	}
}
