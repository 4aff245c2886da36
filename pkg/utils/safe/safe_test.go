package safe_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/herald/pkg/utils/safe"
)

func TestRun_Success(t *testing.T) {
	err := safe.Run(context.Background(), func(ctx context.Context) error {
		return nil
	})
	gt.NoError(t, err)
}

func TestRun_ErrorPassesThrough(t *testing.T) {
	sentinel := errors.New("fetch failed")

	err := safe.Run(context.Background(), func(ctx context.Context) error {
		return sentinel
	})

	gt.Error(t, err)
	if !errors.Is(err, sentinel) {
		t.Errorf("expected the callee's error unchanged, got %v", err)
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	err := safe.Run(context.Background(), func(ctx context.Context) error {
		panic("adapter bug")
	})

	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("panic in guarded call")
}

func TestRun_PanicWithNonStringValue(t *testing.T) {
	err := safe.Run(context.Background(), func(ctx context.Context) error {
		panic(errors.New("typed panic"))
	})

	gt.Error(t, err)
	gt.String(t, err.Error()).Contains("panic in guarded call")
}

func TestRun_ContextPassedThrough(t *testing.T) {
	type ctxKey struct{}
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")

	err := safe.Run(ctx, func(ctx context.Context) error {
		v, _ := ctx.Value(ctxKey{}).(string)
		gt.Value(t, v).Equal("marker")
		return nil
	})
	gt.NoError(t, err)
}
