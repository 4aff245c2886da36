package safe

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/goerr/v2"
)

// Run executes fn synchronously and converts a panic into a returned error,
// so one misbehaving unit of work cannot take down the pass that invoked it.
//
// Behavior:
//   - fn receives the caller's context unchanged
//   - a panic inside fn becomes an error carrying the recovered value and
//     the stack trace
//   - otherwise the result of fn is returned as-is
func Run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in guarded call",
				goerr.V("recover", r),
				goerr.V("stack", string(debug.Stack())),
			)
		}
	}()

	return fn(ctx)
}
