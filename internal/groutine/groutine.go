package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// Go starts a goroutine with a name, optional parent context
// Example usage:
//
//	groutine.Go(ctx, "signal-watcher", func(ctx context.Context) {
//	    // work
//	})
//
// If parentCtx is nil, context.Background() is used.
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	go Labeled(parentCtx, name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})()
}

// Labeled wraps fn so that it runs under pprof goroutine labels carrying name.
// The result fits errgroup.Group.Go.
func Labeled(parentCtx context.Context, name string, fn func(ctx context.Context) error) func() error {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	return func() error {
		var err error
		pprof.Do(parentCtx, pprof.Labels("goroutine_name", name), func(ctx context.Context) {
			err = fn(context.WithValue(ctx, goroutineNameKey, name))
		})
		return err
	}
}

// GetName retrieves the goroutine name from the context.
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(goroutineNameKey).(string); ok {
		return v
	}
	return ""
}
