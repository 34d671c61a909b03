package ctxutil

import "context"

// Default returns ctx, or context.Background() when ctx is nil. Callers on
// goroutine boundaries use it so nil contexts never reach the drivers.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
