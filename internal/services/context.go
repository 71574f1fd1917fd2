package services

import "context"

// ctxKey is unexported so no other package can collide with these values.
type ctxKey int

const (
	jobIDKey ctxKey = iota
	stageKey
	segmentKey
	requestIDKey
)

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if v == "" {
		return ctx
	}
	return context.WithValue(ctx, key, v)
}

// lookup needs no emptiness check: withString never stores "".
func lookup[T any](ctx context.Context, key ctxKey) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithJobID tags ctx with the dubbing job id. Empty ids leave ctx unchanged.
func WithJobID(ctx context.Context, id string) context.Context {
	return withString(ctx, jobIDKey, id)
}

func JobIDFromContext(ctx context.Context) (string, bool) { return lookup[string](ctx, jobIDKey) }

// WithStage tags ctx with the pipeline stage name.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return lookup[string](ctx, stageKey) }

// WithSegment tags ctx with the zero-based index of the segment being voiced.
func WithSegment(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, segmentKey, index)
}

func SegmentFromContext(ctx context.Context) (int, bool) { return lookup[int](ctx, segmentKey) }

// WithRequestID tags ctx with the HTTP correlation id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return lookup[string](ctx, requestIDKey)
}
