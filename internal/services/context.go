package services

import "context"

type contextKey int

const (
	runIDKey contextKey = iota
	fileKey
	stageKey
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithRunID annotates ctx with the batch run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return withString(ctx, runIDKey, id)
}

func RunIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, runIDKey)
}

// WithFile annotates ctx with the media file being handled.
func WithFile(ctx context.Context, path string) context.Context {
	return withString(ctx, fileKey, path)
}

func FileFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, fileKey)
}

// WithStage annotates ctx with the current step (inspect, encode, finalize).
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}
