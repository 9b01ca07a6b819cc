package requestid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// New generates a random UUID v4. It identifies an HTTP request or one run
// of a scheduled pass.
func New() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from ctx. Returns "" if absent.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}
