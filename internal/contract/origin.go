package contract

import (
	"context"

	"github.com/google/uuid"
)

type originKey struct{}

// WithOrigin attaches the id of the world that initiated the call chain to
// ctx, replacing a package-level mutable "current backtrace" variable with
// ordinary context propagation.
func WithOrigin(ctx context.Context, worldID uuid.UUID) context.Context {
	return context.WithValue(ctx, originKey{}, worldID)
}

// OriginFrom returns the world id attached by WithOrigin, if any.
func OriginFrom(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(originKey{}).(uuid.UUID)
	return v, ok
}
