package transaction

import (
	"context"

	"gorm.io/gorm"
)

type contextKey struct{}

var transactionKey = contextKey{}

// NewContext returns a copy of ctx carrying tc.
func NewContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, transactionKey, tc)
}

// FromContext returns the transaction carried by ctx, if any.
func FromContext(ctx context.Context) (*Context, bool) {
	tc, ok := ctx.Value(transactionKey).(*Context)
	return tc, ok
}

// SessionFromContext resolves the database handle for ctx: the open request
// transaction when one is present, otherwise fallback bound to ctx.
func SessionFromContext(ctx context.Context, fallback *gorm.DB) (*gorm.DB, error) {
	if tc, ok := FromContext(ctx); ok {
		return tc.Session()
	}
	return fallback.WithContext(ctx), nil
}
