package actorctx

import (
	"context"

	"github.com/taskhub/taskhub/internal/authz"
)

type ctxKey struct{}

// WithPrincipal stashes the authenticated principal on a plain
// context.Context so layers below the HTTP handlers (log handlers,
// request loggers) can attribute work to a caller without importing gin.
func WithPrincipal(ctx context.Context, p authz.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (authz.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(authz.Principal)

	return p, ok && p.ID != ""
}
