package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

type contextKey string

const (
	ctxAccount contextKey = "account"
	ctxActor   contextKey = "actor"
)

// ActorFromContext returns the authenticated caller. The zero Actor is
// returned on public routes.
func ActorFromContext(ctx context.Context) pkgAuth.Actor {
	if ctx == nil {
		return pkgAuth.Actor{}
	}
	if v, ok := ctx.Value(ctxActor).(pkgAuth.Actor); ok {
		return v
	}
	return pkgAuth.Actor{}
}

func AccountFromContext(ctx context.Context) *models.Account {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxAccount).(*models.Account); ok {
		return v
	}
	return nil
}

func AccountIDFromContext(ctx context.Context) uuid.UUID {
	return ActorFromContext(ctx).AccountID
}

// WithActor injects an actor into the context. Used by Auth and by tests.
func WithActor(ctx context.Context, actor pkgAuth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func withAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, ctxAccount, account)
}
