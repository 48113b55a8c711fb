package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type requestAuthenticator interface {
	AuthenticateRequest(ctx context.Context, header string) (*models.Account, error)
}

// Auth resolves the bearer token to a live account and seeds the request
// context with it. The role comes from the account row on every request.
func Auth(gate requestAuthenticator, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := gate.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			actor := auth.ActorFor(account)
			ctx := withAccount(r.Context(), account)
			ctx = WithActor(ctx, actor)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, actor.AccountID.String())
				ctx = logg.WithActorRole(ctx, string(actor.Role))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
