package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type tokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

type accountLoader interface {
	FindPublicByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
}

// Gate resolves bearer credentials to live accounts and enforces roles.
type Gate struct {
	tokens   tokenVerifier
	accounts accountLoader
}

func NewGate(tokens tokenVerifier, accounts accountLoader) (*Gate, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token verifier is required")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account loader is required")
	}
	return &Gate{tokens: tokens, accounts: accounts}, nil
}

// AuthenticateRequest turns an Authorization header into the account it
// names. The role is read from the account row, never from the token.
func (g *Gate) AuthenticateRequest(ctx context.Context, header string) (*models.Account, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	accountID, err := g.tokens.Verify(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}
	account, err := g.accounts.FindPublicByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}

// RequireRole fails with UNAUTHORIZED when the actor is anonymous and
// FORBIDDEN when its role is outside allowed.
func RequireRole(actor pkgAuth.Actor, allowed ...enums.Role) error {
	if actor.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !enums.IsAllowed(actor.Role, allowed) {
		return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted")
	}
	return nil
}

// ActorFor converts a loaded account into a service actor.
func ActorFor(account *models.Account) pkgAuth.Actor {
	if account == nil {
		return pkgAuth.Actor{}
	}
	return pkgAuth.Actor{AccountID: account.ID, Role: account.Role}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
