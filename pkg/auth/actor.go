package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	AccountID uuid.UUID
	Role      enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// CanAccess is the ownership-or-admin predicate.
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	if a.AccountID == uuid.Nil || !a.Role.IsValid() {
		return false
	}
	return a.IsAdmin() || a.AccountID == ownerID
}

// RequireOwnerOrAdmin returns a FORBIDDEN error unless CanAccess(ownerID).
func (a Actor) RequireOwnerOrAdmin(ownerID uuid.UUID, resource string) error {
	if a.AccountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if !a.CanAccess(ownerID) {
		return pkgerrors.New(pkgerrors.CodeForbidden, resource+" belongs to another account")
	}
	return nil
}
