package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims is the signed payload of a session token. The subject is the
// account id; role is deliberately absent so that every request re-reads it.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *SessionClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SessionToken is a minted token together with the times it carries.
type SessionToken struct {
	Value     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
