package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// MintSessionToken signs a token for accountID valid for cfg.TTL from now.
// It performs no I/O.
func MintSessionToken(cfg config.JWTConfig, now time.Time, accountID uuid.UUID) (SessionToken, error) {
	if cfg.Secret == "" {
		return SessionToken{}, fmt.Errorf("jwt secret is required")
	}
	if cfg.TTL <= 0 {
		return SessionToken{}, fmt.Errorf("jwt ttl must be positive")
	}
	if accountID == uuid.Nil {
		return SessionToken{}, fmt.Errorf("account id is required")
	}

	issuedAt := jwt.NewNumericDate(now)
	expiry := jwt.NewNumericDate(now.Add(cfg.TTL))

	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			Issuer:    cfg.Issuer,
			IssuedAt:  issuedAt,
			ExpiresAt: expiry,
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return SessionToken{}, fmt.Errorf("signing jwt: %w", err)
	}
	return SessionToken{Value: signed, IssuedAt: issuedAt.Time, ExpiresAt: expiry.Time}, nil
}

// ParseSessionToken validates signature, issuer and expiry as of now and
// returns the claims.
func ParseSessionToken(cfg config.JWTConfig, now time.Time, tokenString string) (*SessionClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(
		strings.TrimSpace(tokenString),
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.Secret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// TokenManager issues and verifies session tokens against a clock.
type TokenManager struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewTokenManager returns a manager using the wall clock.
func NewTokenManager(cfg config.JWTConfig) *TokenManager {
	return &TokenManager{cfg: cfg, now: time.Now}
}

// WithClock returns a copy of the manager reading time from now.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	clone := *m
	clone.now = now
	return &clone
}

// Issue mints a token for accountID.
func (m *TokenManager) Issue(accountID uuid.UUID) (SessionToken, error) {
	token, err := MintSessionToken(m.cfg, m.now().UTC(), accountID)
	if err != nil {
		return SessionToken{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "issue session token")
	}
	return token, nil
}

// Verify returns the account id a token was issued for. It does not check
// that the account still exists.
func (m *TokenManager) Verify(token string) (uuid.UUID, error) {
	if strings.TrimSpace(token) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInvalidToken, "token is empty")
	}
	claims, err := ParseSessionToken(m.cfg, m.now().UTC(), token)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInvalidToken, err, "invalid session token")
	}
	accountID, err := claims.AccountID()
	if err != nil || accountID == uuid.Nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInvalidToken, err, "token subject is not an account id")
	}
	return accountID, nil
}
