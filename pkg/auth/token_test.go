package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret: "test-signing-secret",
		Issuer: "storefront",
		TTL:    7 * 24 * time.Hour,
	}
}

func TestMintAndParseSessionToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accountID := uuid.New()

	token, err := MintSessionToken(cfg, now, accountID)
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}
	if !token.ExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected 7 day expiry, got %v", token.ExpiresAt)
	}

	claims, err := ParseSessionToken(cfg, now, token.Value)
	if err != nil {
		t.Fatalf("parse session token: %v", err)
	}
	got, err := claims.AccountID()
	if err != nil || got != accountID {
		t.Fatalf("expected subject %s, got %s (%v)", accountID, got, err)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("expected issuer %s, got %s", cfg.Issuer, claims.Issuer)
	}
	if claims.IssuedAt == nil || !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("unexpected iat %v", claims.IssuedAt)
	}
}

func TestParseSessionTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now()
	token, err := MintSessionToken(cfg, now, uuid.New())
	if err != nil {
		t.Fatalf("mint session token: %v", err)
	}

	other := cfg
	other.Secret = "another-signing-secret"
	if _, err := ParseSessionToken(other, now, token.Value); err == nil {
		t.Fatal("expected signature validation to fail")
	}
}

func TestParseSessionTokenRejectsMalformed(t *testing.T) {
	cfg := testJWTConfig()
	for _, raw := range []string{"", "abc", "a.b.c"} {
		if _, err := ParseSessionToken(cfg, time.Now(), raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	cfg := testJWTConfig()
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accountID := uuid.New()

	minted := NewTokenManager(cfg).WithClock(func() time.Time { return issued })
	token, err := minted.Issue(accountID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	beforeExpiry := minted.WithClock(func() time.Time { return token.ExpiresAt.Add(-time.Second) })
	got, err := beforeExpiry.Verify(token.Value)
	if err != nil {
		t.Fatalf("expected token valid one second before expiry: %v", err)
	}
	if got != accountID {
		t.Fatalf("expected %s, got %s", accountID, got)
	}

	afterExpiry := minted.WithClock(func() time.Time { return token.ExpiresAt.Add(time.Second) })
	_, err = afterExpiry.Verify(token.Value)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken) {
		t.Fatalf("expected invalid token after expiry, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid session token") {
		t.Fatalf("unexpected error text %q", err.Error())
	}
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	manager := NewTokenManager(testJWTConfig())
	token, err := manager.Issue(uuid.New())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := manager.Verify(token.Value + "x"); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
	if _, err := manager.Verify("  "); !pkgerrors.IsCode(err, pkgerrors.CodeInvalidToken) {
		t.Fatalf("expected invalid token for blank input, got %v", err)
	}
}

func TestActorCanAccess(t *testing.T) {
	owner := uuid.New()
	tests := []struct {
		name  string
		actor Actor
		want  bool
	}{
		{name: "owner", actor: Actor{AccountID: owner, Role: enums.RoleMember}, want: true},
		{name: "admin", actor: Actor{AccountID: uuid.New(), Role: enums.RoleAdmin}, want: true},
		{name: "stranger", actor: Actor{AccountID: uuid.New(), Role: enums.RoleMerchant}, want: false},
		{name: "anonymous", actor: Actor{Role: enums.RoleAdmin}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.actor.CanAccess(owner); got != tt.want {
				t.Fatalf("CanAccess = %v, want %v", got, tt.want)
			}
		})
	}

	err := Actor{AccountID: uuid.New(), Role: enums.RoleMember}.RequireOwnerOrAdmin(owner, "order")
	if !pkgerrors.IsCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
