package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type stubGate struct {
	accounts map[string]*models.Account
}

func (s stubGate) AuthenticateRequest(_ context.Context, header string) (*models.Account, error) {
	token, ok := auth.BearerToken(header)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	account, found := s.accounts[token]
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token")
	}
	return account, nil
}

func newStubGate() (stubGate, *models.Account, *models.Account) {
	member := &models.Account{ID: uuid.New(), Role: enums.RoleMember}
	admin := &models.Account{ID: uuid.New(), Role: enums.RoleAdmin}
	return stubGate{accounts: map[string]*models.Account{
		"member-token": member,
		"admin-token":  admin,
	}}, member, admin
}

func TestAuthRejectsMissingToken(t *testing.T) {
	gate, _, _ := newStubGate()
	called := false
	handler := Auth(gate, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	for _, header := range []string{"", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401 got %d", header, resp.Code)
		}
	}
	if called {
		t.Fatal("handler must not run without credentials")
	}
}

func TestAuthRejectsUnknownToken(t *testing.T) {
	gate, _, _ := newStubGate()
	handler := Auth(gate, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthSeedsActor(t *testing.T) {
	gate, member, _ := newStubGate()
	var captured uuid.UUID
	var role enums.Role
	handler := Auth(gate, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFromContext(r.Context())
		captured = actor.AccountID
		role = actor.Role
		if AccountFromContext(r.Context()) == nil {
			t.Error("expected account in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer member-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured != member.ID {
		t.Fatalf("expected actor %s got %s", member.ID, captured)
	}
	if role != enums.RoleMember {
		t.Fatalf("expected member role got %s", role)
	}
}

func TestRequireRoleBlocksBeforeHandler(t *testing.T) {
	gate, _, _ := newStubGate()
	called := false
	handler := Auth(gate, nil)(RequireRole(nil, enums.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer member-token")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	if called {
		t.Fatal("handler must not run for a forbidden role")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin got %d", resp.Code)
	}
}

func TestRequireRoleWithoutAuthIsUnauthorized(t *testing.T) {
	handler := RequireRole(nil, enums.RoleAdmin, enums.RoleMerchant)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
