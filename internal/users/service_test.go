package users

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type fixture struct {
	repo *Repository
	svc  Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo, nil)
	require.NoError(t, err)
	return fixture{repo: repo, svc: svc}
}

func (f fixture) seedAccount(t *testing.T, email string, role enums.Role) *models.Account {
	t.Helper()
	hash := "$argon2id$v=19$m=65536,t=1,p=1$c2FsdA$aGFzaA"
	account := &models.Account{
		Email:        &email,
		FirstName:    "Test",
		LastName:     "Account",
		PasswordHash: &hash,
		Role:         role,
		Provider:     enums.AuthProviderEmail,
	}
	require.NoError(t, f.repo.Create(context.Background(), account))
	return account
}

func (f fixture) seedProduct(t *testing.T) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        "Canvas Tote",
		Description: "A sturdy canvas tote bag",
		Color:       "natural",
		Sizes:       []string{"one-size"},
		Gender:      enums.GenderUnisex,
		Price:       decimal.RequireFromString("24.50"),
		ImageURL:    "https://cdn.example.com/tote.png",
		IsActive:    true,
	}
	require.NoError(t, f.repo.db.Create(product).Error)
	return product
}

func actorFor(a *models.Account) auth.Actor {
	return auth.Actor{AccountID: a.ID, Role: a.Role}
}

func TestAccountDTOOmitsCredentials(t *testing.T) {
	f := newFixture(t)
	account := f.seedAccount(t, "dto@example.com", enums.RoleMember)

	dto, err := f.svc.Get(context.Background(), actorFor(account), account.ID)
	require.NoError(t, err)

	raw, err := json.Marshal(dto)
	require.NoError(t, err)
	body := string(raw)
	assert.NotContains(t, body, "password")
	assert.NotContains(t, body, "argon2id")
	assert.NotContains(t, body, "reset_token")
	assert.Contains(t, body, "dto@example.com")
}

func TestGetRequiresOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	owner := f.seedAccount(t, "owner@example.com", enums.RoleMember)
	other := f.seedAccount(t, "other@example.com", enums.RoleMember)
	admin := f.seedAccount(t, "admin@example.com", enums.RoleAdmin)

	_, err := f.svc.Get(context.Background(), actorFor(other), owner.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Get(context.Background(), auth.Actor{}, owner.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	dto, err := f.svc.Get(context.Background(), actorFor(admin), owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, dto.ID)

	_, err = f.svc.Get(context.Background(), actorFor(admin), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateRoleIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	member := f.seedAccount(t, "member@example.com", enums.RoleMember)
	admin := f.seedAccount(t, "root@example.com", enums.RoleAdmin)
	ctx := context.Background()

	role := "admin"
	_, err := f.svc.Update(ctx, actorFor(member), member.ID, UpdateAccountRequest{Role: &role})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	name := "  Renamed "
	dto, err := f.svc.Update(ctx, actorFor(member), member.ID, UpdateAccountRequest{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", dto.FirstName)
	assert.Equal(t, enums.RoleMember, dto.Role)

	merchant := "merchant"
	dto, err = f.svc.Update(ctx, actorFor(admin), member.ID, UpdateAccountRequest{Role: &merchant})
	require.NoError(t, err)
	assert.Equal(t, enums.RoleMerchant, dto.Role)

	bogus := "owner"
	_, err = f.svc.Update(ctx, actorFor(admin), member.ID, UpdateAccountRequest{Role: &bogus})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestListAndDeleteRequireAdmin(t *testing.T) {
	f := newFixture(t)
	member := f.seedAccount(t, "a@example.com", enums.RoleMember)
	admin := f.seedAccount(t, "b@example.com", enums.RoleAdmin)
	f.seedAccount(t, "c@example.com", enums.RoleMerchant)
	ctx := context.Background()

	_, err := f.svc.List(ctx, actorFor(member), pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	page, err := f.svc.List(ctx, actorFor(admin), pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.EqualValues(t, 3, page.Meta.Total)
	assert.True(t, page.Meta.HasNext)

	require.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, actorFor(member), member.ID), pkgerrors.CodeForbidden))
	require.NoError(t, f.svc.Delete(ctx, actorFor(admin), member.ID))
	assert.True(t, pkgerrors.IsCode(f.svc.Delete(ctx, actorFor(admin), member.ID), pkgerrors.CodeNotFound))
}

func TestFavorites(t *testing.T) {
	f := newFixture(t)
	account := f.seedAccount(t, "fav@example.com", enums.RoleMember)
	stranger := f.seedAccount(t, "stranger@example.com", enums.RoleMember)
	product := f.seedProduct(t)
	actor := actorFor(account)
	ctx := context.Background()

	require.NoError(t, f.svc.AddFavorite(ctx, actor, account.ID, product.ID))

	err := f.svc.AddFavorite(ctx, actor, account.ID, product.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)

	err = f.svc.AddFavorite(ctx, actor, account.ID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	err = f.svc.AddFavorite(ctx, actorFor(stranger), account.ID, product.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	favs, err := f.svc.ListFavorites(ctx, actor, account.ID)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, product.ID, favs[0].ID)
	assert.Equal(t, "24.50", favs[0].Price)

	require.NoError(t, f.svc.RemoveFavorite(ctx, actor, account.ID, product.ID))
	err = f.svc.RemoveFavorite(ctx, actor, account.ID, product.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRepositoryResetTokenIsSingleUse(t *testing.T) {
	f := newFixture(t)
	account := f.seedAccount(t, "reset@example.com", enums.RoleMember)
	ctx := context.Background()

	digest := strings.Repeat("ab", 32)
	require.NoError(t, f.repo.SetResetToken(ctx, account.ID, digest, time.Now().UTC().Add(time.Hour)))

	found, err := f.repo.FindByResetTokenHash(ctx, digest, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	ok, err := f.repo.ConsumeResetToken(ctx, account.ID, digest, "new-hash")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.repo.ConsumeResetToken(ctx, account.ID, digest, "other-hash")
	require.NoError(t, err)
	assert.False(t, ok)

	reloaded, err := f.repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.PasswordHash)
	assert.Equal(t, "new-hash", *reloaded.PasswordHash)
	assert.Nil(t, reloaded.ResetTokenHash)
}
