package categories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, _ := newTestServiceWithDB(t)
	return svc
}

func newTestServiceWithDB(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)
	return svc, conn
}

func TestCreateNormalizesAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CategoryRequest{Name: "  summer   SALE "})
	require.NoError(t, err)
	assert.Equal(t, "Summer sale", created.Name)
	assert.True(t, created.IsActive)

	_, err = svc.Create(ctx, CategoryRequest{Name: "SUMMER sale"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = svc.Create(ctx, CategoryRequest{Name: "x"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCreateInactiveCategoryStaysInactive(t *testing.T) {
	svc, conn := newTestServiceWithDB(t)
	ctx := context.Background()

	inactive := false
	created, err := svc.Create(ctx, CategoryRequest{Name: "hats", IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, created.IsActive)

	var stored models.Category
	require.NoError(t, conn.First(&stored, "id = ?", created.ID).Error)
	assert.False(t, stored.IsActive)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestToggleAndListing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	shoes, err := svc.Create(ctx, CategoryRequest{Name: "shoes"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CategoryRequest{Name: "hats"})
	require.NoError(t, err)

	toggled, err := svc.ToggleStatus(ctx, shoes.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)

	active, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Hats", active[0].Name)

	all, err := svc.List(ctx, pagination.Params{}, true)
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Meta.Total)

	visible, err := svc.List(ctx, pagination.Params{}, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, visible.Meta.Total)
}

func TestSearchUpdateDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	outer, err := svc.Create(ctx, CategoryRequest{Name: "outerwear"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CategoryRequest{Name: "underwear"})
	require.NoError(t, err)

	_, err = svc.Search(ctx, "w")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	found, err := svc.Search(ctx, "WEAR")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	renamed := "UNDERWEAR"
	_, err = svc.Update(ctx, outer.ID, UpdateCategoryRequest{Name: &renamed})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	coats := "coats"
	updated, err := svc.Update(ctx, outer.ID, UpdateCategoryRequest{Name: &coats})
	require.NoError(t, err)
	assert.Equal(t, "Coats", updated.Name)

	require.NoError(t, svc.Delete(ctx, outer.ID))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, outer.ID), pkgerrors.CodeNotFound))
	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
