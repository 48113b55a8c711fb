package product

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func sampleRequest(name, price string) ProductRequest {
	return ProductRequest{
		Name:        name,
		Description: "soft cotton",
		Color:       "Blue",
		Sizes:       []string{"S", " M ", ""},
		Gender:      "Unisex",
		Price:       decimal.RequireFromString(price),
		ImageURL:    "https://cdn.example.com/p.png",
	}
}

func TestCreateValidatesAndNormalizes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleRequest("Tee", "19.999"))
	require.NoError(t, err)
	assert.Equal(t, []string{"S", "M"}, created.Sizes)
	assert.Equal(t, "unisex", string(created.Gender))
	assert.Equal(t, "20.00", created.Price.StringFixed(2))
	assert.True(t, created.IsActive)

	bad := sampleRequest("Tee", "-1")
	_, err = svc.Create(ctx, bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad = sampleRequest("Tee", "5")
	bad.Gender = "robot"
	_, err = svc.Create(ctx, bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad = sampleRequest("Tee", "5")
	bad.Sizes = []string{" "}
	_, err = svc.Create(ctx, bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	missing := uuid.New()
	bad = sampleRequest("Tee", "5")
	bad.CategoryID = &missing
	_, err = svc.Create(ctx, bad)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestInactiveProductsHiddenFromActiveListing(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	inactive := false
	req := sampleRequest("Hidden", "10")
	req.IsActive = &inactive
	hidden, err := svc.Create(ctx, req)
	require.NoError(t, err)
	assert.False(t, hidden.IsActive)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", hidden.ID).Error)
	assert.False(t, stored.IsActive)

	_, err = svc.Create(ctx, sampleRequest("Shown", "10"))
	require.NoError(t, err)

	page, err := svc.ListActive(ctx, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Shown", page.Items[0].Name)

	all, err := svc.Filter(ctx, FilterQuery{Status: "all"}, pagination.Params{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Meta.Total)
}

func TestFilter(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	category := models.Category{ID: uuid.New(), Name: "Shirts", IsActive: true}
	require.NoError(t, conn.Create(&category).Error)

	cheap := sampleRequest("Basic tee", "9.50")
	cheap.CategoryID = &category.ID
	_, err := svc.Create(ctx, cheap)
	require.NoError(t, err)

	pricey := sampleRequest("Linen shirt", "80")
	pricey.Gender = "male"
	pricey.Color = "White"
	_, err = svc.Create(ctx, pricey)
	require.NoError(t, err)

	page, err := svc.Filter(ctx, FilterQuery{MinPrice: "10"}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Linen shirt", page.Items[0].Name)

	page, err = svc.Filter(ctx, FilterQuery{MaxPrice: "10", CategoryID: category.ID.String()}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Category)
	assert.Equal(t, "Shirts", page.Items[0].Category.Name)

	page, err = svc.Filter(ctx, FilterQuery{Color: "white", Gender: "MALE"}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	page, err = svc.Filter(ctx, FilterQuery{Search: "TEE"}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = svc.Filter(ctx, FilterQuery{Search: "t"}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Filter(ctx, FilterQuery{MinPrice: "50", MaxPrice: "10"}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Filter(ctx, FilterQuery{Status: "archived"}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, sampleRequest("Tee", "12"))
	require.NoError(t, err)

	name := "Better tee"
	price := decimal.RequireFromString("15.5")
	updated, err := svc.Update(ctx, created.ID, UpdateProductRequest{
		Name:  &name,
		Price: &price,
		Sizes: []string{"XL"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Better tee", updated.Name)
	assert.Equal(t, "15.50", updated.Price.StringFixed(2))
	assert.Equal(t, []string{"XL"}, updated.Sizes)

	_, err = svc.Update(ctx, uuid.New(), UpdateProductRequest{Name: &name})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.True(t, pkgerrors.IsCode(svc.Delete(ctx, created.ID), pkgerrors.CodeNotFound))
}
