package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type recordedTransition struct {
	from, to string
	override bool
}

type stubRecorder struct {
	transitions []recordedTransition
	rejected    []string
}

func (r *stubRecorder) Transition(_ string, from, to string) {
	r.transitions = append(r.transitions, recordedTransition{from: from, to: to})
}

func (r *stubRecorder) Override(_ string, from, to string) {
	r.transitions = append(r.transitions, recordedTransition{from: from, to: to, override: true})
}

func (r *stubRecorder) Rejected(_ string, reason string) {
	r.rejected = append(r.rejected, reason)
}

type orderFixture struct {
	conn     *gorm.DB
	svc      Service
	recorder *stubRecorder
	now      time.Time
	buyer    auth.Actor
	admin    auth.Actor
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &orderFixture{
		conn:     conn,
		recorder: &stubRecorder{},
		now:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		buyer:    auth.Actor{AccountID: uuid.New(), Role: enums.RoleMember},
		admin:    auth.Actor{AccountID: uuid.New(), Role: enums.RoleAdmin},
	}
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Tx:      db.Wrap(conn),
		Outbox:  outbox.NewService(outbox.NewRepository(conn), nil),
		Metrics: f.recorder,
		Now:     func() time.Time { return f.now },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *orderFixture) seedProduct(t *testing.T, price string, active bool) models.Product {
	t.Helper()
	product := models.Product{
		Name:        "Linen Shirt",
		Description: "Breathable linen shirt",
		Color:       "white",
		Sizes:       []string{"S", "M", "L"},
		Gender:      enums.GenderUnisex,
		Price:       decimal.RequireFromString(price),
		ImageURL:    "https://cdn.example.com/shirt.png",
		IsActive:    active,
	}
	require.NoError(t, f.conn.Create(&product).Error)
	return product
}

func (f *orderFixture) placeOrder(t *testing.T) *OrderDTO {
	t.Helper()
	product := f.seedProduct(t, "19.99", true)
	order, err := f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{
		Items:   []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
		Address: "742 Evergreen Terrace, Springfield",
	})
	require.NoError(t, err)
	return order
}

func (f *orderFixture) forceStatus(t *testing.T, id uuid.UUID, status enums.OrderStatus) {
	t.Helper()
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", id).Update("status", status).Error)
}

func (f *orderFixture) outboxCount(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateOrderSnapshotsPricesAndTotals(t *testing.T) {
	f := newOrderFixture(t)
	shirt := f.seedProduct(t, "19.99", true)
	hat := f.seedProduct(t, "5.10", true)
	size := "m"
	sizeUpper := "M"

	order, err := f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{
		Items: []CreateOrderItem{
			{ProductID: shirt.ID, Quantity: 3, Size: &sizeUpper},
			{ProductID: hat.ID, Quantity: 2},
		},
		Address: "  221B Baker Street, London  ",
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.Equal(t, f.buyer.AccountID, order.BuyerID)
	assert.Equal(t, "221B Baker Street, London", order.Address)
	assert.True(t, order.TotalAmount.Equal(decimal.RequireFromString("70.17")), "total %s", order.TotalAmount)
	assert.Len(t, order.Items, 2)
	assert.True(t, order.CanBeCancelled)
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventOrderCreated))

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", shirt.ID).Update("price", "99.00").Error)
	reloaded, err := f.svc.Get(context.Background(), f.buyer, order.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.TotalAmount.Equal(order.TotalAmount))

	_, err = f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{
		Items:   []CreateOrderItem{{ProductID: shirt.ID, Quantity: 1, Size: &size}},
		Address: "221B Baker Street, London",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "unknown size should fail: %v", err)
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{Address: "742 Evergreen Terrace"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	assert.EqualValues(t, 0, f.outboxCount(t, enums.EventOrderCreated))
}

func TestCreateOrderAddressAndNotesCountCharacters(t *testing.T) {
	notes := func(s string) *string { return &s }
	cases := []struct {
		name    string
		address string
		notes   *string
		valid   bool
	}{
		{name: "address at minimum", address: strings.Repeat("a", 10), valid: true},
		{name: "address below minimum", address: strings.Repeat("a", 9)},
		{name: "address at maximum", address: strings.Repeat("a", 500), valid: true},
		{name: "address above maximum", address: strings.Repeat("a", 501)},
		{name: "multibyte address", address: strings.Repeat("東", 200), valid: true},
		{name: "multibyte address at maximum", address: strings.Repeat("東", 500), valid: true},
		{name: "multibyte address above maximum", address: strings.Repeat("東", 501)},
		{name: "multibyte address at minimum", address: strings.Repeat("é", 10), valid: true},
		{name: "short multibyte address", address: strings.Repeat("é", 9)},
		{name: "notes at maximum", address: "742 Evergreen Terrace", notes: notes(strings.Repeat("a", 1000)), valid: true},
		{name: "notes above maximum", address: "742 Evergreen Terrace", notes: notes(strings.Repeat("a", 1001))},
		{name: "multibyte notes at maximum", address: "742 Evergreen Terrace", notes: notes(strings.Repeat("ü", 1000)), valid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newOrderFixture(t)
			product := f.seedProduct(t, "10.00", true)

			order, err := f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{
				Items:   []CreateOrderItem{{ProductID: product.ID, Quantity: 1}},
				Address: tc.address,
				Notes:   tc.notes,
			})
			if tc.valid {
				require.NoError(t, err)
				assert.Equal(t, tc.address, order.Address)
				return
			}
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestCreateOrderRejectsUnknownOrInactiveProducts(t *testing.T) {
	f := newOrderFixture(t)
	inactive := f.seedProduct(t, "10.00", false)

	_, err := f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{
		Items:   []CreateOrderItem{{ProductID: uuid.New(), Quantity: 1}},
		Address: "742 Evergreen Terrace",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(context.Background(), f.buyer, CreateOrderRequest{
		Items:   []CreateOrderItem{{ProductID: inactive.ID, Quantity: 1}},
		Address: "742 Evergreen Terrace",
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Create(context.Background(), auth.Actor{}, CreateOrderRequest{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestCancelMatrix(t *testing.T) {
	cases := []struct {
		status enums.OrderStatus
		ok     bool
	}{
		{enums.OrderStatusPending, true},
		{enums.OrderStatusProcessing, true},
		{enums.OrderStatusShipped, false},
		{enums.OrderStatusDelivered, false},
		{enums.OrderStatusCancelled, false},
		{enums.OrderStatusReturned, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			f := newOrderFixture(t)
			order := f.placeOrder(t)
			f.forceStatus(t, order.ID, tc.status)

			cancelled, err := f.svc.Cancel(context.Background(), f.buyer, order.ID)
			if !tc.ok {
				require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition), "got %v", err)
				assert.Equal(t, []string{string(pkgerrors.CodeIllegalTransition)}, f.recorder.rejected)
				assert.EqualValues(t, 0, f.outboxCount(t, enums.EventOrderStatusChanged))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
			assert.Nil(t, cancelled.DeliveredAt)
			assert.EqualValues(t, 1, f.outboxCount(t, enums.EventOrderStatusChanged))
			require.Len(t, f.recorder.transitions, 1)
			assert.Equal(t, recordedTransition{from: string(tc.status), to: "cancelled"}, f.recorder.transitions[0])
		})
	}
}

func TestCancelOwnershipAndMissing(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	stranger := auth.Actor{AccountID: uuid.New(), Role: enums.RoleMember}

	_, err := f.svc.Cancel(context.Background(), stranger, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Cancel(context.Background(), f.buyer, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	cancelled, err := f.svc.Cancel(context.Background(), f.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
}

func TestGuardedUpdateRejectsStaleStatus(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	repo := NewRepository(f.conn)
	f.forceStatus(t, order.ID, enums.OrderStatusShipped)

	ok, err := repo.UpdateGuarded(context.Background(), order.ID, enums.CancellableOrderStatuses(), map[string]any{"status": enums.OrderStatusCancelled})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteGuarded(context.Background(), order.ID, enums.CancellableOrderStatuses())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdminUpdate(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	ctx := context.Background()

	_, err := f.svc.AdminUpdate(ctx, f.buyer, order.ID, UpdateOrderRequest{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	bogus := "lost"
	_, err = f.svc.AdminUpdate(ctx, f.admin, order.ID, UpdateOrderRequest{Status: &bogus})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus))

	processing := "processing"
	tracking := " 1z999aa10123456784 "
	updated, err := f.svc.AdminUpdate(ctx, f.admin, order.ID, UpdateOrderRequest{Status: &processing, TrackingNumber: &tracking})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, updated.Status)
	require.NotNil(t, updated.TrackingNumber)
	assert.Equal(t, "1Z999AA10123456784", *updated.TrackingNumber)
	assert.Nil(t, updated.DeliveredAt)

	delivered := "delivered"
	updated, err = f.svc.AdminUpdate(ctx, f.admin, order.ID, UpdateOrderRequest{Status: &delivered})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusDelivered, updated.Status)
	require.NotNil(t, updated.DeliveredAt)
	assert.True(t, updated.DeliveredAt.Equal(f.now))
	assert.False(t, updated.CanBeCancelled)

	require.Len(t, f.recorder.transitions, 2)
	assert.False(t, f.recorder.transitions[0].override)
	assert.True(t, f.recorder.transitions[1].override, "processing -> delivered skips shipped")
	assert.EqualValues(t, 2, f.outboxCount(t, enums.EventOrderStatusChanged))
}

func TestDeleteOrder(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	shipped := f.placeOrder(t)
	f.forceStatus(t, shipped.ID, enums.OrderStatusShipped)
	err := f.svc.Delete(ctx, f.buyer, shipped.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition))

	pending := f.placeOrder(t)
	require.NoError(t, f.svc.Delete(ctx, f.buyer, pending.ID))
	_, err = f.svc.Get(ctx, f.buyer, pending.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	var items int64
	require.NoError(t, f.conn.Model(&models.OrderItem{}).Where("order_id = ?", pending.ID).Count(&items).Error)
	assert.Zero(t, items)
	assert.EqualValues(t, 1, f.outboxCount(t, enums.EventOrderDeleted))
}

func TestListings(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	first := f.placeOrder(t)
	f.placeOrder(t)
	f.forceStatus(t, first.ID, enums.OrderStatusShipped)

	_, err := f.svc.List(ctx, f.buyer, pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	all, err := f.svc.List(ctx, f.admin, pagination.Params{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Meta.Total)

	shipped, err := f.svc.ListByStatus(ctx, f.admin, "shipped", pagination.Params{})
	require.NoError(t, err)
	require.Len(t, shipped.Items, 1)
	assert.Equal(t, first.ID, shipped.Items[0].ID)

	_, err = f.svc.ListByStatus(ctx, f.admin, "unknown", pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus))

	mine, err := f.svc.ListByBuyer(ctx, f.buyer, f.buyer.AccountID, pagination.Params{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)
	assert.True(t, mine.Meta.HasNext)

	_, err = f.svc.ListByBuyer(ctx, auth.Actor{AccountID: uuid.New(), Role: enums.RoleMember}, f.buyer.AccountID, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
