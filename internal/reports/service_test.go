package reports

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

type reportFixture struct {
	conn  *gorm.DB
	svc   Service
	clock time.Time
	filer auth.Actor
	admin auth.Actor
	order models.Order
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &reportFixture{
		conn:  conn,
		clock: time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC),
		filer: auth.Actor{AccountID: uuid.New(), Role: enums.RoleMember},
		admin: auth.Actor{AccountID: uuid.New(), Role: enums.RoleAdmin},
	}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     db.Wrap(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Now:    func() time.Time { return f.clock },
	})
	require.NoError(t, err)
	f.svc = svc

	f.order = models.Order{
		BuyerID:     f.filer.AccountID,
		Status:      enums.OrderStatusDelivered,
		Address:     "10 Downing Street, London",
		TotalAmount: decimal.RequireFromString("12.00"),
		OrderedAt:   f.clock.Add(-72 * time.Hour),
	}
	require.NoError(t, conn.Create(&f.order).Error)
	return f
}

func (f *reportFixture) file(t *testing.T) *ReportDTO {
	t.Helper()
	report, err := f.svc.Create(context.Background(), f.filer, CreateReportRequest{
		OrderID: f.order.ID,
		Content: "The parcel arrived with a torn corner.",
	})
	require.NoError(t, err)
	return report
}

func (f *reportFixture) statusEvents(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventReportStatusChanged).Count(&n).Error)
	return n
}

func TestCreateReportDefaultsAndOwnership(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	report := f.file(t)
	assert.Equal(t, enums.ReportStatusOpen, report.Status)
	assert.Equal(t, enums.ReportTypeOther, report.Type)
	assert.Equal(t, enums.ReportPriorityMedium, report.Priority)
	assert.Nil(t, report.ResolvedAt)
	assert.True(t, report.CanBeModified)

	stranger := auth.Actor{AccountID: uuid.New(), Role: enums.RoleMember}
	_, err := f.svc.Create(ctx, stranger, CreateReportRequest{OrderID: f.order.ID, Content: "Not my order but complaining"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.Create(ctx, f.filer, CreateReportRequest{OrderID: uuid.New(), Content: "Unknown order complaint"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.Create(ctx, f.filer, CreateReportRequest{OrderID: f.order.ID, Content: "short"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	bad := "complaint"
	_, err = f.svc.Create(ctx, f.filer, CreateReportRequest{OrderID: f.order.ID, Content: "A valid length content", Type: &bad})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Get(ctx, stranger, report.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestResolveTwice(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	report := f.file(t)

	response := "Refund issued"
	resolved, err := f.svc.Resolve(ctx, f.admin, report.ID, ResolveRequest{AdminResponse: &response})
	require.NoError(t, err)
	assert.Equal(t, enums.ReportStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	assert.True(t, resolved.ResolvedAt.Equal(f.clock))
	require.NotNil(t, resolved.AdminResponse)
	assert.Equal(t, response, *resolved.AdminResponse)
	assert.False(t, resolved.CanBeModified)

	f.clock = f.clock.Add(time.Hour)
	_, err = f.svc.Resolve(ctx, f.admin, report.ID, ResolveRequest{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyResolved), "got %v", err)

	after, err := f.svc.Get(ctx, f.admin, report.ID)
	require.NoError(t, err)
	assert.True(t, after.ResolvedAt.Equal(resolved.ResolvedAt.UTC()))
	assert.EqualValues(t, 1, f.statusEvents(t))
}

func TestResolveKeepsResponseWhenOmitted(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	report := f.file(t)

	note := "Looking into it"
	_, err := f.svc.SetStatus(ctx, f.admin, report.ID, SetStatusRequest{Status: "in_progress", AdminResponse: &note})
	require.NoError(t, err)

	resolved, err := f.svc.Resolve(ctx, f.admin, report.ID, ResolveRequest{})
	require.NoError(t, err)
	require.NotNil(t, resolved.AdminResponse)
	assert.Equal(t, note, *resolved.AdminResponse)
}

func TestSetStatusStampsResolvedAtOnce(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	report := f.file(t)

	resolved, err := f.svc.SetStatus(ctx, f.admin, report.ID, SetStatusRequest{Status: "resolved"})
	require.NoError(t, err)
	first := *resolved.ResolvedAt

	f.clock = f.clock.Add(24 * time.Hour)
	reopened, err := f.svc.SetStatus(ctx, f.admin, report.ID, SetStatusRequest{Status: "open"})
	require.NoError(t, err)
	require.NotNil(t, reopened.ResolvedAt, "resolvedAt is never cleared")

	again, err := f.svc.SetStatus(ctx, f.admin, report.ID, SetStatusRequest{Status: "resolved"})
	require.NoError(t, err)
	assert.True(t, again.ResolvedAt.Equal(first), "resolvedAt must keep the first stamp")

	closed, err := f.svc.SetStatus(ctx, f.admin, report.ID, SetStatusRequest{Status: "closed"})
	require.NoError(t, err)
	assert.Equal(t, enums.ReportStatusClosed, closed.Status)

	_, err = f.svc.SetStatus(ctx, f.admin, report.ID, SetStatusRequest{Status: "archived"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus))

	_, err = f.svc.SetStatus(ctx, f.filer, report.ID, SetStatusRequest{Status: "closed"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.SetStatus(ctx, f.admin, uuid.New(), SetStatusRequest{Status: "closed"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestUpdateAndDeleteRespectImmutability(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	report := f.file(t)

	content := "Updated: the parcel also arrived two days late."
	priority := "HIGH"
	updated, err := f.svc.Update(ctx, f.filer, report.ID, UpdateReportRequest{Content: &content, Priority: &priority})
	require.NoError(t, err)
	assert.Equal(t, content, updated.Content)
	assert.Equal(t, enums.ReportPriorityHigh, updated.Priority)

	_, err = f.svc.Resolve(ctx, f.admin, report.ID, ResolveRequest{})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.filer, report.ID, UpdateReportRequest{Content: &content})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeImmutable))
	err = f.svc.Delete(ctx, f.filer, report.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeImmutable))

	other := f.file(t)
	require.NoError(t, f.svc.Delete(ctx, f.filer, other.ID))
	_, err = f.svc.Get(ctx, f.filer, other.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestGuardedTransitionSeesConcurrentResolution(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	report := f.file(t)
	repo := NewRepository(f.conn)

	loaded, err := repo.FindByID(ctx, report.ID)
	require.NoError(t, err)
	plan, err := PlanResolve(loaded, nil)
	require.NoError(t, err)

	ok, err := repo.ApplyTransition(ctx, report.ID, plan, f.clock)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ApplyTransition(ctx, report.ID, plan, f.clock.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok, "second resolution from a stale read must not apply")

	stored, err := repo.FindByID(ctx, report.ID)
	require.NoError(t, err)
	assert.True(t, stored.ResolvedAt.Equal(f.clock))
}

func TestListingsAndStats(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	first := f.file(t)
	f.file(t)
	urgent := "urgent"
	delivery := "delivery"
	_, err := f.svc.Create(ctx, f.filer, CreateReportRequest{
		OrderID:  f.order.ID,
		Content:  strings.Repeat("late ", 4),
		Type:     &delivery,
		Priority: &urgent,
	})
	require.NoError(t, err)
	_, err = f.svc.Resolve(ctx, f.admin, first.ID, ResolveRequest{})
	require.NoError(t, err)

	_, err = f.svc.Stats(ctx, f.filer)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	stats, err := f.svc.Stats(ctx, f.admin)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 2, stats.ByStatus["open"])
	assert.EqualValues(t, 1, stats.ByStatus["resolved"])
	assert.EqualValues(t, 0, stats.ByStatus["closed"])
	assert.EqualValues(t, 1, stats.ByType["delivery"])
	assert.EqualValues(t, 1, stats.ByPriority["urgent"])

	page, err := f.svc.List(ctx, f.admin, ListQuery{Priority: "urgent"}, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = f.svc.List(ctx, f.admin, ListQuery{Status: "pending"}, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidStatus))

	open, err := f.svc.ListByStatus(ctx, f.admin, "open", pagination.Params{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, open.Meta.Total)

	mine, err := f.svc.ListByFiler(ctx, f.filer, f.filer.AccountID, pagination.Params{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, mine.Meta.Total)

	_, err = f.svc.ListByFiler(ctx, auth.Actor{AccountID: uuid.New(), Role: enums.RoleMerchant}, f.filer.AccountID, pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
