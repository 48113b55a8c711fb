package reports

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListFilters narrows report listings. Nil fields are ignored.
type ListFilters struct {
	Status   *enums.ReportStatus
	Type     *enums.ReportType
	Priority *enums.ReportPriority
	FilerID  *uuid.UUID
}

// Repository defines persistence for reports.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Report, int64, error)
	CountBy(ctx context.Context, column string) (map[string]int64, error)
	UpdateGuarded(ctx context.Context, id uuid.UUID, guard []enums.ReportStatus, updates map[string]any) (bool, error)
	ApplyTransition(ctx context.Context, id uuid.UUID, tr Transition, now time.Time) (bool, error)
	DeleteGuarded(ctx context.Context, id uuid.UUID, guard []enums.ReportStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, report *models.Report) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	var report models.Report
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Report, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Report{})
	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.Type != nil {
		q = q.Where("report_type = ?", *filters.Type)
	}
	if filters.Priority != nil {
		q = q.Where("priority = ?", *filters.Priority)
	}
	if filters.FilerID != nil {
		q = q.Where("filer_id = ?", *filters.FilerID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	params = params.Normalize()
	var rows []models.Report
	err := q.Order("created_at DESC").Order("id DESC").Limit(params.Limit).Offset(params.Offset()).Find(&rows).Error
	return rows, total, err
}

type bucket struct {
	Label string
	Total int64
}

// CountBy groups all reports by one of status, report_type or priority.
func (r *repository) CountBy(ctx context.Context, column string) (map[string]int64, error) {
	var rows []bucket
	err := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Select(column + " AS label, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Label] = row.Total
	}
	return out, nil
}

func (r *repository) UpdateGuarded(ctx context.Context, id uuid.UUID, guard []enums.ReportStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Report{}).
		Where("id = ? AND status IN ?", id, guard).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ApplyTransition writes a status change. resolved_at is set with COALESCE so
// a concurrent resolution cannot overwrite the first timestamp.
func (r *repository) ApplyTransition(ctx context.Context, id uuid.UUID, tr Transition, now time.Time) (bool, error) {
	updates := map[string]any{"status": tr.To}
	if tr.AdminResponse != nil {
		updates["admin_response"] = *tr.AdminResponse
	}
	if tr.StampResolved {
		updates["resolved_at"] = gorm.Expr("COALESCE(resolved_at, ?)", now)
	}
	return r.UpdateGuarded(ctx, id, tr.Guard, updates)
}

func (r *repository) DeleteGuarded(ctx context.Context, id uuid.UUID, guard []enums.ReportStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status IN ?", id, guard).
		Delete(&models.Report{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
