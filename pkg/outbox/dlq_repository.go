package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const defaultDLQListLimit = 50

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// DLQFilter narrows List. Zero fields match everything.
type DLQFilter struct {
	Reason      enums.OutboxDLQErrorReason
	EventType   enums.OutboxEventType
	AggregateID uuid.UUID
	Limit       int
}

// DLQSummary counts dead-lettered rows per event type and reason.
type DLQSummary struct {
	EventType   enums.OutboxEventType      `gorm:"column:event_type"`
	ErrorReason enums.OutboxDLQErrorReason `gorm:"column:error_reason"`
	Count       int64                      `gorm:"column:count"`
}

// InsertTx records a dead-lettered event. An event already present in the
// table is left untouched so a replayed batch cannot fail on event_id.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncate(*entry.ErrorMessage, maxLastErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// List returns the newest dead-lettered rows matching filter.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultDLQListLimit
	}
	q := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.Reason != "" {
		q = q.Where("error_reason = ?", filter.Reason)
	}
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.AggregateID != uuid.Nil {
		q = q.Where("aggregate_id = ?", filter.AggregateID)
	}

	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *DLQRepository) Summary(ctx context.Context) ([]DLQSummary, error) {
	var out []DLQSummary
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("event_type, error_reason, COUNT(*) AS count").
		Group("event_type, error_reason").
		Order("event_type, error_reason").
		Scan(&out).Error
	return out, err
}
