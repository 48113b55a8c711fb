package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Report is a support ticket filed by an account against one of its orders.
type Report struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID       uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	Order         *Order               `gorm:"foreignKey:OrderID"`
	FilerID       uuid.UUID            `gorm:"column:filer_id;type:uuid;not null"`
	Filer         *Account             `gorm:"foreignKey:FilerID"`
	Content       string               `gorm:"column:content;not null"`
	Type          enums.ReportType     `gorm:"column:report_type;type:report_type;not null;default:'other'"`
	Status        enums.ReportStatus   `gorm:"column:status;type:report_status;not null;default:'open'"`
	Priority      enums.ReportPriority `gorm:"column:priority;type:report_priority;not null;default:'medium'"`
	AdminResponse *string              `gorm:"column:admin_response"`
	ResolvedAt    *time.Time           `gorm:"column:resolved_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Report) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
