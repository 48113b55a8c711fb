package reports

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

type CreateReportRequest struct {
	OrderID  uuid.UUID `json:"order_id" validate:"required"`
	Content  string    `json:"content" validate:"required,min=10,max=2000"`
	Type     *string   `json:"type,omitempty"`
	Priority *string   `json:"priority,omitempty"`
}

// UpdateReportRequest edits a report that is still Open or InProgress.
type UpdateReportRequest struct {
	Content  *string `json:"content,omitempty" validate:"omitempty,min=10,max=2000"`
	Type     *string `json:"type,omitempty"`
	Priority *string `json:"priority,omitempty"`
}

type SetStatusRequest struct {
	Status        string  `json:"status" validate:"required"`
	AdminResponse *string `json:"admin_response,omitempty" validate:"omitempty,max=1000"`
}

type ResolveRequest struct {
	AdminResponse *string `json:"admin_response,omitempty" validate:"omitempty,max=1000"`
}

// ListQuery carries the optional admin listing filters as raw strings.
type ListQuery struct {
	Status   string
	Type     string
	Priority string
}

type ReportDTO struct {
	ID            uuid.UUID            `json:"id"`
	OrderID       uuid.UUID            `json:"order_id"`
	FilerID       uuid.UUID            `json:"filer_id"`
	Content       string               `json:"content"`
	Type          enums.ReportType     `json:"type"`
	Status        enums.ReportStatus   `json:"status"`
	Priority      enums.ReportPriority `json:"priority"`
	AdminResponse *string              `json:"admin_response,omitempty"`
	ResolvedAt    *time.Time           `json:"resolved_at,omitempty"`
	CanBeModified bool                 `json:"can_be_modified"`
	IsResolved    bool                 `json:"is_resolved"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// StatsDTO summarizes every report by status, type and priority.
type StatsDTO struct {
	Total      int64            `json:"total"`
	ByStatus   map[string]int64 `json:"by_status"`
	ByType     map[string]int64 `json:"by_type"`
	ByPriority map[string]int64 `json:"by_priority"`
}

func FromModel(r *models.Report) *ReportDTO {
	if r == nil {
		return nil
	}
	return &ReportDTO{
		ID:            r.ID,
		OrderID:       r.OrderID,
		FilerID:       r.FilerID,
		Content:       r.Content,
		Type:          r.Type,
		Status:        r.Status,
		Priority:      r.Priority,
		AdminResponse: r.AdminResponse,
		ResolvedAt:    r.ResolvedAt,
		CanBeModified: CanBeModified(r),
		IsResolved:    IsResolved(r),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func fromModels(rows []models.Report) []ReportDTO {
	out := make([]ReportDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
