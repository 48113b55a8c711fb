package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateOrderItem is one requested line. Prices always come from the catalog.
type CreateOrderItem struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
	Size      *string   `json:"size,omitempty" validate:"omitempty,max=20"`
}

// CreateOrderRequest is the buyer's order payload.
type CreateOrderRequest struct {
	Items   []CreateOrderItem `json:"items" validate:"required,min=1,dive"`
	Address string            `json:"address" validate:"required,min=10,max=500"`
	Notes   *string           `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// UpdateOrderRequest is the administrative patch.
type UpdateOrderRequest struct {
	Status         *string    `json:"status,omitempty"`
	TrackingNumber *string    `json:"tracking_number,omitempty" validate:"omitempty,max=100"`
	DeliveredAt    *time.Time `json:"delivered_at,omitempty"`
	Notes          *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Size      *string         `json:"size,omitempty"`
}

type OrderDTO struct {
	ID             uuid.UUID         `json:"id"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	Status         enums.OrderStatus `json:"status"`
	Address        string            `json:"address"`
	TotalAmount    decimal.Decimal   `json:"total_amount"`
	OrderedAt      time.Time         `json:"ordered_at"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	CanBeCancelled bool              `json:"can_be_cancelled"`
	Items          []OrderItemDTO    `json:"items"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func FromModel(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal(),
			Size:      item.Size,
		})
	}
	return &OrderDTO{
		ID:             o.ID,
		BuyerID:        o.BuyerID,
		Status:         o.Status,
		Address:        o.Address,
		TotalAmount:    o.TotalAmount,
		OrderedAt:      o.OrderedAt,
		DeliveredAt:    o.DeliveredAt,
		TrackingNumber: o.TrackingNumber,
		Notes:          o.Notes,
		CanBeCancelled: CanBeCancelled(o),
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func fromModels(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}
