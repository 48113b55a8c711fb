package payloads

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderCreatedEvent is published when a buyer places an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	BuyerID     uuid.UUID         `json:"buyer_id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	ItemCount   int               `json:"item_count"`
	OrderedAt   time.Time         `json:"ordered_at"`
}

// OrderStatusChangedEvent covers cancellations and admin status writes.
// Override is set when an admin moved the order outside the transition graph.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	Override       bool              `json:"override"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	DeliveredAt    *time.Time        `json:"delivered_at,omitempty"`
}

// OrderDeletedEvent is published after a cancellable order is removed.
type OrderDeletedEvent struct {
	OrderID uuid.UUID         `json:"order_id"`
	BuyerID uuid.UUID         `json:"buyer_id"`
	Status  enums.OrderStatus `json:"status"`
}

// ReportCreatedEvent is published when a buyer files a report on an order.
type ReportCreatedEvent struct {
	ReportID uuid.UUID            `json:"report_id"`
	OrderID  uuid.UUID            `json:"order_id"`
	FilerID  uuid.UUID            `json:"filer_id"`
	Type     enums.ReportType     `json:"type"`
	Priority enums.ReportPriority `json:"priority"`
}

// ReportStatusChangedEvent covers status writes and resolutions.
type ReportStatusChangedEvent struct {
	ReportID   uuid.UUID          `json:"report_id"`
	OrderID    uuid.UUID          `json:"order_id"`
	FilerID    uuid.UUID          `json:"filer_id"`
	From       enums.ReportStatus `json:"from"`
	To         enums.ReportStatus `json:"to"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
}
