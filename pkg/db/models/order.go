package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a purchase owned by a single buyer account.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	Buyer          *Account          `gorm:"foreignKey:BuyerID"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Address        string            `gorm:"column:address;not null"`
	TotalAmount    decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	OrderedAt      time.Time         `gorm:"column:ordered_at;not null"`
	DeliveredAt    *time.Time        `gorm:"column:delivered_at"`
	TrackingNumber *string           `gorm:"column:tracking_number"`
	Notes          *string           `gorm:"column:notes"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem is one line of an order. UnitPrice is the catalog price at the
// time the order was placed.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product   *Product        `gorm:"foreignKey:ProductID"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Size      *string         `gorm:"column:size"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// LineTotal returns quantity * unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
