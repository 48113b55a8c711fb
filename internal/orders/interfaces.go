package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListFilters narrows order listings.
type ListFilters struct {
	Status  *enums.OrderStatus
	BuyerID *uuid.UUID
}

// Repository defines persistence operations for the orders tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Order, int64, error)
	FindProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	// UpdateGuarded applies updates only while the order's status is in guard.
	UpdateGuarded(ctx context.Context, id uuid.UUID, guard []enums.OrderStatus, updates map[string]any) (bool, error)
	// DeleteGuarded removes the order and its items only while its status is in guard.
	DeleteGuarded(ctx context.Context, id uuid.UUID, guard []enums.OrderStatus) (bool, error)
}
