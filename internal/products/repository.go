package product

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository provides catalog persistence helpers.
type Repository struct {
	repo.Base
}

// NewRepository constructs a product repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).Preload("Category").First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns products matching filters, newest first.
func (r *Repository) List(ctx context.Context, params pagination.Params, filters Filters) ([]models.Product, int64, error) {
	q := r.DB(ctx).Model(&models.Product{})
	if filters.IsActive != nil {
		q = q.Where("is_active = ?", *filters.IsActive)
	}
	if filters.MinPrice != nil {
		q = q.Where("CAST(price AS NUMERIC) >= ?", filters.MinPrice.InexactFloat64())
	}
	if filters.MaxPrice != nil {
		q = q.Where("CAST(price AS NUMERIC) <= ?", filters.MaxPrice.InexactFloat64())
	}
	if filters.Color != "" {
		q = q.Where("LOWER(color) = LOWER(?)", filters.Color)
	}
	if filters.Gender != nil {
		q = q.Where("gender = ?", *filters.Gender)
	}
	if filters.CategoryID != nil {
		q = q.Where("category_id = ?", *filters.CategoryID)
	}
	if filters.Search != "" {
		nameCond, pattern := repo.ContainsFold("name", filters.Search)
		descCond, _ := repo.ContainsFold("description", filters.Search)
		q = q.Where("("+nameCond+" OR "+descCond+")", pattern, pattern)
	}
	return repo.FindPage[models.Product](q.Preload("Category"), params, "created_at DESC", "id DESC")
}

func (r *Repository) CategoryExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.DB(ctx).Model(&models.Category{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.DB(ctx).Omit("Category").Create(product).Error
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// Delete removes the product and any favorites pointing at it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		deleted = res.RowsAffected > 0
		return res.Error
	})
	return deleted, err
}
