package categories

import (
	"context"

	"github.com/angelmondragon/storefront-backend/internal/repo"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists categories.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

func (r *Repository) List(ctx context.Context, params pagination.Params, includeInactive bool) ([]models.Category, int64, error) {
	q := r.DB(ctx).Model(&models.Category{})
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	return repo.FindPage[models.Category](q, params, "name ASC", "id ASC")
}

func (r *Repository) ListActive(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.DB(ctx).Where("is_active = ?", true).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Search(ctx context.Context, term string) ([]models.Category, error) {
	cond, arg := repo.ContainsFold("name", term)
	var rows []models.Category
	err := r.DB(ctx).Where(cond, arg).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	if err := r.DB(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// NameTaken reports whether another category already uses name, ignoring case.
func (r *Repository) NameTaken(ctx context.Context, name string, exclude *uuid.UUID) (bool, error) {
	q := r.DB(ctx).Model(&models.Category{}).Where("LOWER(name) = LOWER(?)", name)
	if exclude != nil {
		q = q.Where("id <> ?", *exclude)
	}
	var count int64
	err := q.Count(&count).Error
	return count > 0, err
}

func (r *Repository) Create(ctx context.Context, category *models.Category) error {
	return r.DB(ctx).Create(category).Error
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	res := r.DB(ctx).Model(&models.Category{}).Where("id = ?", id).Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// Delete removes the category and detaches its products.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	var deleted bool
	err := r.DB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Category{})
		deleted = res.RowsAffected > 0
		return res.Error
	})
	return deleted, err
}
