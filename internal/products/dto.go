package product

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRequest is the create payload. Price is a decimal string or number.
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Description string          `json:"description" validate:"required,max=1000"`
	Color       string          `json:"color" validate:"required,max=50"`
	Sizes       []string        `json:"sizes" validate:"required,min=1,dive,required,max=20"`
	Gender      string          `json:"gender" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url" validate:"required,url"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// UpdateProductRequest is a partial update.
type UpdateProductRequest struct {
	Name        *string          `json:"name,omitempty" validate:"omitempty,max=100"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=1000"`
	Color       *string          `json:"color,omitempty" validate:"omitempty,max=50"`
	Sizes       []string         `json:"sizes,omitempty" validate:"omitempty,min=1,dive,required,max=20"`
	Gender      *string          `json:"gender,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	ImageURL    *string          `json:"image_url,omitempty" validate:"omitempty,url"`
	CategoryID  *uuid.UUID       `json:"category_id,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// FilterQuery holds the raw filter parameters of the filter endpoint.
type FilterQuery struct {
	MinPrice   string
	MaxPrice   string
	Color      string
	Gender     string
	CategoryID string
	Search     string
	Status     string
}

// Filters is the parsed form of FilterQuery.
type Filters struct {
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Color      string
	Gender     *enums.Gender
	CategoryID *uuid.UUID
	Search     string
	// IsActive nil means any status.
	IsActive *bool
}

type CategorySummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type ProductDTO struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Color       string           `json:"color"`
	Sizes       []string         `json:"sizes"`
	Gender      enums.Gender     `json:"gender"`
	Price       decimal.Decimal  `json:"price"`
	ImageURL    string           `json:"image_url"`
	IsActive    bool             `json:"is_active"`
	Category    *CategorySummary `json:"category,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	dto := &ProductDTO{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Color:       p.Color,
		Sizes:       append([]string{}, p.Sizes...),
		Gender:      p.Gender,
		Price:       p.Price,
		ImageURL:    p.ImageURL,
		IsActive:    p.IsActive,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.Category != nil {
		dto.Category = &CategorySummary{ID: p.Category.ID, Name: p.Category.Name}
	}
	return dto
}

func newProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *NewProductDTO(&rows[i]))
	}
	return out
}
