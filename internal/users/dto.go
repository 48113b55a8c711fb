package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// AccountDTO is the transport shape of an account. It never carries the
// password hash or reset token fields.
type AccountDTO struct {
	ID          uuid.UUID          `json:"id"`
	Email       *string            `json:"email,omitempty"`
	Phone       *string            `json:"phone,omitempty"`
	FirstName   string             `json:"first_name"`
	LastName    string             `json:"last_name"`
	Role        enums.Role         `json:"role"`
	Provider    enums.AuthProvider `json:"provider"`
	MerchantID  *uuid.UUID         `json:"merchant_id,omitempty"`
	LastLoginAt *time.Time         `json:"last_login_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func FromModel(a *models.Account) *AccountDTO {
	if a == nil {
		return nil
	}
	return &AccountDTO{
		ID:          a.ID,
		Email:       a.Email,
		Phone:       a.Phone,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Role:        a.Role,
		Provider:    a.Provider,
		MerchantID:  a.MerchantID,
		LastLoginAt: a.LastLoginAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// FromModels maps a slice of accounts.
func FromModels(rows []models.Account) []AccountDTO {
	out := make([]AccountDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

// UpdateAccountRequest is the profile patch. Role and MerchantID are honored
// only for admin callers.
type UpdateAccountRequest struct {
	FirstName  *string    `json:"first_name,omitempty" validate:"omitempty,min=1,max=50"`
	LastName   *string    `json:"last_name,omitempty" validate:"omitempty,min=1,max=50"`
	Phone      *string    `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Role       *string    `json:"role,omitempty"`
	MerchantID *uuid.UUID `json:"merchant_id,omitempty"`
}

// FavoriteProductDTO is the slim product shape listed under favorites.
type FavoriteProductDTO struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	ImageURL string    `json:"image_url"`
	IsActive bool      `json:"is_active"`
}

func favoriteFromProduct(p models.Product) FavoriteProductDTO {
	return FavoriteProductDTO{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price.StringFixed(2),
		ImageURL: p.ImageURL,
		IsActive: p.IsActive,
	}
}
