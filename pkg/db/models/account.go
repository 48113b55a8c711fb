package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Account is the canonical identity record. PasswordHash and the reset token
// fields are credential material and must never reach a response DTO.
type Account struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email               *string            `gorm:"column:email;uniqueIndex:accounts_email_key"`
	Phone               *string            `gorm:"column:phone"`
	FirstName           string             `gorm:"column:first_name;not null;default:''"`
	LastName            string             `gorm:"column:last_name;not null;default:''"`
	PasswordHash        *string            `gorm:"column:password_hash"`
	Role                enums.Role         `gorm:"column:role;type:account_role;not null;default:'member'"`
	Provider            enums.AuthProvider `gorm:"column:provider;type:auth_provider;not null;default:'email'"`
	ProviderSubject     *string            `gorm:"column:provider_subject"`
	MerchantID          *uuid.UUID         `gorm:"column:merchant_id;type:uuid"`
	ResetTokenHash      *string            `gorm:"column:reset_token_hash;index:accounts_reset_token_hash_idx"`
	ResetTokenExpiresAt *time.Time         `gorm:"column:reset_token_expires_at"`
	LastLoginAt         *time.Time         `gorm:"column:last_login_at"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Account) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// EmailValue returns the email or "" when unset.
func (a *Account) EmailValue() string {
	if a == nil || a.Email == nil {
		return ""
	}
	return *a.Email
}

// Favorite links an account to a product it saved.
type Favorite struct {
	AccountID uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
