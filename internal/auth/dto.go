package auth

import (
	"time"

	"github.com/angelmondragon/storefront-backend/internal/users"
)

// RegisterRequest is the payload of the register endpoint.
type RegisterRequest struct {
	Email     string  `json:"email" validate:"required,email,max=254"`
	Password  string  `json:"password" validate:"required"`
	FirstName string  `json:"first_name" validate:"omitempty,max=50"`
	LastName  string  `json:"last_name" validate:"omitempty,max=50"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
}

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Account   *users.AccountDTO `json:"account"`
}

// ForgotPasswordResponse carries the raw reset token only when the
// environment is configured to expose it.
type ForgotPasswordResponse struct {
	Message    string     `json:"message"`
	ResetToken *string    `json:"reset_token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}
