package transfer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/maheshrc27/postreview/internal/models"
)

const (
	PurposeSession  = "session"
	PurposeRecovery = "recovery"
	PurposeConfirm  = "confirm"
)

type SessionClaims struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"sid,omitempty"`
	Purpose   string `json:"purpose"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
	Route       string       `json:"route"`
}

type RegisterRequest struct {
	FullName        string `json:"full_name" validate:"required,max=120"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,max=32"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

type ResetPasswordRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to" validate:"omitempty,url"`
}

type RecoverPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

type PasswordChangeRequest struct {
	NewPassword     string `json:"new_password" validate:"required"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}
