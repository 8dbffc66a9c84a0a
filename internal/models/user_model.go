package models

import "time"

type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	EmailConfirmedAt *time.Time `db:"email_confirmed_at" json:"email_confirmed_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

type AuthSession struct {
	AccessToken string    `json:"access_token"`
	SessionID   string    `json:"session_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        *User     `json:"user"`
}

type AuthEventType string

const (
	AuthSignedIn         AuthEventType = "SIGNED_IN"
	AuthSignedOut        AuthEventType = "SIGNED_OUT"
	AuthUserUpdated      AuthEventType = "USER_UPDATED"
	AuthPasswordRecovery AuthEventType = "PASSWORD_RECOVERY"
)

type AuthEvent struct {
	Type      AuthEventType
	UserID    string
	SessionID string
}
