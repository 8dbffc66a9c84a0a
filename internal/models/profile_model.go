package models

import "time"

type Profile struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Role      string    `db:"role" json:"role"`
	Email     string    `db:"email" json:"email"`
	AvatarURL *string   `db:"avatar_url" json:"avatar_url"`
	Phone     *string   `db:"phone" json:"phone"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Company struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	LogoURL   *string   `db:"logo_url" json:"logo_url"`
	Email     *string   `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone"`
	Website   *string   `db:"website" json:"website"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CompanyRepresentative struct {
	ID        string `db:"id" json:"id"`
	CompanyID string `db:"company_id" json:"company_id"`
	ProfileID string `db:"profile_id" json:"profile_id"`
	Email     string `db:"email" json:"email"`
}

const ProfileRoleUser = "user"
