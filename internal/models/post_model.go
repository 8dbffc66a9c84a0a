package models

import (
	"time"

	"github.com/maheshrc27/postreview/internal/media"
)

type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
)

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusRejected:
		return true
	}
	return false
}

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformLinkedIn  Platform = "linkedin"
)

type Post struct {
	ID           string     `db:"id" json:"id"`
	Title        string     `db:"title" json:"title"`
	Content      string     `db:"content" json:"content"`
	Platform     Platform   `db:"platform" json:"platform"`
	ScheduledFor *time.Time `db:"scheduled_for" json:"scheduled_for"`
	Status       PostStatus `db:"status" json:"status"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UserID       *string    `db:"user_id" json:"user_id"`
	Media        media.Raw  `db:"media" json:"media"`
	Type         media.Kind `db:"type" json:"type"`
	Thumbnail    *string    `db:"thumbnail" json:"thumbnail"`
	CompanyID    string     `db:"company_id" json:"company_id"`
}

func (p *Post) thumbnail() string {
	if p.Thumbnail == nil {
		return ""
	}
	return *p.Thumbnail
}

func (p *Post) MediaItems() []media.Item {
	return p.Media.Items()
}

func (p *Post) MediaCount() int {
	return media.Count(p.Media.Field())
}

func (p *Post) PrimaryImageURL() string {
	return media.PrimaryImageURL(p.Media.Field(), p.Type, p.thumbnail())
}

func (p *Post) IsCarousel() bool {
	return media.IsCarousel(p.Type, p.Media.Field())
}

// Label is the badge text for a review state.
func (s PostStatus) Label() string {
	switch s {
	case PostStatusApproved:
		return "Aprovado"
	case PostStatusRejected:
		return "Ajustes"
	case PostStatusPending:
		return "Pendente"
	}
	return "Desconhecido"
}
