package transfer

import (
	"time"

	"github.com/maheshrc27/postreview/internal/media"
	"github.com/maheshrc27/postreview/internal/models"
)

type RejectRequest struct {
	Comment       string `json:"comment" validate:"max=4000"`
	AudioURL      string `json:"audio_url" validate:"omitempty,url"`
	AudioDuration int    `json:"audio_duration" validate:"gte=0"`
	ImageURL      string `json:"image_url" validate:"omitempty,url"`
}

type PostView struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Content         string            `json:"content"`
	Platform        models.Platform   `json:"platform"`
	Status          models.PostStatus `json:"status"`
	StatusLabel     string            `json:"status_label"`
	Type            media.Kind        `json:"type"`
	TypeLabel       string            `json:"type_label"`
	ScheduledFor    *time.Time        `json:"scheduled_for"`
	ScheduledLabel  string            `json:"scheduled_label"`
	CreatedAt       time.Time         `json:"created_at"`
	Media           []media.Item      `json:"media"`
	MediaCount      int               `json:"media_count"`
	IsCarousel      bool              `json:"is_carousel"`
	PrimaryImageURL string            `json:"primary_image_url"`
	Thumbnail       *string           `json:"thumbnail"`
	Actionable      bool              `json:"actionable"`
}

func NewPostView(p *models.Post) PostView {
	return PostView{
		ID:              p.ID,
		Title:           p.Title,
		Content:         p.Content,
		Platform:        p.Platform,
		Status:          p.Status,
		StatusLabel:     p.Status.Label(),
		Type:            p.Type,
		TypeLabel:       p.Type.Label(),
		ScheduledFor:    p.ScheduledFor,
		ScheduledLabel:  FormatScheduled(p.ScheduledFor),
		CreatedAt:       p.CreatedAt,
		Media:           p.MediaItems(),
		MediaCount:      p.MediaCount(),
		IsCarousel:      p.IsCarousel(),
		PrimaryImageURL: p.PrimaryImageURL(),
		Thumbnail:       p.Thumbnail,
		Actionable:      p.Status == models.PostStatusPending,
	}
}

func NewPostViews(posts []*models.Post) []PostView {
	views := make([]PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, NewPostView(p))
	}
	return views
}

type PostsResponse struct {
	Posts   []PostView `json:"posts"`
	Loading bool       `json:"loading"`
	Error   string     `json:"error,omitempty"`
}

type FeedbackView struct {
	ID            string              `json:"id"`
	Type          models.FeedbackType `json:"type"`
	Content       *string             `json:"content"`
	AudioURL      *string             `json:"audio_url"`
	AudioDuration string              `json:"audio_duration"`
	ImageURL      *string             `json:"image_url"`
	AuthorName    string              `json:"author_name"`
	AuthorType    models.AuthorType   `json:"author_type"`
	IsImportant   bool                `json:"is_important"`
	Status        *models.PostStatus  `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	CreatedLabel  string              `json:"created_label"`
}

func NewFeedbackViews(entries []*models.PostFeedback) []FeedbackView {
	views := make([]FeedbackView, 0, len(entries))
	for _, f := range entries {
		views = append(views, FeedbackView{
			ID:            f.ID,
			Type:          f.Type,
			Content:       f.Content,
			AudioURL:      f.AudioURL,
			AudioDuration: f.DurationLabel(),
			ImageURL:      f.ImageURL,
			AuthorName:    f.AuthorName(),
			AuthorType:    f.AuthorType,
			IsImportant:   f.IsImportant,
			Status:        f.Status,
			CreatedAt:     f.CreatedAt,
			CreatedLabel:  FormatFeedbackTime(f.CreatedAt),
		})
	}
	return views
}
