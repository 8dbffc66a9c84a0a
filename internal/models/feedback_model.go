package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type FeedbackType string

const (
	FeedbackResponse     FeedbackType = "response"
	FeedbackNote         FeedbackType = "note"
	FeedbackStatusChange FeedbackType = "status_change"
)

type AuthorType string

const (
	AuthorAdmin AuthorType = "admin"
	AuthorUser  AuthorType = "user"
)

type PostFeedback struct {
	ID            string       `db:"id" json:"id"`
	PostID        string       `db:"post_id" json:"post_id"`
	Type          FeedbackType `db:"type" json:"type"`
	Content       *string      `db:"content" json:"content"`
	AudioURL      *string      `db:"audio_url" json:"audio_url"`
	AudioDuration *int         `db:"audio_duration" json:"audio_duration"`
	ImageURL      *string      `db:"image_url" json:"image_url"`
	Author        string       `db:"author" json:"author"`
	AuthorType    AuthorType   `db:"author_type" json:"author_type"`
	IsImportant   bool         `db:"is_important" json:"is_important"`
	Status        *PostStatus  `db:"status" json:"status"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
}

// AuthorName derives a display name from the author email: the local part
// with its first letter upper-cased.
func (f *PostFeedback) AuthorName() string {
	name, _, _ := strings.Cut(f.Author, "@")
	if name == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// DurationLabel renders the audio length as m:ss, or nothing when the
// duration is unknown or zero.
func (f *PostFeedback) DurationLabel() string {
	if f.AudioDuration == nil || *f.AudioDuration == 0 {
		return ""
	}
	return FormatDuration(*f.AudioDuration)
}

func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
