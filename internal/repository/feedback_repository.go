package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postreview/internal/models"
	"go.uber.org/zap"
)

type FeedbackRepository interface {
	Create(ctx context.Context, fb *models.PostFeedback) error
	ListByPostID(ctx context.Context, postID string) ([]*models.PostFeedback, error)
}

type feedbackRepository struct {
	db *sqlx.DB
}

func NewFeedbackRepository(db *sqlx.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

// Create inserts fb and fills in its generated id and timestamp.
func (r *feedbackRepository) Create(ctx context.Context, fb *models.PostFeedback) error {
	query := `
		INSERT INTO post_feedback (post_id, type, content, audio_url, audio_duration, image_url, author, author_type, is_important, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		fb.PostID, fb.Type, fb.Content, fb.AudioURL, fb.AudioDuration, fb.ImageURL,
		fb.Author, fb.AuthorType, fb.IsImportant, fb.Status,
	).Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		zap.L().Error("create feedback", zap.String("post_id", fb.PostID), zap.Error(err))
		return err
	}
	return nil
}

// ListByPostID returns a post's thread, newest first.
func (r *feedbackRepository) ListByPostID(ctx context.Context, postID string) ([]*models.PostFeedback, error) {
	query := `
		SELECT id, post_id, type, content, audio_url, audio_duration, image_url, author, author_type, is_important, status, created_at
		FROM post_feedback
		WHERE post_id = $1
		ORDER BY created_at DESC
	`

	entries := []*models.PostFeedback{}
	if err := r.db.SelectContext(ctx, &entries, query, postID); err != nil {
		zap.L().Error("list feedback", zap.String("post_id", postID), zap.Error(err))
		return nil, err
	}
	return entries, nil
}
