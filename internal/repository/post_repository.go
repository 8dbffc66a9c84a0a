package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postreview/internal/models"
	"go.uber.org/zap"
)

const postColumns = `id, title, content, platform, scheduled_for, status, created_at, user_id, media, type, thumbnail, company_id`

type PostRepository interface {
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByCompanyID(ctx context.Context, companyID string) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, postID string, status models.PostStatus) error
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	var post models.Post
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("get post", zap.String("post_id", id), zap.Error(err))
		return nil, err
	}
	return &post, nil
}

// ListByCompanyID returns the company's posts, newest first.
func (r *postRepository) ListByCompanyID(ctx context.Context, companyID string) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE company_id = $1 ORDER BY created_at DESC`

	posts := []*models.Post{}
	if err := r.db.SelectContext(ctx, &posts, query, companyID); err != nil {
		zap.L().Error("list posts", zap.String("company_id", companyID), zap.Error(err))
		return nil, err
	}
	return posts, nil
}

// UpdateStatus reviews a pending post. A post that is missing or already
// reviewed yields ErrNoRowsAffected.
func (r *postRepository) UpdateStatus(ctx context.Context, postID string, status models.PostStatus) error {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'pending'`

	result, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		zap.L().Error("update post status", zap.String("post_id", postID), zap.Error(err))
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("post %s: %w", postID, ErrNoRowsAffected)
	}
	return nil
}
