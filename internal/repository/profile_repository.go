package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postreview/internal/models"
	"go.uber.org/zap"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	Create(ctx context.Context, tx *sqlx.Tx, profile *models.Profile) error
	UpdateAvatar(ctx context.Context, id, avatarURL string) error
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT id, full_name, role, email, avatar_url, phone, created_at FROM profiles WHERE id = $1`

	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("get profile", zap.String("profile_id", id), zap.Error(err))
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) Create(ctx context.Context, tx *sqlx.Tx, profile *models.Profile) error {
	query := `
		INSERT INTO profiles (id, full_name, role, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	args := []any{profile.ID, profile.FullName, profile.Role, profile.Email, profile.Phone}

	var err error
	if tx != nil {
		err = tx.QueryRowxContext(ctx, query, args...).Scan(&profile.CreatedAt)
	} else {
		err = r.db.QueryRowxContext(ctx, query, args...).Scan(&profile.CreatedAt)
	}
	if err != nil {
		zap.L().Error("create profile", zap.Error(err))
		return err
	}
	return nil
}

func (r *profileRepository) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	query := `UPDATE profiles SET avatar_url = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, avatarURL, id)
	if err != nil {
		zap.L().Error("update avatar", zap.String("profile_id", id), zap.Error(err))
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNoRowsAffected
	}
	return nil
}
