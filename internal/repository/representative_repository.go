package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/postreview/internal/models"
	"go.uber.org/zap"
)

type RepresentativeRepository interface {
	ListByProfileID(ctx context.Context, profileID string) ([]*models.CompanyRepresentative, error)
	FirstCompany(ctx context.Context, profileID string) (*models.Company, error)
}

type representativeRepository struct {
	db *sqlx.DB
}

func NewRepresentativeRepository(db *sqlx.DB) RepresentativeRepository {
	return &representativeRepository{db: db}
}

func (r *representativeRepository) ListByProfileID(ctx context.Context, profileID string) ([]*models.CompanyRepresentative, error) {
	query := `SELECT id, company_id, profile_id, email FROM company_representatives WHERE profile_id = $1 ORDER BY created_at`

	reps := []*models.CompanyRepresentative{}
	if err := r.db.SelectContext(ctx, &reps, query, profileID); err != nil {
		zap.L().Error("list representatives", zap.String("profile_id", profileID), zap.Error(err))
		return nil, err
	}
	return reps, nil
}

// FirstCompany returns the company of the profile's first link, or nil when
// the profile represents none.
func (r *representativeRepository) FirstCompany(ctx context.Context, profileID string) (*models.Company, error) {
	query := `
		SELECT c.id, c.name, c.logo_url, c.email, c.phone, c.website, c.created_at
		FROM company_representatives cr
		JOIN companies c ON c.id = cr.company_id
		WHERE cr.profile_id = $1
		ORDER BY cr.created_at
		LIMIT 1
	`

	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, profileID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		zap.L().Error("get company", zap.String("profile_id", profileID), zap.Error(err))
		return nil, err
	}
	return &company, nil
}
