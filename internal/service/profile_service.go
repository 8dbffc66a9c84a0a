package service

import (
	"context"
	"time"

	"github.com/maheshrc27/postreview/internal/metrics"
	"github.com/maheshrc27/postreview/internal/models"
	"github.com/maheshrc27/postreview/internal/repository"
	"github.com/maheshrc27/postreview/internal/storage"
	"go.uber.org/zap"
)

type ProfileOverview struct {
	Profile *models.Profile `json:"profile"`
	Company *models.Company `json:"company"`
}

type SessionRevoker interface {
	RevokeUser(userID string) int
}

type ProfileService interface {
	Overview(ctx context.Context, user *models.User) (*ProfileOverview, error)
	UpdateAvatar(ctx context.Context, user *models.User, data []byte) (string, error)
	DeleteAccount(ctx context.Context, session *Session) error
}

type profileService struct {
	pr      repository.ProfileRepository
	rr      repository.RepresentativeRepository
	ur      repository.UserRepository
	blobs   BlobStore
	revoker SessionRevoker
	logger  *zap.Logger
	now     func() time.Time
}

func NewProfileService(
	pr repository.ProfileRepository,
	rr repository.RepresentativeRepository,
	ur repository.UserRepository,
	blobs BlobStore,
	revoker SessionRevoker,
	logger *zap.Logger) ProfileService {
	return &profileService{
		pr:      pr,
		rr:      rr,
		ur:      ur,
		blobs:   blobs,
		revoker: revoker,
		logger:  logger,
		now:     time.Now,
	}
}

// Overview loads the settings screen: the profile and, when there is one,
// the first company the user represents.
func (s *profileService) Overview(ctx context.Context, user *models.User) (*ProfileOverview, error) {
	if user == nil {
		return nil, ErrNotAuthenticated
	}

	profile, err := s.pr.GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}

	company, err := s.rr.FirstCompany(ctx, user.ID)
	if err != nil {
		s.logger.Warn("load company", zap.String("user_id", user.ID), zap.Error(err))
		company = nil
	}

	return &ProfileOverview{Profile: profile, Company: company}, nil
}

// UpdateAvatar replaces the profile picture and returns its url.
func (s *profileService) UpdateAvatar(ctx context.Context, user *models.User, data []byte) (string, error) {
	if user == nil {
		return "", ErrNotAuthenticated
	}

	att, err := storage.Detect(storage.KindAvatar, data)
	if err != nil {
		metrics.Uploads.WithLabelValues(string(storage.KindAvatar), "rejected").Inc()
		return "", &UploadError{Kind: storage.KindAvatar, Err: err}
	}

	key, err := att.Key(user.ID, s.now())
	if err != nil {
		return "", &UploadError{Kind: storage.KindAvatar, Err: err}
	}

	url, err := s.blobs.Upload(ctx, storage.BucketAvatars, key, data, storage.UploadOptions{
		ContentType:  att.MIME,
		CacheSeconds: attachmentCacheSeconds,
		Upsert:       true,
	})
	if err != nil {
		metrics.Uploads.WithLabelValues(string(storage.KindAvatar), "error").Inc()
		return "", &UploadError{Kind: storage.KindAvatar, Err: err}
	}
	metrics.Uploads.WithLabelValues(string(storage.KindAvatar), "ok").Inc()

	if err := s.pr.UpdateAvatar(ctx, user.ID, url); err != nil {
		return "", &UploadError{Kind: storage.KindAvatar, Err: err}
	}
	return url, nil
}

// DeleteAccount removes the user's account, ends all of their sessions and
// signs the session out.
func (s *profileService) DeleteAccount(ctx context.Context, session *Session) error {
	user := session.CurrentUser()
	if user == nil {
		return ErrNotAuthenticated
	}

	if err := s.ur.Remove(ctx, user.ID); err != nil {
		s.logger.Error("delete account", zap.String("user_id", user.ID), zap.Error(err))
		return err
	}

	session.SignOut(ctx)
	n := s.revoker.RevokeUser(user.ID)
	s.logger.Info("account deleted", zap.String("user_id", user.ID), zap.Int("sessions_revoked", n))
	return nil
}
