package service

import (
	"context"
	"time"

	"github.com/maheshrc27/postreview/internal/metrics"
	"github.com/maheshrc27/postreview/internal/storage"
	"go.uber.org/zap"
)

const attachmentCacheSeconds = 3600

type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, opts storage.UploadOptions) (string, error)
}

type UploadService interface {
	UploadAttachment(ctx context.Context, kind storage.AttachmentKind, data []byte) (string, error)
}

type uploadService struct {
	blobs  BlobStore
	logger *zap.Logger
	now    func() time.Time
}

func NewUploadService(blobs BlobStore, logger *zap.Logger) UploadService {
	return &uploadService{blobs: blobs, logger: logger, now: time.Now}
}

// UploadAttachment stores a feedback attachment and returns its public url.
// Existing objects are never overwritten.
func (s *uploadService) UploadAttachment(ctx context.Context, kind storage.AttachmentKind, data []byte) (string, error) {
	att, err := storage.Detect(kind, data)
	if err != nil {
		metrics.Uploads.WithLabelValues(string(kind), "rejected").Inc()
		return "", &UploadError{Kind: kind, Err: err}
	}

	key, err := att.Key("", s.now())
	if err != nil {
		return "", &UploadError{Kind: kind, Err: err}
	}

	url, err := s.blobs.Upload(ctx, kind.Bucket(), key, data, storage.UploadOptions{
		ContentType:  att.MIME,
		CacheSeconds: attachmentCacheSeconds,
		Upsert:       false,
	})
	if err != nil {
		metrics.Uploads.WithLabelValues(string(kind), "error").Inc()
		s.logger.Error("upload attachment", zap.String("kind", string(kind)), zap.Error(err))
		return "", &UploadError{Kind: kind, Err: err}
	}

	metrics.Uploads.WithLabelValues(string(kind), "ok").Inc()
	return url, nil
}
