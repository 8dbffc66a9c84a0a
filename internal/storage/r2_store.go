package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	cfg "github.com/maheshrc27/postreview/configs"
)

var ErrObjectExists = errors.New("object already exists")

type UploadOptions struct {
	ContentType  string
	CacheSeconds int
	// Upsert allows replacing an existing object at the same key.
	Upsert bool
}

type R2Store struct {
	client    *s3.Client
	publicURL string
}

func NewR2Store(ctx context.Context, storage cfg.Storage) (*R2Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(storage.AccessKey, storage.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		return nil, err
	}

	endpoint := storage.Endpoint
	pathStyle := endpoint != ""
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", storage.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = pathStyle
	})

	return &R2Store{
		client:    client,
		publicURL: strings.TrimRight(storage.PublicURL, "/"),
	}, nil
}

// Upload stores data under bucket/key and returns its public url.
func (s *R2Store) Upload(ctx context.Context, bucket, key string, data []byte, opts UploadOptions) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(opts.ContentType),
	}
	if opts.CacheSeconds > 0 {
		input.CacheControl = aws.String(fmt.Sprintf("max-age=%d", opts.CacheSeconds))
	}
	if !opts.Upsert {
		input.IfNoneMatch = aws.String("*")
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return "", fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectExists)
		}
		return "", err
	}

	return s.PublicURL(bucket, key), nil
}

func (s *R2Store) PublicURL(bucket, key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicURL, bucket, key)
}
