package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"NewsBriefing/internal/apperr"
	"NewsBriefing/internal/config"
	"NewsBriefing/internal/ports"
)

const uploadTimeout = 30 * time.Second

// Store uploads digest audio to an S3-compatible bucket.
type Store struct {
	client     *minio.Client
	publicBase string
}

var _ ports.ObjectStorage = (*Store)(nil)

// New connects to the configured endpoint.
func New(cfg config.StorageConfig) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, apperr.NewConfigMissing("STORAGE_ENDPOINT")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	publicBase := cfg.PublicBaseURL
	if publicBase == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicBase = scheme + "://" + cfg.Endpoint
	}
	return &Store{client: client, publicBase: strings.TrimSuffix(publicBase, "/")}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}
	return nil
}

// Upload stores data under bucket/key; without overwrite an existing object is an error.
func (s *Store) Upload(ctx context.Context, bucket, key string, data []byte, contentType string, overwrite bool) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	if !overwrite {
		_, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
		if err == nil {
			return apperr.New(apperr.CodeUploadFailed, fmt.Sprintf("object %s/%s already exists", bucket, key))
		}
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return apperr.Wrap(apperr.CodeUploadFailed, "stat object", err)
		}
	}

	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeUploadFailed, fmt.Sprintf("upload %s/%s", bucket, key), err)
	}
	return nil
}

// PublicURL returns the anonymous-read URL for an object.
func (s *Store) PublicURL(bucket, key string) string {
	return s.publicBase + "/" + url.PathEscape(bucket) + "/" + url.PathEscape(key)
}
