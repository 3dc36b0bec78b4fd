package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"quizsync-service/internal/domain"
)

// Options configures the S3-compatible store.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL, when set, is used as the base of resolved URLs instead of
	// presigned links, e.g. a CDN in front of a public bucket.
	PublicURL  string
	PresignTTL time.Duration
}

// MinioStore stores selfies and media objects in an S3-compatible bucket.
type MinioStore struct {
	client *minio.Client
	opts   Options
	logger *zap.SugaredLogger
}

func NewMinioStore(opts Options, logger *zap.SugaredLogger) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 24 * time.Hour
	}
	return &MinioStore{client: client, opts: opts, logger: logger}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.opts.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		s.logger.Infow("created bucket", "bucket", s.opts.Bucket)
	}
	return nil
}

// Upload puts the object and returns its object name as the reference.
func (s *MinioStore) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	name := objectName(path)
	if name == "" {
		return "", fmt.Errorf("upload: empty path")
	}
	_, err := s.client.PutObject(ctx, s.opts.Bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return name, nil
}

// Resolve checks that the object exists and returns a retrievable URL for it.
func (s *MinioStore) Resolve(ctx context.Context, ref string) (string, error) {
	name := objectName(ref)
	if _, err := s.client.StatObject(ctx, s.opts.Bucket, name, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: %s", domain.ErrBlobNotFound, name)
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}
	if s.opts.PublicURL != "" {
		return publicObjectURL(s.opts.PublicURL, name), nil
	}
	u, err := s.client.PresignedGetObject(ctx, s.opts.Bucket, name, s.opts.PresignTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("failed to presign file: %w", err)
	}
	return u.String(), nil
}

func objectName(path string) string {
	return strings.TrimPrefix(strings.TrimSpace(path), "/")
}

func publicObjectURL(base, name string) string {
	segments := strings.Split(name, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == 404
	}
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
