package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/storefrontlab/storefront-api/internal/observability"
)

const (
	// MaxImageSize caps product image payloads at 2 MiB.
	MaxImageSize = 2 << 20

	imagePathPrefix = "images"
)

var (
	ErrImageTooLarge        = errors.New("image exceeds the 2MB size limit")
	ErrUnsupportedImageType = errors.New("image must be a jpeg, png or gif file")
	ErrBucketUnavailable    = errors.New("image bucket is unavailable")
	ErrPutFailed            = errors.New("failed to store image")
	ErrStatFailed           = errors.New("failed to check image existence")
	ErrDeleteFailed         = errors.New("failed to delete image")

	// Content types are sniffed from payload bytes, so jpg and jpeg collapse
	// into image/jpeg; together with png and gif this covers the allowed
	// jpeg/jpg/png/gif extension set.
	allowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
	}
)

// ImageStore is the blob-side of the product image lifecycle. Put validates
// and stores a payload and returns the relative path that the product record
// will reference; Delete is idempotent so cleanup can always be retried.
type ImageStore interface {
	Put(ctx context.Context, payload io.Reader, size int64) (string, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}

// MinIOImageStore stores product images in a MinIO/S3-compatible bucket.
type MinIOImageStore struct {
	client   *minio.Client
	bucket   string
	initOnce sync.Once
	initErr  error
}

func NewMinIOImageStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIOImageStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOImageStore{client: client, bucket: bucket}, nil
}

// lazyInit creates the bucket on first use rather than at startup.
func (s *MinIOImageStore) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("%w: check bucket: %v", ErrBucketUnavailable, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.initErr = fmt.Errorf("%w: create bucket: %v", ErrBucketUnavailable, err)
			}
		}
	})
	return s.initErr
}

// Ping reports whether the bucket is reachable. Used by readiness probes.
func (s *MinIOImageStore) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return fmt.Errorf("%w: %v", ErrBucketUnavailable, err)
	}
	return nil
}

// Put validates size and sniffed content type before touching MinIO, then
// stores the payload under a generated images/<uuid><ext> key.
func (s *MinIOImageStore) Put(ctx context.Context, payload io.Reader, size int64) (string, error) {
	if size > MaxImageSize {
		observability.RecordImageStoreOperation(ctx, "put", "rejected_too_large")
		return "", ErrImageTooLarge
	}

	// Sniff the real content type from the first bytes instead of trusting
	// any client-provided header.
	head := make([]byte, 512)
	n, err := io.ReadFull(payload, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		observability.RecordImageStoreOperation(ctx, "put", "error")
		return "", fmt.Errorf("%w: read payload: %v", ErrPutFailed, err)
	}
	head = head[:n]

	contentType := strings.ToLower(strings.TrimSpace(http.DetectContentType(head)))
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		observability.RecordImageStoreOperation(ctx, "put", "rejected_type")
		return "", ErrUnsupportedImageType
	}

	if err := s.lazyInit(ctx); err != nil {
		observability.RecordImageStoreOperation(ctx, "put", "error")
		return "", err
	}

	path := fmt.Sprintf("%s/%s%s", imagePathPrefix, uuid.New().String(), ext)
	full := io.MultiReader(bytes.NewReader(head), payload)
	if _, err := s.client.PutObject(ctx, s.bucket, path, full, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		observability.RecordImageStoreOperation(ctx, "put", "error")
		return "", fmt.Errorf("%w: %v", ErrPutFailed, err)
	}
	observability.RecordImageStoreOperation(ctx, "put", "success")
	return path, nil
}

func (s *MinIOImageStore) Exists(ctx context.Context, path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		return false, nil
	}
	if err := s.lazyInit(ctx); err != nil {
		return false, err
	}
	_, err := s.client.StatObject(ctx, s.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
			observability.RecordImageStoreOperation(ctx, "exists", "not_found")
			return false, nil
		}
		observability.RecordImageStoreOperation(ctx, "exists", "error")
		return false, fmt.Errorf("%w: %v", ErrStatFailed, err)
	}
	observability.RecordImageStoreOperation(ctx, "exists", "success")
	return true, nil
}

// Delete removes a stored image. Empty and missing paths are no-ops, which
// keeps record-side cleanup idempotent.
func (s *MinIOImageStore) Delete(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := s.lazyInit(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, path, minio.RemoveObjectOptions{}); err != nil {
		observability.RecordImageStoreOperation(ctx, "delete", "error")
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	observability.RecordImageStoreOperation(ctx, "delete", "success")
	return nil
}
