package minio

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/pkg/errors"
	"github.com/tendant/content-unit/pkg/contentunit"
)

// Backend stores assets in an S3-compatible bucket through minio-go
type Backend struct {
	client          *minio.Client
	bucket          string
	basePath        string
	presignDuration time.Duration
}

// New wraps an existing client
func New(client *minio.Client, bucket string, basePath string) *Backend {
	return &Backend{
		client:          client,
		bucket:          bucket,
		basePath:        strings.Trim(basePath, "/"),
		presignDuration: time.Hour,
	}
}

// EnsureBucket creates the bucket when it does not exist yet
func (b *Backend) EnsureBucket(ctx context.Context, region string) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return errors.WithStack(err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return errors.Wrapf(err, "could not create bucket '%s'", b.bucket)
	}
	return nil
}

func (b *Backend) objectName(assetID string) string {
	if b.basePath == "" {
		return assetID
	}
	return path.Join(b.basePath, assetID)
}

// Put implements contentunit.AssetStore.
func (b *Backend) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	id := uuid.NewString()
	opts := minio.PutObjectOptions{
		ContentType: contentType,
	}

	_, err := b.client.PutObject(ctx, b.bucket, b.objectName(id), bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return "", fmt.Errorf("%w: %w", contentunit.ErrUpload, errors.WithStack(err))
	}

	return id, nil
}

// Delete implements contentunit.AssetStore.
func (b *Backend) Delete(ctx context.Context, assetID string) error {
	if _, err := b.Stat(ctx, assetID); err != nil {
		return err
	}
	if err := b.client.RemoveObject(ctx, b.bucket, b.objectName(assetID), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %w", contentunit.ErrStore, errors.WithStack(err))
	}
	return nil
}

// PreviewURL implements contentunit.AssetStore.
func (b *Backend) PreviewURL(ctx context.Context, assetID string) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("%w: asset id is required for preview", contentunit.ErrValidation)
	}
	if _, err := b.Stat(ctx, assetID); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("response-content-disposition", "inline")

	u, err := b.client.PresignedGetObject(ctx, b.bucket, b.objectName(assetID), b.presignDuration, params)
	if err != nil {
		return "", fmt.Errorf("%w: %w", contentunit.ErrStore, errors.WithStack(err))
	}
	return u.String(), nil
}

// Stat implements contentunit.AssetStore.
func (b *Backend) Stat(ctx context.Context, assetID string) (*contentunit.Asset, error) {
	info, err := b.client.StatObject(ctx, b.bucket, b.objectName(assetID), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
		}
		return nil, fmt.Errorf("%w: %w", contentunit.ErrStore, errors.WithStack(err))
	}

	return &contentunit.Asset{
		ID:          assetID,
		ContentType: info.ContentType,
		Size:        info.Size,
		UpdatedAt:   info.LastModified.UTC(),
	}, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
