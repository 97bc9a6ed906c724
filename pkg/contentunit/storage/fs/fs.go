package fs

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/tendant/content-unit/pkg/contentunit"
)

const typeSuffix = ".type"

// Backend is a filesystem implementation of the contentunit.AssetStore interface
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend
type Config struct {
	BaseDir   string // Base directory for storing files
	URLPrefix string // Optional URL prefix for preview URLs
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}

	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

// path shards assets by the first two characters of their id
func (b *Backend) path(assetID string) (string, error) {
	if _, err := uuid.Parse(assetID); err != nil {
		return "", fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
	}
	return filepath.Join(b.baseDir, assetID[:2], assetID), nil
}

// Put writes data to a temporary file and renames it into place, so a failed
// write never leaves a visible asset.
func (b *Backend) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", contentunit.ErrUpload, err)
	}

	id := uuid.NewString()
	filePath, _ := b.path(id)

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create directory: %w", contentunit.ErrUpload, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("%w: failed to create file: %w", contentunit.ErrUpload, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: failed to write file: %w", contentunit.ErrUpload, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: failed to close file: %w", contentunit.ErrUpload, err)
	}

	if contentType != "" {
		if err := os.WriteFile(filePath+typeSuffix, []byte(contentType), 0644); err != nil {
			return "", fmt.Errorf("%w: failed to write content type: %w", contentunit.ErrUpload, err)
		}
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		os.Remove(filePath + typeSuffix)
		return "", fmt.Errorf("%w: failed to move file into place: %w", contentunit.ErrUpload, err)
	}

	return id, nil
}

// Delete deletes an asset from the filesystem
func (b *Backend) Delete(ctx context.Context, assetID string) error {
	filePath, err := b.path(assetID)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
		}
		return fmt.Errorf("%w: failed to delete file: %w", contentunit.ErrStore, err)
	}
	os.Remove(filePath + typeSuffix)

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// PreviewURL returns a URL for previewing content
func (b *Backend) PreviewURL(ctx context.Context, assetID string) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("%w: asset id is required for preview", contentunit.ErrValidation)
	}
	filePath, err := b.path(assetID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
		}
		return "", fmt.Errorf("%w: %w", contentunit.ErrStore, err)
	}

	if b.urlPrefix == "" {
		return (&url.URL{Scheme: "file", Path: filePath}).String(), nil
	}
	return fmt.Sprintf("%s/preview/%s", b.urlPrefix, assetID), nil
}

// Stat retrieves metadata for an asset in the filesystem
func (b *Backend) Stat(ctx context.Context, assetID string) (*contentunit.Asset, error) {
	filePath, err := b.path(assetID)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
	} else if err != nil {
		return nil, fmt.Errorf("%w: failed to get file info: %w", contentunit.ErrStore, err)
	}

	contentType := "application/octet-stream"
	if raw, err := os.ReadFile(filePath + typeSuffix); err == nil && len(raw) > 0 {
		contentType = string(raw)
	} else if mt, err := mimetype.DetectFile(filePath); err == nil {
		contentType = mt.String()
	}

	return &contentunit.Asset{
		ID:          assetID,
		ContentType: contentType,
		Size:        info.Size(),
		UpdatedAt:   info.ModTime().UTC(),
	}, nil
}

// Open returns the asset file for reading
func (b *Backend) Open(assetID string) (*os.File, error) {
	filePath, err := b.path(assetID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
	}
	return f, err
}

// cleanupEmptyDirectories removes the shard directory once it is empty
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		os.Remove(dir)
	}
}
