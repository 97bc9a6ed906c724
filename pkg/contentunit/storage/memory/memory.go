package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/content-unit/pkg/contentunit"
)

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the contentunit.AssetStore interface
type Backend struct {
	mu        sync.RWMutex
	objects   map[string]object
	urlPrefix string
}

// New creates a new in-memory storage backend. Preview URLs are built as
// memory://<id>.
func New() *Backend {
	return NewWithURLPrefix("memory://")
}

// NewWithURLPrefix creates an in-memory backend whose preview URLs start with
// urlPrefix.
func NewWithURLPrefix(urlPrefix string) *Backend {
	return &Backend{
		objects:   make(map[string]object),
		urlPrefix: urlPrefix,
	}
}

// Put stores a copy of data under a fresh id
func (b *Backend) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", contentunit.ErrUpload, err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	id := uuid.NewString()
	buf := make([]byte, len(data))
	copy(buf, data)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[id] = object{data: buf, contentType: contentType, updatedAt: time.Now().UTC()}
	return id, nil
}

// Delete deletes an asset
func (b *Backend) Delete(ctx context.Context, assetID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[assetID]; !exists {
		return fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
	}

	delete(b.objects, assetID)
	return nil
}

// PreviewURL returns a URL for previewing content
func (b *Backend) PreviewURL(ctx context.Context, assetID string) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("%w: asset id is required for preview", contentunit.ErrValidation)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if _, exists := b.objects[assetID]; !exists {
		return "", fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
	}
	return b.urlPrefix + assetID, nil
}

// Stat retrieves metadata for an asset in memory
func (b *Backend) Stat(ctx context.Context, assetID string) (*contentunit.Asset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[assetID]
	if !exists {
		return nil, fmt.Errorf("%w: asset %s", contentunit.ErrNotFound, assetID)
	}

	return &contentunit.Asset{
		ID:          assetID,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		UpdatedAt:   obj.updatedAt,
	}, nil
}

// Bytes returns a copy of the stored payload
func (b *Backend) Bytes(assetID string) ([]byte, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[assetID]
	if !exists {
		return nil, false
	}
	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, true
}

// Len returns the number of stored assets
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
