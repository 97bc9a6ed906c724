// Package storetest holds behaviour checks shared by every
// contentunit.AssetStore implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-unit/pkg/contentunit"
)

// Run exercises store through put, stat, preview and delete.
func Run(t *testing.T, store contentunit.AssetStore) {
	ctx := context.Background()
	data := []byte("hello, asset")

	id, err := store.Put(ctx, data, "text/plain")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	other, err := store.Put(ctx, data, "text/plain")
	require.NoError(t, err)
	assert.NotEqual(t, id, other, "every put yields a fresh id")

	asset, err := store.Stat(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, asset.ID)
	assert.Equal(t, int64(len(data)), asset.Size)
	assert.Equal(t, "text/plain", asset.ContentType)

	url, err := store.PreviewURL(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, url, id)

	require.NoError(t, store.Delete(ctx, id))

	_, err = store.Stat(ctx, id)
	assert.ErrorIs(t, err, contentunit.ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), contentunit.ErrNotFound)

	_, err = store.PreviewURL(ctx, id)
	assert.ErrorIs(t, err, contentunit.ErrNotFound)

	// Deleting one asset leaves the other in place.
	_, err = store.Stat(ctx, other)
	assert.NoError(t, err)
}
