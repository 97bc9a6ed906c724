// Package repotest holds behaviour checks shared by every
// contentunit.DocumentRepository implementation.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-unit/pkg/contentunit"
)

// Run exercises repo through create, update, delete, get and list.
// newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) contentunit.DocumentRepository) {
	t.Run("CreateAndGet", func(t *testing.T) { testCreateAndGet(t, newRepo(t)) })
	t.Run("CreateConflict", func(t *testing.T) { testCreateConflict(t, newRepo(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("UpdateNotFound", func(t *testing.T) { testUpdateNotFound(t, newRepo(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newRepo(t)) })
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newUnit(id string, offset time.Duration) *contentunit.Unit {
	return &contentunit.Unit{
		ID:        id,
		Title:     id,
		Body:      "body of " + id,
		AssetRef:  "asset-" + id,
		Status:    contentunit.StatusActive,
		OwnerID:   "owner-1",
		CreatedAt: base.Add(offset),
		UpdatedAt: base.Add(offset),
	}
}

func testCreateAndGet(t *testing.T, repo contentunit.DocumentRepository) {
	ctx := context.Background()
	unit := newUnit("first-post", 0)

	created, err := repo.Create(ctx, unit)
	require.NoError(t, err)
	assert.Equal(t, "first-post", created.ID)

	got, err := repo.Get(ctx, "first-post")
	require.NoError(t, err)
	assert.Equal(t, unit.Title, got.Title)
	assert.Equal(t, unit.Body, got.Body)
	assert.Equal(t, unit.AssetRef, got.AssetRef)
	assert.Equal(t, unit.Status, got.Status)
	assert.Equal(t, unit.OwnerID, got.OwnerID)
	assert.True(t, unit.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, contentunit.ErrNotFound)
}

func testCreateConflict(t *testing.T, repo contentunit.DocumentRepository) {
	ctx := context.Background()

	_, err := repo.Create(ctx, newUnit("dup", 0))
	require.NoError(t, err)

	second := newUnit("dup", time.Minute)
	second.Title = "other"
	_, err = repo.Create(ctx, second)
	assert.ErrorIs(t, err, contentunit.ErrConflict)

	got, err := repo.Get(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, "dup", got.Title)
}

func testUpdate(t *testing.T, repo contentunit.DocumentRepository) {
	ctx := context.Background()
	_, err := repo.Create(ctx, newUnit("post", 0))
	require.NoError(t, err)

	title := "Renamed"
	inactive := contentunit.StatusInactive
	ref := "asset-new"
	later := base.Add(time.Hour)

	updated, err := repo.Update(ctx, "post", contentunit.UnitPatch{
		Title:     &title,
		Status:    &inactive,
		AssetRef:  &ref,
		UpdatedAt: later,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "body of post", updated.Body)
	assert.Equal(t, contentunit.StatusInactive, updated.Status)
	assert.Equal(t, "asset-new", updated.AssetRef)
	assert.True(t, later.Equal(updated.UpdatedAt))
	assert.True(t, base.Equal(updated.CreatedAt))

	got, err := repo.Get(ctx, "post")
	require.NoError(t, err)
	assert.Equal(t, "asset-new", got.AssetRef)
}

func testUpdateNotFound(t *testing.T, repo contentunit.DocumentRepository) {
	title := "x"
	_, err := repo.Update(context.Background(), "missing", contentunit.UnitPatch{Title: &title, UpdatedAt: base})
	assert.ErrorIs(t, err, contentunit.ErrNotFound)
}

func testDelete(t *testing.T, repo contentunit.DocumentRepository) {
	ctx := context.Background()
	_, err := repo.Create(ctx, newUnit("gone", 0))
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "gone"))

	_, err = repo.Get(ctx, "gone")
	assert.ErrorIs(t, err, contentunit.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "gone"), contentunit.ErrNotFound)
}

func testList(t *testing.T, repo contentunit.DocumentRepository) {
	ctx := context.Background()

	older := newUnit("older", 0)
	newer := newUnit("newer", time.Hour)
	hidden := newUnit("hidden", 2*time.Hour)
	hidden.Status = contentunit.StatusInactive
	other := newUnit("other-owner", 3*time.Hour)
	other.OwnerID = "owner-2"
	other.AssetRef = ""

	for _, u := range []*contentunit.Unit{older, newer, hidden, other} {
		_, err := repo.Create(ctx, u)
		require.NoError(t, err)
	}

	collect := func(filter contentunit.ListFilter) []string {
		var ids []string
		for u, err := range repo.List(ctx, filter) {
			require.NoError(t, err)
			ids = append(ids, u.ID)
		}
		return ids
	}

	assert.Equal(t, []string{"other-owner", "hidden", "newer", "older"}, collect(contentunit.ListFilter{}))
	assert.Equal(t, []string{"other-owner", "newer", "older"}, collect(contentunit.ActiveOnly()))
	assert.Equal(t, []string{"hidden", "newer", "older"}, collect(contentunit.ListFilter{OwnerID: "owner-1"}))
	assert.Equal(t, []string{"hidden"}, collect(contentunit.ListFilter{Status: contentunit.StatusInactive, OwnerID: "owner-1"}))

	// The sequence is restartable and stops early on break.
	seq := repo.List(ctx, contentunit.ListFilter{})
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
	n = 0
	for range seq {
		n++
	}
	assert.Equal(t, 4, n)
}
