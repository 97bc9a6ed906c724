package contentunit_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-unit/pkg/contentunit"
)

func TestParseStatus(t *testing.T) {
	s, err := contentunit.ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, contentunit.StatusActive, s)

	s, err = contentunit.ParseStatus("inactive")
	require.NoError(t, err)
	assert.Equal(t, contentunit.StatusInactive, s)

	_, err = contentunit.ParseStatus("deleted")
	assert.ErrorIs(t, err, contentunit.ErrValidation)
}

func TestUnitPatch_Apply(t *testing.T) {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	u := &contentunit.Unit{ID: "a", Title: "A", Body: "b", AssetRef: "x", Status: contentunit.StatusActive, UpdatedAt: created}

	body := "new body"
	contentunit.UnitPatch{Body: &body}.Apply(u)
	assert.Equal(t, "A", u.Title)
	assert.Equal(t, "new body", u.Body)
	assert.Equal(t, "x", u.AssetRef)
	assert.Equal(t, created, u.UpdatedAt, "zero UpdatedAt leaves the timestamp alone")

	empty := ""
	contentunit.UnitPatch{AssetRef: &empty, UpdatedAt: created.Add(time.Hour)}.Apply(u)
	assert.False(t, u.HasAsset())
	assert.Equal(t, created.Add(time.Hour), u.UpdatedAt)
}

func TestListFilter_Matches(t *testing.T) {
	u := &contentunit.Unit{Status: contentunit.StatusInactive, OwnerID: "bob"}

	assert.True(t, contentunit.ListFilter{}.Matches(u))
	assert.False(t, contentunit.ActiveOnly().Matches(u))
	assert.True(t, contentunit.ListFilter{OwnerID: "bob"}.Matches(u))
	assert.False(t, contentunit.ListFilter{OwnerID: "alice"}.Matches(u))
}

func TestInputHasAsset(t *testing.T) {
	assert.False(t, contentunit.CreateUnitInput{}.HasAsset())
	assert.True(t, contentunit.CreateUnitInput{AssetBytes: []byte{}}.HasAsset(), "empty but present payload counts")
	assert.False(t, contentunit.UpdateUnitInput{}.HasAsset())
}

func TestUnitError(t *testing.T) {
	primary := fmt.Errorf("%w: unit a", contentunit.ErrConflict)
	cleanup := &contentunit.CompensationError{AssetID: "A1", Op: "rollback", Err: errors.New("timeout")}
	err := error(&contentunit.UnitError{UnitID: "a", Op: "create", Err: primary, Compensation: cleanup})

	assert.ErrorIs(t, err, contentunit.ErrConflict)
	assert.Same(t, cleanup, contentunit.CleanupFailure(err))
	assert.Contains(t, err.Error(), `unit operation create failed for unit "a"`)
	assert.Contains(t, err.Error(), `cleanup rollback of asset "A1" failed: timeout`)

	var compErr *contentunit.CompensationError
	assert.False(t, errors.As(err, &compErr), "the compensation is not part of the unwrap chain")

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Same(t, cleanup, contentunit.CleanupFailure(wrapped))
	assert.Nil(t, contentunit.CleanupFailure(errors.New("plain")))
}

func TestAssetError(t *testing.T) {
	err := error(&contentunit.AssetError{AssetID: "A1", Op: "put", Err: contentunit.ErrUpload})
	assert.ErrorIs(t, err, contentunit.ErrUpload)
	assert.Equal(t, `asset operation put failed for asset "A1": upload failed`, err.Error())
}
