package contentunit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/content-unit/pkg/contentunit"
	"github.com/tendant/content-unit/pkg/contentunit/repo/memory"
	memorystorage "github.com/tendant/content-unit/pkg/contentunit/storage/memory"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	log      *callLog
	store    *fakeStore
	repo     *fakeRepo
	recorder *countingRecorder
	svc      contentunit.Service
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	h := &harness{log: &callLog{}, recorder: newCountingRecorder()}
	h.store = newFakeStore(h.log, ids...)
	h.repo = newFakeRepo(h.log)

	svc, err := contentunit.New(
		contentunit.WithRepository(h.repo),
		contentunit.WithAssetStore(h.store),
		contentunit.WithRecorder(h.recorder),
		contentunit.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	h.svc = svc
	return h
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []contentunit.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []contentunit.Option{},
			expectError: true,
		},
		{
			name: "repository without asset store should fail",
			options: []contentunit.Option{
				contentunit.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "with repository and asset store should succeed",
			options: []contentunit.Option{
				contentunit.WithRepository(memory.New()),
				contentunit.WithAssetStore(memorystorage.New()),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := contentunit.New(tt.options...)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreateUnit_WithImage(t *testing.T) {
	h := newHarness(t, "A1")

	res, err := h.svc.CreateUnit(context.Background(), contentunit.CreateUnitInput{
		Title:      "Test Post with Image",
		AssetBytes: jpegBytes,
		Status:     contentunit.StatusActive,
	})
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "test-post-with-image", res.Unit.ID)
	assert.Equal(t, "A1", res.Unit.AssetRef)
	assert.Nil(t, res.Cleanup)
	assert.Equal(t, []string{"put(A1)", "create(test-post-with-image,A1)"}, h.log.all())

	// The referenced asset exists at return time.
	_, err = h.store.Stat(context.Background(), res.Unit.AssetRef)
	assert.NoError(t, err)
	assert.Equal(t, 1, h.recorder.workflows["create/success"])
}

func TestCreateUnit_DefaultsToActive(t *testing.T) {
	h := newHarness(t, "A1")

	res, err := h.svc.CreateUnit(context.Background(), contentunit.CreateUnitInput{
		Title:      "Draft",
		AssetBytes: jpegBytes,
	})
	require.NoError(t, err)
	assert.Equal(t, contentunit.StatusActive, res.Unit.Status)
	assert.False(t, res.Unit.CreatedAt.IsZero())
	assert.Equal(t, res.Unit.CreatedAt, res.Unit.UpdatedAt)
}

func TestCreateUnit_ConflictRollsBackAsset(t *testing.T) {
	h := newHarness(t, "A1", "A2")
	h.repo.seed(&contentunit.Unit{ID: "test-post-with-image", AssetRef: "A0", Status: contentunit.StatusActive})

	res, err := h.svc.CreateUnit(context.Background(), contentunit.CreateUnitInput{
		Title:      "Test Post with Image",
		AssetBytes: jpegBytes,
		Status:     contentunit.StatusActive,
	})
	require.Error(t, err)
	assert.Nil(t, res)

	assert.ErrorIs(t, err, contentunit.ErrConflict)
	assert.NotErrorIs(t, err, contentunit.ErrUpload)
	assert.Nil(t, contentunit.CleanupFailure(err))

	assert.Equal(t, 1, h.log.count("delete(A1)"))
	assert.Equal(t, []string{"put(A1)", "create(test-post-with-image,A1)", "delete(A1)"}, h.log.all())

	// The existing unit is untouched.
	existing, err := h.repo.Get(context.Background(), "test-post-with-image")
	require.NoError(t, err)
	assert.Equal(t, "A0", existing.AssetRef)
	assert.Equal(t, 1, h.recorder.compensations["create/ok"])
}

func TestCreateUnit_RollbackFailureIsAttached(t *testing.T) {
	h := newHarness(t, "A1")
	h.repo.createErr = errBoom
	h.store.deleteErr["A1"] = errDeleteBoom

	_, err := h.svc.CreateUnit(context.Background(), contentunit.CreateUnitInput{
		Title:      "Orphan",
		AssetBytes: jpegBytes,
	})
	require.Error(t, err)

	// The primary failure is the store error, not the cleanup failure.
	assert.ErrorIs(t, err, contentunit.ErrStore)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, errDeleteBoom)

	comp := contentunit.CleanupFailure(err)
	require.NotNil(t, comp)
	assert.Equal(t, "A1", comp.AssetID)
	assert.ErrorIs(t, comp, errDeleteBoom)
	assert.Contains(t, err.Error(), "cleanup rollback")
	assert.Equal(t, 1, h.recorder.workflows["create/compensation_failed"])
}

func TestCreateUnit_UploadFailure(t *testing.T) {
	h := newHarness(t)
	h.store.putErr = errNetworkDown

	_, err := h.svc.CreateUnit(context.Background(), contentunit.CreateUnitInput{
		Title:      "No Upload",
		AssetBytes: jpegBytes,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, contentunit.ErrUpload)
	assert.ErrorIs(t, err, errNetworkDown)

	var assetErr *contentunit.AssetError
	assert.ErrorAs(t, err, &assetErr)
	assert.Equal(t, []string{"put()"}, h.log.all())
	assert.Empty(t, h.repo.units)
}

func TestCreateUnit_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   contentunit.CreateUnitInput
	}{
		{"blank title", contentunit.CreateUnitInput{Title: "   ", AssetBytes: jpegBytes}},
		{"missing asset", contentunit.CreateUnitInput{Title: "No Image"}},
		{"unknown status", contentunit.CreateUnitInput{Title: "Bad", AssetBytes: jpegBytes, Status: "archived"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, "A1")

			_, err := h.svc.CreateUnit(context.Background(), tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, contentunit.ErrValidation)
			assert.Empty(t, h.log.all(), "no side effect may be attempted")
		})
	}
}

func TestCreateUnit_AssetOptional(t *testing.T) {
	log := &callLog{}
	repo := newFakeRepo(log)
	svc, err := contentunit.New(
		contentunit.WithRepository(repo),
		contentunit.WithAssetStore(newFakeStore(log)),
		contentunit.WithRequireAssetOnCreate(false),
		contentunit.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	res, err := svc.CreateUnit(context.Background(), contentunit.CreateUnitInput{Title: "Text Only"})
	require.NoError(t, err)
	assert.False(t, res.Unit.HasAsset())
	assert.Equal(t, []string{"create(text-only,)"}, log.all())
}

func TestCreateUnit_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t, "A1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.CreateUnit(ctx, contentunit.CreateUnitInput{Title: "Late", AssetBytes: jpegBytes})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.log.all())
}

func TestCreateUnit_CancellationIgnoredOnceStarted(t *testing.T) {
	h := newHarness(t, "A1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.repo.createErr = errBoom
	h.repo.onCreate = cancel

	_, err := h.svc.CreateUnit(ctx, contentunit.CreateUnitInput{Title: "Cancelled", AssetBytes: jpegBytes})
	require.Error(t, err)

	// The rollback still runs on a live context.
	assert.Nil(t, contentunit.CleanupFailure(err))
	assert.Equal(t, 1, h.log.count("delete(A1)"))
}

func seedWithAsset(h *harness) {
	h.repo.seed(&contentunit.Unit{
		ID:        "existing",
		Title:     "Existing",
		AssetRef:  "A_old",
		Status:    contentunit.StatusActive,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	h.store.objects["A_old"] = jpegBytes
}

func TestUpdateUnit_ReplaceAssetOrder(t *testing.T) {
	h := newHarness(t, "A_new")
	seedWithAsset(h)

	res, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.NoError(t, err)

	assert.Equal(t, []string{"put(A_new)", "update(existing,A_new)", "delete(A_old)"}, h.log.all())
	assert.Equal(t, "A_new", res.Unit.AssetRef)
	assert.Equal(t, "existing", res.Unit.ID)
	assert.Nil(t, res.Cleanup)
	assert.True(t, res.Unit.UpdatedAt.After(res.Unit.CreatedAt))
}

func TestUpdateUnit_RetireFailureStillSucceeds(t *testing.T) {
	h := newHarness(t, "A_new")
	seedWithAsset(h)
	h.store.deleteErr["A_old"] = errDeleteBoom

	res, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)

	assert.Equal(t, "A_old", res.Cleanup.AssetID)
	assert.ErrorIs(t, res.Cleanup, errDeleteBoom)
	assert.Equal(t, "A_new", res.Unit.AssetRef)
	assert.Equal(t, 1, h.recorder.workflows["update/cleanup_failed"])
}

func TestUpdateUnit_UpdateFailureDeletesNewOnly(t *testing.T) {
	h := newHarness(t, "A_new")
	seedWithAsset(h)
	h.repo.updateErr = errBoom

	_, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, contentunit.ErrStore)

	assert.Equal(t, 1, h.log.count("delete(A_new)"))
	assert.Zero(t, h.log.count("delete(A_old)"))
	assert.Equal(t, []string{"put(A_new)", "update(existing,A_new)", "delete(A_new)"}, h.log.all())

	existing, err := h.repo.Get(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "A_old", existing.AssetRef)
}

func TestUpdateUnit_UploadFailureLeavesUnitUntouched(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	h.store.putErr = errNetworkDown

	_, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.Error(t, err)
	assert.ErrorIs(t, err, contentunit.ErrUpload)
	assert.ErrorIs(t, err, errNetworkDown)
	var assetErr *contentunit.AssetError
	assert.ErrorAs(t, err, &assetErr)
	assert.Nil(t, contentunit.CleanupFailure(err))

	assert.Equal(t, []string{"put()"}, h.log.all())
	existing, err := h.repo.Get(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "A_old", existing.AssetRef)
	assert.Contains(t, h.store.objects, "A_old")
	assert.Equal(t, 1, h.recorder.workflows["update/failed"])
}

func TestUpdateUnit_RollbackFailureIsAttached(t *testing.T) {
	h := newHarness(t, "A_new")
	seedWithAsset(h)
	h.repo.updateErr = errBoom
	h.store.deleteErr["A_new"] = errDeleteBoom

	_, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.NotErrorIs(t, err, errDeleteBoom, "the primary error is not replaced by the cleanup error")

	comp := contentunit.CleanupFailure(err)
	require.NotNil(t, comp)
	assert.Equal(t, "A_new", comp.AssetID)
	assert.Equal(t, "rollback", comp.Op)
	assert.ErrorIs(t, comp, errDeleteBoom)

	assert.Equal(t, []string{"put(A_new)", "update(existing,A_new)", "delete(A_new)"}, h.log.all())
	assert.Equal(t, 1, h.recorder.workflows["update/compensation_failed"])
	assert.Equal(t, 1, h.recorder.compensations["update/failed"])
}

func TestUpdateUnit_AddsFirstAsset(t *testing.T) {
	h := newHarness(t, "A1")
	h.repo.seed(&contentunit.Unit{ID: "bare", Title: "Bare", Status: contentunit.StatusActive})

	res, err := h.svc.UpdateUnit(context.Background(), "bare", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.NoError(t, err)

	assert.Equal(t, []string{"put(A1)", "update(bare,A1)"}, h.log.all())
	assert.Equal(t, "A1", res.Unit.AssetRef)
	assert.Nil(t, res.Cleanup)
	assert.Empty(t, h.recorder.compensations)
}

func TestUpdateUnit_CancellationIgnoredOnceStarted(t *testing.T) {
	h := newHarness(t, "A_new")
	seedWithAsset(h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.repo.onUpdate = cancel

	res, err := h.svc.UpdateUnit(ctx, "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	require.NoError(t, err)

	// The old asset is still retired after the caller went away.
	assert.Nil(t, res.Cleanup)
	assert.Equal(t, []string{"put(A_new)", "update(existing,A_new)", "delete(A_old)"}, h.log.all())
	assert.NotContains(t, h.store.objects, "A_old")
}

func TestUpdateUnit_CancelledBeforeStart(t *testing.T) {
	h := newHarness(t, "A_new")
	seedWithAsset(h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.svc.UpdateUnit(ctx, "existing", contentunit.UpdateUnitInput{AssetBytes: jpegBytes})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.log.all())
}

func TestUpdateUnit_NoAsset(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	title := "Renamed"
	inactive := contentunit.StatusInactive

	res, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{
		Title:  &title,
		Status: &inactive,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"update(existing,)"}, h.log.all())
	assert.Equal(t, "existing", res.Unit.ID, "a title change keeps the id")
	assert.Equal(t, "Renamed", res.Unit.Title)
	assert.Equal(t, contentunit.StatusInactive, res.Unit.Status)
	assert.Equal(t, "A_old", res.Unit.AssetRef)
}

func TestUpdateUnit_NotFound(t *testing.T) {
	h := newHarness(t, "A_new")
	title := "Nope"

	_, err := h.svc.UpdateUnit(context.Background(), "missing", contentunit.UpdateUnitInput{Title: &title, AssetBytes: jpegBytes})
	require.Error(t, err)
	assert.ErrorIs(t, err, contentunit.ErrNotFound)
	assert.Empty(t, h.log.all())
}

func TestUpdateUnit_Validation(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	bogus := contentunit.Status("archived")

	_, err := h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{})
	assert.ErrorIs(t, err, contentunit.ErrValidation)

	_, err = h.svc.UpdateUnit(context.Background(), "existing", contentunit.UpdateUnitInput{Status: &bogus})
	assert.ErrorIs(t, err, contentunit.ErrValidation)
	assert.Empty(t, h.log.all())
}

func TestDeleteUnit_Order(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)

	res, err := h.svc.DeleteUnit(context.Background(), "existing")
	require.NoError(t, err)

	assert.Equal(t, []string{"remove(existing)", "delete(A_old)"}, h.log.all())
	assert.Equal(t, "existing", res.Unit.ID)
	assert.Nil(t, res.Cleanup)
	assert.Empty(t, h.repo.units)
	assert.Empty(t, h.store.objects)
}

func TestDeleteUnit_DocumentFailureKeepsAsset(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	h.repo.deleteErr = errBoom

	_, err := h.svc.DeleteUnit(context.Background(), "existing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)

	assert.Equal(t, []string{"remove(existing)"}, h.log.all())
	assert.Contains(t, h.repo.units, "existing")
	assert.Contains(t, h.store.objects, "A_old")
}

func TestDeleteUnit_AssetFailureIsWarning(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	h.store.deleteErr["A_old"] = errDeleteBoom

	res, err := h.svc.DeleteUnit(context.Background(), "existing")
	require.NoError(t, err)
	require.NotNil(t, res.Cleanup)
	assert.Equal(t, "A_old", res.Cleanup.AssetID)
	assert.Empty(t, h.repo.units)
}

func TestDeleteUnit_CancellationIgnoredOnceStarted(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.repo.onDelete = cancel

	res, err := h.svc.DeleteUnit(ctx, "existing")
	require.NoError(t, err)

	assert.Nil(t, res.Cleanup)
	assert.Equal(t, []string{"remove(existing)", "delete(A_old)"}, h.log.all())
	assert.Empty(t, h.store.objects)
}

func TestDeleteUnit_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.DeleteUnit(context.Background(), "missing")
	assert.ErrorIs(t, err, contentunit.ErrNotFound)
	assert.Empty(t, h.log.all())
}

func TestPreviewURL(t *testing.T) {
	h := newHarness(t)
	seedWithAsset(h)
	h.repo.seed(&contentunit.Unit{ID: "text-only", Status: contentunit.StatusActive})

	url, err := h.svc.PreviewURL(context.Background(), "existing")
	require.NoError(t, err)
	assert.Equal(t, "https://assets.example.com/A_old", url)

	_, err = h.svc.PreviewURL(context.Background(), "text-only")
	assert.ErrorIs(t, err, contentunit.ErrNotFound)

	_, err = h.svc.PreviewURL(context.Background(), "missing")
	assert.ErrorIs(t, err, contentunit.ErrNotFound)
}

func TestEndToEnd_MemoryBackends(t *testing.T) {
	repo := memory.New()
	store := memorystorage.New()
	svc, err := contentunit.New(
		contentunit.WithRepository(repo),
		contentunit.WithAssetStore(store),
		contentunit.WithEventSink(contentunit.NewLoggingEventSink(quietLogger())),
		contentunit.WithLogger(quietLogger()),
	)
	require.NoError(t, err)
	ctx := context.Background()

	created, err := svc.CreateUnit(ctx, contentunit.CreateUnitInput{
		Title:      "My First Post",
		AssetBytes: jpegBytes,
		OwnerID:    "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-first-post", created.Unit.ID)

	asset, err := store.Stat(ctx, created.Unit.AssetRef)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", asset.ContentType)

	updated, err := svc.UpdateUnit(ctx, "my-first-post", contentunit.UpdateUnitInput{AssetBytes: []byte("plain text")})
	require.NoError(t, err)
	assert.NotEqual(t, created.Unit.AssetRef, updated.Unit.AssetRef)
	assert.Equal(t, 1, store.Len(), "old asset is retired")

	var ids []string
	for u, err := range svc.ListUnits(ctx, contentunit.ListFilter{OwnerID: "alice"}) {
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"my-first-post"}, ids)

	_, err = svc.DeleteUnit(ctx, "my-first-post")
	require.NoError(t, err)
	assert.Zero(t, store.Len())

	_, err = svc.GetUnit(ctx, "my-first-post")
	assert.True(t, errors.Is(err, contentunit.ErrNotFound))
}
