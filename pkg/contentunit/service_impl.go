package contentunit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Workflow outcomes reported to the Recorder.
const (
	OutcomeSuccess            = "success"
	OutcomeCleanupFailed      = "cleanup_failed"
	OutcomeFailed             = "failed"
	OutcomeCompensationFailed = "compensation_failed"
	OutcomeInvalid            = "invalid"
)

// service implements the Service interface
type service struct {
	documents            DocumentRepository
	assets               AssetStore
	eventSink            EventSink
	recorder             Recorder
	logger               *slog.Logger
	requireAssetOnCreate bool
	now                  func() time.Time
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the document repository for the service
func WithRepository(repo DocumentRepository) Option {
	return func(s *service) {
		s.documents = repo
	}
}

// WithAssetStore sets the blob storage backend
func WithAssetStore(store AssetStore) Option {
	return func(s *service) {
		s.assets = store
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithRecorder sets the metrics recorder for the service
func WithRecorder(r Recorder) Option {
	return func(s *service) {
		s.recorder = r
	}
}

// WithLogger sets the logger used for workflow and cleanup diagnostics
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithRequireAssetOnCreate controls whether CreateUnit rejects input without
// asset bytes. Enabled by default.
func WithRequireAssetOnCreate(required bool) Option {
	return func(s *service) {
		s.requireAssetOnCreate = required
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		requireAssetOnCreate: true,
		now:                  func() time.Time { return time.Now().UTC() },
	}

	for _, option := range options {
		option(s)
	}

	if s.documents == nil {
		return nil, fmt.Errorf("document repository is required")
	}
	if s.assets == nil {
		return nil, fmt.Errorf("asset store is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.eventSink == nil {
		s.eventSink = NewNoopEventSink()
	}
	if s.recorder == nil {
		s.recorder = noopRecorder{}
	}

	return s, nil
}

// Workflows

func (s *service) CreateUnit(ctx context.Context, in CreateUnitInput) (*Result, error) {
	const op = "create"
	id := DeriveSlug(in.Title)

	status, err := s.validateCreate(id, in)
	if err != nil {
		s.recorder.Workflow(op, OutcomeInvalid)
		return nil, &UnitError{UnitID: id, Op: op, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(op, id, err, nil)
	}

	// Mutations below run to completion even if the caller goes away.
	mctx := context.WithoutCancel(ctx)

	now := s.now()
	unit := &Unit{
		ID:        id,
		Title:     in.Title,
		Body:      in.Body,
		Status:    status,
		OwnerID:   in.OwnerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.HasAsset() {
		assetID, err := s.putAsset(mctx, in.AssetBytes, in.ContentType)
		if err != nil {
			return nil, s.fail(op, id, err, nil)
		}
		unit.AssetRef = assetID
	}

	stored, err := s.documents.Create(mctx, unit)
	if err != nil {
		var comp *CompensationError
		if unit.HasAsset() {
			comp = s.deleteAsset(mctx, op, "rollback", unit.AssetRef)
		}
		return nil, s.fail(op, id, storeErr(err), comp)
	}

	s.recorder.Workflow(op, OutcomeSuccess)
	s.logger.Debug("unit created", "unit_id", stored.ID, "asset_id", stored.AssetRef)
	if err := s.eventSink.UnitCreated(mctx, stored); err != nil {
		s.logger.Warn("event sink failed", "op", op, "unit_id", stored.ID, "error", err)
	}

	return &Result{Unit: stored}, nil
}

func (s *service) UpdateUnit(ctx context.Context, id string, in UpdateUnitInput) (*Result, error) {
	const op = "update"

	if err := validateUpdate(in); err != nil {
		s.recorder.Workflow(op, OutcomeInvalid)
		return nil, &UnitError{UnitID: id, Op: op, Err: err}
	}

	current, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, s.fail(op, id, storeErr(err), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(op, id, err, nil)
	}

	mctx := context.WithoutCancel(ctx)
	patch := UnitPatch{
		Title:     in.Title,
		Body:      in.Body,
		Status:    in.Status,
		UpdatedAt: s.now(),
	}

	if !in.HasAsset() {
		updated, err := s.documents.Update(mctx, id, patch)
		if err != nil {
			return nil, s.fail(op, id, storeErr(err), nil)
		}
		return s.updated(mctx, updated, nil), nil
	}

	// New asset first, then the document, then retire the old asset.
	newAssetID, err := s.putAsset(mctx, in.AssetBytes, in.ContentType)
	if err != nil {
		return nil, s.fail(op, id, err, nil)
	}
	patch.AssetRef = &newAssetID

	updated, err := s.documents.Update(mctx, id, patch)
	if err != nil {
		comp := s.deleteAsset(mctx, op, "rollback", newAssetID)
		return nil, s.fail(op, id, storeErr(err), comp)
	}

	var cleanup *CompensationError
	if current.HasAsset() && current.AssetRef != newAssetID {
		cleanup = s.deleteAsset(mctx, op, "retire", current.AssetRef)
	}
	return s.updated(mctx, updated, cleanup), nil
}

func (s *service) updated(ctx context.Context, unit *Unit, cleanup *CompensationError) *Result {
	const op = "update"
	if cleanup != nil {
		s.recorder.Workflow(op, OutcomeCleanupFailed)
	} else {
		s.recorder.Workflow(op, OutcomeSuccess)
	}
	s.logger.Debug("unit updated", "unit_id", unit.ID, "asset_id", unit.AssetRef)
	if err := s.eventSink.UnitUpdated(ctx, unit); err != nil {
		s.logger.Warn("event sink failed", "op", op, "unit_id", unit.ID, "error", err)
	}
	return &Result{Unit: unit, Cleanup: cleanup}
}

func (s *service) DeleteUnit(ctx context.Context, id string) (*Result, error) {
	const op = "delete"

	current, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, s.fail(op, id, storeErr(err), nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, s.fail(op, id, err, nil)
	}

	mctx := context.WithoutCancel(ctx)
	if err := s.documents.Delete(mctx, id); err != nil {
		return nil, s.fail(op, id, storeErr(err), nil)
	}

	// The document is gone; the asset is no longer referenced.
	var cleanup *CompensationError
	if current.HasAsset() {
		cleanup = s.deleteAsset(mctx, op, "retire", current.AssetRef)
	}

	if cleanup != nil {
		s.recorder.Workflow(op, OutcomeCleanupFailed)
	} else {
		s.recorder.Workflow(op, OutcomeSuccess)
	}
	s.logger.Debug("unit deleted", "unit_id", id, "asset_id", current.AssetRef)
	if err := s.eventSink.UnitDeleted(mctx, id); err != nil {
		s.logger.Warn("event sink failed", "op", op, "unit_id", id, "error", err)
	}

	return &Result{Unit: current, Cleanup: cleanup}, nil
}

// Read operations

func (s *service) GetUnit(ctx context.Context, id string) (*Unit, error) {
	unit, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, &UnitError{UnitID: id, Op: "get", Err: storeErr(err)}
	}
	return unit, nil
}

func (s *service) ListUnits(ctx context.Context, filter ListFilter) iter.Seq2[*Unit, error] {
	return s.documents.List(ctx, filter)
}

func (s *service) PreviewURL(ctx context.Context, id string) (string, error) {
	const op = "preview"
	unit, err := s.documents.Get(ctx, id)
	if err != nil {
		return "", &UnitError{UnitID: id, Op: op, Err: storeErr(err)}
	}
	if !unit.HasAsset() {
		return "", &UnitError{UnitID: id, Op: op, Err: fmt.Errorf("%w: unit has no asset", ErrNotFound)}
	}
	url, err := s.assets.PreviewURL(ctx, unit.AssetRef)
	if err != nil {
		return "", &UnitError{UnitID: id, Op: op, Err: &AssetError{AssetID: unit.AssetRef, Op: "preview_url", Err: storeErr(err)}}
	}
	return url, nil
}

// Helper methods

func (s *service) validateCreate(id string, in CreateUnitInput) (Status, error) {
	if id == "" {
		return "", validationf("title must contain at least one non-space character")
	}
	if s.requireAssetOnCreate && !in.HasAsset() {
		return "", validationf("an asset is required for new units")
	}
	if in.Status == "" {
		return StatusActive, nil
	}
	if !in.Status.IsValid() {
		return "", validationf("unknown status %q", in.Status)
	}
	return in.Status, nil
}

func validateUpdate(in UpdateUnitInput) error {
	if in.empty() {
		return validationf("update has no fields to change")
	}
	if in.Status != nil && !in.Status.IsValid() {
		return validationf("unknown status %q", *in.Status)
	}
	return nil
}

func (s *service) putAsset(ctx context.Context, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}
	assetID, err := s.assets.Put(ctx, data, contentType)
	if err != nil {
		if !errors.Is(err, ErrUpload) {
			err = fmt.Errorf("%w: %w", ErrUpload, err)
		}
		return "", &AssetError{Op: "put", Err: err}
	}
	return assetID, nil
}

// deleteAsset makes a single best-effort delete attempt. A failure is logged
// and returned for attachment to the primary outcome.
func (s *service) deleteAsset(ctx context.Context, op, reason, assetID string) *CompensationError {
	err := s.assets.Delete(ctx, assetID)
	if err == nil {
		s.recorder.Compensation(op, "ok")
		return nil
	}
	s.recorder.Compensation(op, "failed")
	s.logger.Warn("asset cleanup failed, asset orphaned",
		"op", op, "reason", reason, "asset_id", assetID, "error", err)
	return &CompensationError{AssetID: assetID, Op: reason, Err: err}
}

func (s *service) fail(op, id string, err error, comp *CompensationError) error {
	if comp != nil {
		s.recorder.Workflow(op, OutcomeCompensationFailed)
	} else {
		s.recorder.Workflow(op, OutcomeFailed)
	}
	s.logger.Error("unit workflow failed", "op", op, "unit_id", id, "error", err)
	return &UnitError{UnitID: id, Op: op, Err: err, Compensation: comp}
}

// storeErr keeps classified errors as they are and tags the rest as ErrStore.
func storeErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrValidation), errors.Is(err, ErrStore),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}
