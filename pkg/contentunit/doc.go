// Package contentunit manages content units: a metadata document held in a
// document repository plus an optional binary asset held in a separate blob
// store.
//
// The two stores cannot be updated atomically. The Service sequences calls to
// them so that a document never references a missing asset, and compensates
// with a best-effort asset delete when a later step fails.
//
// # Ordering
//
// CreateUnit uploads the asset before creating the document. UpdateUnit
// uploads the replacement asset, updates the document, and only then deletes
// the retired asset. DeleteUnit deletes the document before its asset. An
// asset that outlives its document (an orphan) is tolerated; a document that
// outlives its asset is not.
//
// Cleanup failures never replace the primary outcome. Failed workflows carry
// them on UnitError.Compensation (see CleanupFailure); successful ones on
// Result.Cleanup.
//
// Repository implementations (memory, Postgres, SQLite) and asset stores
// (memory, filesystem, S3, MinIO) are provided under subpackages.
package contentunit
