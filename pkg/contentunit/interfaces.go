package contentunit

import (
	"context"
	"iter"
)

// AssetStore defines the interface for blob storage backends
type AssetStore interface {
	// Put stores data as a new asset and returns its store-assigned id.
	// Either the id is returned and the object is durable, or an error
	// wrapping ErrUpload is returned and nothing was stored.
	Put(ctx context.Context, data []byte, contentType string) (string, error)

	// Delete removes an asset. Unknown ids yield ErrNotFound.
	Delete(ctx context.Context, assetID string) error

	// PreviewURL returns a URL suitable for inline display of the asset
	PreviewURL(ctx context.Context, assetID string) (string, error)

	// Stat returns metadata for an asset
	Stat(ctx context.Context, assetID string) (*Asset, error)
}

// DocumentRepository defines the interface for unit document persistence
type DocumentRepository interface {
	// Create persists a new unit. An existing id yields ErrConflict.
	Create(ctx context.Context, unit *Unit) (*Unit, error)

	// Update applies patch to the unit with the given id. A missing id
	// yields ErrNotFound.
	Update(ctx context.Context, id string, patch UnitPatch) (*Unit, error)

	// Delete removes a unit. A missing id yields ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Get fetches a unit by id
	Get(ctx context.Context, id string) (*Unit, error)

	// List returns the units matching filter. The sequence is lazy and
	// restartable: each range over it re-runs the query.
	List(ctx context.Context, filter ListFilter) iter.Seq2[*Unit, error]
}

// EventSink receives notifications after a workflow has completed
type EventSink interface {
	// UnitCreated is fired when a unit is created
	UnitCreated(ctx context.Context, unit *Unit) error

	// UnitUpdated is fired when a unit is updated
	UnitUpdated(ctx context.Context, unit *Unit) error

	// UnitDeleted is fired when a unit is deleted
	UnitDeleted(ctx context.Context, unitID string) error
}

// Recorder observes workflow and compensation outcomes
type Recorder interface {
	Workflow(op, outcome string)
	Compensation(op, result string)
}
