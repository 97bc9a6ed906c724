package contentunit

import (
	"context"
	"iter"
)

// Service defines the main interface for the content-unit library
type Service interface {
	// Workflows keeping the document and asset stores consistent
	CreateUnit(ctx context.Context, in CreateUnitInput) (*Result, error)
	UpdateUnit(ctx context.Context, id string, in UpdateUnitInput) (*Result, error)
	DeleteUnit(ctx context.Context, id string) (*Result, error)

	// Read operations
	GetUnit(ctx context.Context, id string) (*Unit, error)
	ListUnits(ctx context.Context, filter ListFilter) iter.Seq2[*Unit, error]
	PreviewURL(ctx context.Context, id string) (string, error)
}
