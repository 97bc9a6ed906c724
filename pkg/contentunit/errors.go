package contentunit

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrValidation indicates caller-fixable input; no side effect was attempted
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates the unit id already exists in the document store
	ErrConflict = errors.New("unit already exists")

	// ErrNotFound indicates a referenced unit or asset does not exist
	ErrNotFound = errors.New("not found")

	// ErrUpload indicates an asset upload failed
	ErrUpload = errors.New("upload failed")

	// ErrStore indicates a backing-service call failed
	ErrStore = errors.New("store operation failed")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// UnitError represents a failed workflow on a unit.
//
// Err is the primary failure and the only error reachable through Unwrap.
// Compensation is set when a rollback step attempted after Err also failed.
type UnitError struct {
	UnitID       string
	Op           string
	Err          error
	Compensation *CompensationError
}

func (e *UnitError) Error() string {
	msg := fmt.Sprintf("unit operation %s failed for unit %q: %v", e.Op, e.UnitID, e.Err)
	if e.Compensation != nil {
		msg += " (" + e.Compensation.Error() + ")"
	}
	return msg
}

func (e *UnitError) Unwrap() error {
	return e.Err
}

// AssetError represents an error related to asset store operations
type AssetError struct {
	AssetID string
	Op      string
	Err     error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset operation %s failed for asset %q: %v", e.Op, e.AssetID, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// CompensationError is a secondary failure: a best-effort delete of an asset
// that was rolled back or retired did not succeed. The asset is orphaned.
type CompensationError struct {
	AssetID string
	Op      string
	Err     error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("cleanup %s of asset %q failed: %v", e.Op, e.AssetID, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// CleanupFailure returns the compensation failure attached to a workflow
// error, or nil when the rollback succeeded or none was needed.
func CleanupFailure(err error) *CompensationError {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue.Compensation
	}
	return nil
}
