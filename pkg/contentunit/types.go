package contentunit

import "time"

// Status is the domain type for unit visibility states.
type Status string

// Status constants (typed).
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive:
		return true
	}
	return false
}

// ParseStatus converts a raw string to a Status. The empty string maps to
// StatusActive.
func ParseStatus(raw string) (Status, error) {
	if raw == "" {
		return StatusActive, nil
	}
	s := Status(raw)
	if !s.IsValid() {
		return "", validationf("unknown status %q", raw)
	}
	return s, nil
}

// Unit is a content unit: a metadata document keyed by its slug, optionally
// referencing one asset in the blob store.
//
// AssetRef is empty when the unit has no asset. ID never changes after
// creation.
type Unit struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	AssetRef  string    `json:"asset_ref,omitempty"`
	Status    Status    `json:"status"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAsset reports whether the unit references an asset.
func (u *Unit) HasAsset() bool {
	return u != nil && u.AssetRef != ""
}

// Asset describes a binary object held by an AssetStore.
type Asset struct {
	ID          string    `json:"id"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// UnitPatch carries a partial update. Nil fields are left unchanged.
type UnitPatch struct {
	Title     *string
	Body      *string
	Status    *Status
	AssetRef  *string
	UpdatedAt time.Time
}

// Apply copies the set fields of p onto u.
func (p UnitPatch) Apply(u *Unit) {
	if p.Title != nil {
		u.Title = *p.Title
	}
	if p.Body != nil {
		u.Body = *p.Body
	}
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.AssetRef != nil {
		u.AssetRef = *p.AssetRef
	}
	if !p.UpdatedAt.IsZero() {
		u.UpdatedAt = p.UpdatedAt
	}
}

// ListFilter narrows DocumentRepository.List. Zero fields match everything.
type ListFilter struct {
	Status  Status
	OwnerID string
}

// Matches reports whether u passes the filter.
func (f ListFilter) Matches(u *Unit) bool {
	if f.Status != "" && u.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && u.OwnerID != f.OwnerID {
		return false
	}
	return true
}

// ActiveOnly is the default listing filter: units with status active.
func ActiveOnly() ListFilter {
	return ListFilter{Status: StatusActive}
}

// CreateUnitInput contains parameters for CreateUnit.
type CreateUnitInput struct {
	Title       string
	Body        string
	AssetBytes  []byte
	ContentType string
	Status      Status
	OwnerID     string
}

// HasAsset reports whether asset bytes were supplied.
func (in CreateUnitInput) HasAsset() bool {
	return in.AssetBytes != nil
}

// UpdateUnitInput contains parameters for UpdateUnit. Nil fields are left
// unchanged; AssetBytes replaces the unit's asset when non-nil.
type UpdateUnitInput struct {
	Title       *string
	Body        *string
	AssetBytes  []byte
	ContentType string
	Status      *Status
}

// HasAsset reports whether replacement asset bytes were supplied.
func (in UpdateUnitInput) HasAsset() bool {
	return in.AssetBytes != nil
}

func (in UpdateUnitInput) empty() bool {
	return in.Title == nil && in.Body == nil && in.Status == nil && !in.HasAsset()
}

// Result is the outcome of a successful workflow.
//
// Cleanup is set when the primary change is consistent but a best-effort
// removal of a retired asset failed, leaving an orphan behind.
type Result struct {
	Unit    *Unit
	Cleanup *CompensationError
}
