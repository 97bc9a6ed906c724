package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/content-unit/pkg/contentunit"
)

const (
	defaultMaxUploadBytes = 10 << 20
	defaultListLimit      = 100
	maxListLimit          = 1000

	// CleanupWarningHeader carries a best-effort cleanup failure on an
	// otherwise successful response.
	CleanupWarningHeader = "X-Cleanup-Warning"

	// TruncatedHeader is set on list responses cut off at the limit.
	TruncatedHeader = "X-Truncated"
)

// UnitResponse is the response body for a unit
type UnitResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	AssetRef       string    `json:"asset_ref,omitempty"`
	Status         string    `json:"status"`
	OwnerID        string    `json:"owner_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	CleanupWarning string    `json:"cleanup_warning,omitempty"`
}

// ErrorResponse is the response body for a failed request
type ErrorResponse struct {
	Error        string `json:"error"`
	CleanupError string `json:"cleanup_error,omitempty"`
}

// Handler handles HTTP requests for content units
type Handler struct {
	service        contentunit.Service
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption configures a Handler
type HandlerOption func(*Handler)

// WithLogger sets the request logger
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxUploadBytes caps the size of an uploaded asset
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxUploadBytes = n
	}
}

// NewHandler creates a new unit handler
func NewHandler(service contentunit.Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service:        service,
		logger:         slog.Default(),
		maxUploadBytes: defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the routes for units
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateUnit)
	r.Get("/", h.ListUnits)
	r.Get("/{id}", h.GetUnit)
	r.Put("/{id}", h.UpdateUnit)
	r.Delete("/{id}", h.DeleteUnit)
	r.Get("/{id}/preview", h.Preview)

	return r
}

// CreateUnit creates a unit from a multipart form
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	if err := h.parseForm(w, r); err != nil {
		h.renderError(w, r, err)
		return
	}

	status, err := contentunit.ParseStatus(r.PostForm.Get("status"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	in := contentunit.CreateUnitInput{
		Title:   r.PostForm.Get("title"),
		Body:    r.PostForm.Get("body"),
		Status:  status,
		OwnerID: ownerID(r),
	}
	in.AssetBytes, in.ContentType, err = h.readAsset(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	res, err := h.service.CreateUnit(r.Context(), in)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	h.logger.Info("Unit created", "unit_id", res.Unit.ID, "asset_id", res.Unit.AssetRef)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toResponse(res))
}

// UpdateUnit applies the fields present in the form to a unit
func (h *Handler) UpdateUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.parseForm(w, r); err != nil {
		h.renderError(w, r, err)
		return
	}

	var in contentunit.UpdateUnitInput
	if vals, ok := r.PostForm["title"]; ok && len(vals) > 0 {
		in.Title = &vals[0]
	}
	if vals, ok := r.PostForm["body"]; ok && len(vals) > 0 {
		in.Body = &vals[0]
	}
	if vals, ok := r.PostForm["status"]; ok && len(vals) > 0 {
		status := contentunit.Status(vals[0])
		in.Status = &status
	}

	var err error
	in.AssetBytes, in.ContentType, err = h.readAsset(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	res, err := h.service.UpdateUnit(r.Context(), id, in)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if res.Cleanup != nil {
		w.Header().Set(CleanupWarningHeader, res.Cleanup.Error())
	}
	h.logger.Info("Unit updated", "unit_id", id, "asset_id", res.Unit.AssetRef)
	render.JSON(w, r, toResponse(res))
}

// DeleteUnit removes a unit and its asset
func (h *Handler) DeleteUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	res, err := h.service.DeleteUnit(r.Context(), id)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	if res.Cleanup != nil {
		w.Header().Set(CleanupWarningHeader, res.Cleanup.Error())
	}
	h.logger.Info("Unit deleted", "unit_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetUnit returns a single unit
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	unit, err := h.service.GetUnit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, toResponse(&contentunit.Result{Unit: unit}))
}

// ListUnits returns units filtered by the status and owner_id query
// parameters. At most limit units are returned; TruncatedHeader marks a cut.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	limit, err := listLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	filter := contentunit.ListFilter{
		OwnerID: r.URL.Query().Get("owner_id"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := contentunit.Status(raw)
		if !status.IsValid() {
			h.renderError(w, r, &contentunit.UnitError{Op: "list", Err: contentunit.ErrValidation})
			return
		}
		filter.Status = status
	}

	units := []UnitResponse{}
	for unit, err := range h.service.ListUnits(r.Context(), filter) {
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		if len(units) == limit {
			w.Header().Set(TruncatedHeader, "true")
			break
		}
		units = append(units, toResponse(&contentunit.Result{Unit: unit}))
	}

	render.JSON(w, r, units)
}

// Preview redirects to the preview URL of the unit's asset
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.PreviewURL(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// AssetOpener is implemented by asset stores that can serve payloads directly
type AssetOpener interface {
	Open(assetID string) (*os.File, error)
}

// ServeAssets serves raw asset payloads at /{id} for stores without their own
// URL endpoint (the filesystem store).
func ServeAssets(store AssetOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := store.Open(chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, contentunit.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", "inline")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return &contentunit.UnitError{Op: "parse_form", Err: errors.Join(contentunit.ErrValidation, err)}
	}
	return nil
}

func listLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxListLimit {
		return 0, &contentunit.UnitError{Op: "list", Err: fmt.Errorf("%w: limit must be between 1 and %d", contentunit.ErrValidation, maxListLimit)}
	}
	return n, nil
}

// readAsset returns nil bytes when the request carries no file part.
func (h *Handler) readAsset(r *http.Request) ([]byte, string, error) {
	if r.MultipartForm == nil {
		return nil, "", nil
	}
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", &contentunit.UnitError{Op: "read_file", Err: errors.Join(contentunit.ErrValidation, err)}
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		return nil, "", &contentunit.UnitError{Op: "read_file", Err: errors.Join(contentunit.ErrValidation, &http.MaxBytesError{Limit: h.maxUploadBytes})}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", &contentunit.UnitError{Op: "read_file", Err: errors.Join(contentunit.ErrValidation, err)}
	}
	if data == nil {
		data = []byte{}
	}
	return data, header.Header.Get("Content-Type"), nil
}

// ownerID prefers the authenticated subject over the form field.
func ownerID(r *http.Request) string {
	if _, claims, err := jwtauth.FromContext(r.Context()); err == nil {
		if sub, ok := claims["sub"].(string); ok && sub != "" {
			return sub
		}
	}
	return r.PostForm.Get("owner_id")
}

func toResponse(res *contentunit.Result) UnitResponse {
	u := res.Unit
	resp := UnitResponse{
		ID:        u.ID,
		Title:     u.Title,
		Body:      u.Body,
		AssetRef:  u.AssetRef,
		Status:    string(u.Status),
		OwnerID:   u.OwnerID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if res.Cleanup != nil {
		resp.CleanupWarning = res.Cleanup.Error()
	}
	return resp
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, contentunit.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, contentunit.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contentunit.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, contentunit.ErrUpload), errors.Is(err, contentunit.ErrStore):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error()}
	if comp := contentunit.CleanupFailure(err); comp != nil {
		resp.CleanupError = comp.Error()
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
