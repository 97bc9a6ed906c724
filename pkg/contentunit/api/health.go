package api

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
)

// ReadyHandler reports readiness as the outcome of check.
func ReadyHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := check(r.Context()); err != nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.PlainText(w, r, err.Error())
			return
		}
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	}
}
