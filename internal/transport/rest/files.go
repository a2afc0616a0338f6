package rest

import (
	"errors"
	"fmt"
	"net/http"

	"school-admin/internal/clients"

	"github.com/go-chi/chi/v5"
)

// serveFile streams a generated export. The download keeps the name the
// file was exported under, without the unique prefix.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	path, err := h.files.Path(file)
	if errors.Is(err, clients.ErrFileNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to access file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clients.DisplayName(file)))
	http.ServeFile(w, r, path)
}
