package rest

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"school-admin/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	exports, err := h.exports.GetExports(r.Context(), uid)
	if err != nil {
		log.Printf("[HTTP] listExports error: %v", err)
		ErrorInternal(w, "failed to get exports")
		return
	}

	Success(w, "", exports)
}

// getExport accepts the bare id or the full "exports:<id>" key.
func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	exportID := chi.URLParam(r, "export_id")
	if exportID == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	if !strings.HasPrefix(exportID, "exports:") {
		exportID = "exports:" + exportID
	}

	export, err := h.exports.GetExport(r.Context(), exportID, uid)
	if errors.Is(err, service.ErrExportNotFound) {
		ErrorNotFound(w, "export not found")
		return
	}
	if err != nil {
		log.Printf("[HTTP] getExport error: %v", err)
		ErrorInternal(w, "failed to get export")
		return
	}

	Success(w, "", export)
}
