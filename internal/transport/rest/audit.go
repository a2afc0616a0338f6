package rest

import (
	"log"
	"net/http"

	"school-admin/internal/repository"
)

// listAudit returns the admin's own recent writes, newest first.
func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	kind, limit, err := ValidateAuditQuery(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}

	entries, err := h.audit.List(r.Context(), repository.AuditFilter{UserID: &uid, Kind: kind, Limit: limit})
	if err != nil {
		log.Printf("[HTTP] listAudit error: %v", err)
		ErrorInternal(w, "failed to get audit log")
		return
	}

	Success(w, "", entries)
}
