package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) leadView(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	Success(w, "", ws.Leads.View())
}

func (h *Handler) selectTab(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	status, err := ValidateTabRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	if err := ws.Leads.SelectTab(r.Context(), status); err != nil {
		Fail(w, err, "Failed to fetch leads", ws.Leads.View())
		return
	}
	Success(w, "", ws.Leads.View())
}

func (h *Handler) leadFilter(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	req, err := ValidateFilterRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	if err := ws.Leads.SetFilter(req.Field, req.Pattern); err != nil {
		Fail(w, err, "", nil)
		return
	}
	Success(w, "", ws.Leads.View())
}

func (h *Handler) leadSort(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	field, err := ValidateSortRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	if err := ws.Leads.SetSort(field); err != nil {
		Fail(w, err, "", nil)
		return
	}
	Success(w, "", ws.Leads.View())
}

// changeLeadStatus asks the school API to move a lead. The lead leaves the
// current tab once the reload that follows reports it elsewhere.
func (h *Handler) changeLeadStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	status, err := ValidateStatusRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	uuid := chi.URLParam(r, "uuid")
	if err := h.workspaces.ChangeLeadStatus(r.Context(), uid, uuid, status); err != nil {
		Fail(w, err, "Failed to update status", h.workspaces.Get(r.Context(), uid).Leads.View())
		return
	}
	Success(w, "Status updated", h.workspaces.Get(r.Context(), uid).Leads.View())
}

func (h *Handler) exportLeads(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, err := h.workspaces.ExportLeads(r.Context(), uid)
	if err != nil {
		Fail(w, err, "failed to start export", nil)
		return
	}
	SuccessAccepted(w, "export started", map[string]string{"export_id": id})
}
