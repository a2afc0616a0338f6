package rest

import (
	"log"
	"net/http"
	"strconv"
)

const feeCSVName = "fee-details.csv"

func (h *Handler) ledgerView(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	Success(w, "", ws.Fees.View())
}

func (h *Handler) loadClass(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	class, err := ValidateClassRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	if err := ws.Fees.Load(r.Context(), class); err != nil {
		v := ws.Fees.View()
		failure := v.Error
		if failure == "" {
			failure = "Failed to fetch fee details"
		}
		Fail(w, err, failure, v)
		return
	}
	Success(w, "", ws.Fees.View())
}

func (h *Handler) ledgerFilter(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	req, err := ValidateFilterRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	if err := ws.Fees.SetFilter(req.Field, req.Pattern); err != nil {
		Fail(w, err, "", nil)
		return
	}
	Success(w, "", ws.Fees.View())
}

func (h *Handler) ledgerSort(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	field, err := ValidateSortRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	if err := ws.Fees.SetSort(field); err != nil {
		Fail(w, err, "", nil)
		return
	}
	Success(w, "", ws.Fees.View())
}

// downloadCSV relays the school API's fee CSV as a file download.
func (h *Handler) downloadCSV(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	data, err := ws.Fees.DownloadCSV(r.Context())
	if err != nil {
		Fail(w, err, "Failed to download CSV file", nil)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+feeCSVName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("[HTTP] write csv: %v", err)
	}
}

func (h *Handler) exportLedger(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id, err := h.workspaces.ExportLedger(r.Context(), uid)
	if err != nil {
		Fail(w, err, "failed to start export", nil)
		return
	}
	SuccessAccepted(w, "export started", map[string]string{"export_id": id})
}
