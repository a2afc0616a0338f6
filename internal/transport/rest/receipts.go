package rest

import (
	"net/http"

	"school-admin/internal/browser"
)

func (h *Handler) receiptForm(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	Success(w, "", ws.Fees.Receipt())
}

func (h *Handler) closeReceipt(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	ws.Fees.CloseReceipt()
	Success(w, "", ws.Fees.Receipt())
}

// openReceipt opens the modal for a student. The form comes back in update
// mode when the school API already holds a receipt for the key.
func (h *Handler) openReceipt(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	req, err := ValidateReceiptOpenRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	form, err := ws.Fees.OpenReceipt(r.Context(), req.CustomID, req.Name, req.ApplicantID)
	if err != nil {
		Fail(w, err, "Failed to fetch receipt data", ws.Fees.Receipt())
		return
	}
	Success(w, "", form)
}

func (h *Handler) editReceipt(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	req, err := ValidateReceiptEditRequest(r)
	if err != nil {
		Fail(w, err, "", nil)
		return
	}
	form, err := ws.Fees.EditReceipt(browser.ReceiptEdit{
		CustomID:     req.CustomID,
		Installments: req.Slots(),
		Date:         req.Date,
	})
	if err != nil {
		Fail(w, err, "", ws.Fees.Receipt())
		return
	}
	Success(w, "", form)
}

func (h *Handler) submitReceipt(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	sub, err := h.workspaces.SubmitReceipt(r.Context(), uid)
	if err != nil {
		Fail(w, err, "Failed to generate receipt", h.workspaces.Get(r.Context(), uid).Fees.Receipt())
		return
	}
	Success(w, "Receipt generated successfully!", sub)
}
