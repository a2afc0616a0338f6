package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"school-admin/internal/domain"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// decodeJSON reads the request body into dst. An empty body leaves dst as is.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Field: "body", Message: "invalid JSON"}
	}
	return nil
}

type TabRequest struct {
	Status string `json:"status"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type FilterRequest struct {
	Field   string `json:"field"`
	Pattern string `json:"pattern"`
}

type SortRequest struct {
	Field string `json:"field"`
}

type ClassRequest struct {
	Class string `json:"class"`
}

type ReceiptOpenRequest struct {
	CustomID    string `json:"customId"`
	Name        string `json:"name"`
	ApplicantID string `json:"applicantId"`
}

type ReceiptEditRequest struct {
	CustomID     *string `json:"customId"`
	Installments []int   `json:"installments"`
	Date         *string `json:"date"`
}

func ValidateTabRequest(r *http.Request) (domain.LeadStatus, error) {
	var req TabRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	status, err := domain.ParseLeadStatus(req.Status)
	if err != nil {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", req.Status)}
	}
	return status, nil
}

// ValidateStatusRequest requires a status; unlike a tab switch it has no default.
func ValidateStatusRequest(r *http.Request) (domain.LeadStatus, error) {
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.Status) == "" {
		return "", &ValidationError{Field: "status", Message: "status is required"}
	}
	status, err := domain.ParseLeadStatus(req.Status)
	if err != nil {
		return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", req.Status)}
	}
	return status, nil
}

func ValidateFilterRequest(r *http.Request) (*FilterRequest, error) {
	var req FilterRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if req.Field == "" {
		return nil, &ValidationError{Field: "field", Message: "field is required"}
	}
	return &req, nil
}

func ValidateSortRequest(r *http.Request) (string, error) {
	var req SortRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	if req.Field == "" {
		return "", &ValidationError{Field: "field", Message: "field is required"}
	}
	return req.Field, nil
}

func ValidateClassRequest(r *http.Request) (string, error) {
	var req ClassRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	class := strings.TrimSpace(req.Class)
	if err := domain.ValidateClass(class); err != nil {
		return "", &ValidationError{Field: "class", Message: fmt.Sprintf("unknown class %q", req.Class)}
	}
	return class, nil
}

func ValidateReceiptOpenRequest(r *http.Request) (*ReceiptOpenRequest, error) {
	var req ReceiptOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	req.CustomID = strings.TrimSpace(req.CustomID)
	return &req, nil
}

func ValidateReceiptEditRequest(r *http.Request) (*ReceiptEditRequest, error) {
	var req ReceiptEditRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	for _, n := range req.Installments {
		if !domain.Slot(n).Valid() {
			return nil, &ValidationError{Field: "installments", Message: "installments must be 1, 2 or 3"}
		}
	}
	if req.Date != nil && *req.Date != "" {
		if _, err := time.Parse("2006-01-02", *req.Date); err != nil {
			return nil, &ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"}
		}
	}
	return &req, nil
}

func (req *ReceiptEditRequest) Slots() []domain.Slot {
	if req.Installments == nil {
		return nil
	}
	out := make([]domain.Slot, 0, len(req.Installments))
	for _, n := range req.Installments {
		out = append(out, domain.Slot(n))
	}
	return out
}

func ValidateAuditQuery(r *http.Request) (kind string, limit int, err error) {
	q := r.URL.Query()
	kind = q.Get("kind")
	switch kind {
	case "", domain.AuditLeadStatus, domain.AuditReceiptCreate, domain.AuditReceiptUpdate:
	default:
		return "", 0, &ValidationError{Field: "kind", Message: fmt.Sprintf("unknown kind %q", kind)}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			return "", 0, &ValidationError{Field: "limit", Message: "limit must be a positive integer"}
		}
	}
	return kind, limit, nil
}
