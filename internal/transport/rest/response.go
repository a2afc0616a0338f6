package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"school-admin/internal/browser"
	"school-admin/internal/domain"
)

type APIResponse struct {
	ErrorCode int    `json:"error_code"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

func Response(w http.ResponseWriter, message string, data any, errorCode int, status string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	response := APIResponse{
		ErrorCode: errorCode,
		Status:    status,
		Message:   message,
		Data:      data,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("[HTTP] write response error: %v", err)
	}
}

func Success(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusOK)
}

func SuccessAccepted(w http.ResponseWriter, message string, data any) {
	Response(w, message, data, 0, "success", http.StatusAccepted)
}

func Error(w http.ResponseWriter, message string, errorCode int, httpStatus int) {
	Response(w, message, nil, errorCode, "error", httpStatus)
}

func ErrorBadRequest(w http.ResponseWriter, message string) {
	Error(w, message, 400, http.StatusBadRequest)
}

func ErrorUnauthorized(w http.ResponseWriter, message string) {
	Error(w, message, 401, http.StatusUnauthorized)
}

func ErrorNotFound(w http.ResponseWriter, message string) {
	Error(w, message, 404, http.StatusNotFound)
}

func ErrorInternal(w http.ResponseWriter, message string) {
	Error(w, message, 500, http.StatusInternalServerError)
}

// Fail maps a browser error to a status code. data, usually the current
// view, is sent along so the console can render the degraded state.
//
//	validation and unknown keys  400
//	superseded by a newer call   409
//	school API failures          502
func Fail(w http.ResponseWriter, err error, failure string, data any) {
	var (
		bverr *browser.ValidationError
		rverr *ValidationError
	)
	switch {
	case errors.As(err, &bverr):
		Response(w, bverr.Message, data, 400, "error", http.StatusBadRequest)
	case errors.As(err, &rverr):
		Response(w, rverr.Message, data, 400, "error", http.StatusBadRequest)
	case errors.Is(err, domain.ErrUnknownStatus),
		errors.Is(err, domain.ErrUnknownClass),
		errors.Is(err, browser.ErrUnknownColumn):
		Response(w, err.Error(), data, 400, "error", http.StatusBadRequest)
	case errors.Is(err, browser.ErrSuperseded):
		Response(w, "superseded by a newer request", data, 409, "error", http.StatusConflict)
	default:
		log.Printf("[HTTP] %s: %v", failure, err)
		Response(w, failure, data, 502, "error", http.StatusBadGateway)
	}
}
