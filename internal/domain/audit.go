package domain

import (
	"encoding/json"
	"time"
)

const (
	AuditLeadStatus    = "lead_status"
	AuditReceiptCreate = "receipt_create"
	AuditReceiptUpdate = "receipt_update"
)

// AuditEntry records one successful write issued through the console.
type AuditEntry struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Kind      string          `json:"kind"`
	Subject   string          `json:"subject"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
