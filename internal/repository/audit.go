package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"school-admin/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS admin_audit_log (
	id         uuid PRIMARY KEY,
	user_id    bigint      NOT NULL,
	kind       text        NOT NULL,
	subject    text        NOT NULL,
	payload    jsonb       NOT NULL DEFAULT '{}'::jsonb,
	created_at timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS admin_audit_log_user_created_idx ON admin_audit_log (user_id, created_at DESC);
`

type AuditFilter struct {
	UserID *int64
	Kind   string
	Limit  int
}

// AuditRepository journals the writes admins issue through the console.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("create audit table: %w", err)
	}
	return nil
}

func (r *AuditRepository) Record(ctx context.Context, e domain.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO admin_audit_log (id, user_id, kind, subject, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.UserID, e.Kind, e.Subject, string(payload), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func buildAuditQuery(f AuditFilter) (string, []any) {
	where := []string{"1=1"}
	args := []any{}
	i := 1

	if f.UserID != nil {
		where = append(where, fmt.Sprintf("user_id = $%d", i))
		args = append(args, *f.UserID)
		i++
	}
	if f.Kind != "" {
		where = append(where, fmt.Sprintf("kind = $%d", i))
		args = append(args, f.Kind)
		i++
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	limit = min(limit, maxAuditLimit)
	args = append(args, limit)

	query := `SELECT id, user_id, kind, subject, payload, created_at FROM admin_audit_log WHERE ` +
		strings.Join(where, " AND ") +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", i)
	return query, args
}

// List returns the newest entries first.
func (r *AuditRepository) List(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, error) {
	query, args := buildAuditQuery(f)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditEntry{}
	for rows.Next() {
		var (
			e       domain.AuditEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Subject, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}
