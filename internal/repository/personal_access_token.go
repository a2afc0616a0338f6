package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"school-admin/internal/domain"
)

var ErrTokenNotFound = errors.New("token not found")

const DefaultTokenableType = `App\Models\User`

// PersonalAccessTokenRepository resolves admin API tokens of the
// "<id>|<secret>" form against personal_access_tokens, where the secret is
// stored as its sha256 hex digest.
type PersonalAccessTokenRepository struct {
	db            *sql.DB
	tokenableType string
}

func NewPersonalAccessTokenRepository(db *sql.DB, tokenableType string) *PersonalAccessTokenRepository {
	if tokenableType == "" {
		tokenableType = DefaultTokenableType
	}
	return &PersonalAccessTokenRepository{db: db, tokenableType: tokenableType}
}

// splitToken separates the optional numeric id prefix from the secret.
func splitToken(plain string) (*int64, string) {
	plain = strings.TrimSpace(plain)
	idStr, secret, ok := strings.Cut(plain, "|")
	if !ok || idStr == "" {
		return nil, plain
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, secret
	}
	return &id, secret
}

func hashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func (r *PersonalAccessTokenRepository) scan(row *sql.Row) (*domain.PersonalAccessToken, error) {
	var (
		pat       domain.PersonalAccessToken
		abilities sql.NullString
		expiresAt sql.NullTime
	)
	if err := row.Scan(&pat.ID, &pat.TokenHash, &pat.UserID, &abilities, &expiresAt); err != nil {
		return nil, err
	}
	pat.Abilities = abilities.String
	if expiresAt.Valid {
		pat.ExpiresAt = &expiresAt.Time
	}
	return &pat, nil
}

func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*domain.PersonalAccessToken, error) {
	id, secret := splitToken(plainToken)
	if secret == "" {
		return nil, ErrTokenNotFound
	}
	hash := hashToken(secret)
	now := time.Now()

	if id != nil {
		pat, err := r.scan(r.db.QueryRowContext(ctx, `
			SELECT id, token, tokenable_id, abilities, expires_at
			FROM personal_access_tokens
			WHERE id = $1
			  AND tokenable_type = $2
			  AND (expires_at IS NULL OR expires_at > $3)
		`, *id, r.tokenableType, now))
		switch {
		case err == nil && pat.TokenHash == hash:
			return pat, nil
		case err == nil, errors.Is(err, sql.ErrNoRows):
			return nil, ErrTokenNotFound
		default:
			return nil, fmt.Errorf("query token by id: %w", err)
		}
	}

	pat, err := r.scan(r.db.QueryRowContext(ctx, `
		SELECT id, token, tokenable_id, abilities, expires_at
		FROM personal_access_tokens
		WHERE tokenable_type = $1
		  AND token = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at DESC
		LIMIT 1
	`, r.tokenableType, hash, now))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token by hash: %w", err)
	}
	return pat, nil
}
