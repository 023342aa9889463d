package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jackc/pgx/v5"

	"mentorhub/libs/db"
	"mentorhub/services/mentor-service/internal/model"
)

type ApplicationRepository struct {
	pool *db.Pool
}

func NewApplicationRepository(pool *db.Pool) *ApplicationRepository {
	return &ApplicationRepository{pool: pool}
}

func (r *ApplicationRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// Create stores a pending application and returns its id plus the raw
// approval token. Only the token's hash is persisted; the raw value goes
// out once in the review email.
func (r *ApplicationRepository) Create(ctx context.Context, tx pgx.Tx, app model.Application) (string, string, error) {
	token, err := newToken()
	if err != nil {
		return "", "", err
	}

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO mentor_applications
			(user_id, display_name, title, bio, category_id, time_zone, approval_token_hash, status)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $7, 'pending')
		RETURNING id::text
	`, app.UserID, app.DisplayName, app.Title, app.Bio, app.CategoryID, app.TimeZone, hashToken(token)).Scan(&id)
	if err != nil {
		return "", "", err
	}
	return id, token, nil
}

func (r *ApplicationRepository) GetPendingByToken(ctx context.Context, tx pgx.Tx, token string) (model.Application, error) {
	var app model.Application
	err := tx.QueryRow(ctx, `
		SELECT id::text, user_id::text, display_name, COALESCE(title, ''), COALESCE(bio, ''),
			COALESCE(category_id::text, ''), time_zone, status, created_at
		FROM mentor_applications
		WHERE approval_token_hash = $1 AND status = 'pending'
		FOR UPDATE
	`, hashToken(token)).Scan(
		&app.ID,
		&app.UserID,
		&app.DisplayName,
		&app.Title,
		&app.Bio,
		&app.CategoryID,
		&app.TimeZone,
		&app.Status,
		&app.CreatedAt,
	)
	return app, err
}

func (r *ApplicationRepository) MarkReviewed(ctx context.Context, tx pgx.Tx, applicationID, status string) (time.Time, error) {
	var reviewedAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE mentor_applications
		SET status = $2,
			reviewed_at = now()
		WHERE id = $1
		RETURNING reviewed_at
	`, applicationID, status).Scan(&reviewedAt)
	return reviewedAt, err
}

func (r *ApplicationRepository) ListPending(ctx context.Context, limit int) ([]model.Application, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, user_id::text, display_name, COALESCE(title, ''), COALESCE(bio, ''),
			COALESCE(category_id::text, ''), time_zone, status, created_at
		FROM mentor_applications
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var apps []model.Application
	for rows.Next() {
		var app model.Application
		if err := rows.Scan(&app.ID, &app.UserID, &app.DisplayName, &app.Title, &app.Bio, &app.CategoryID, &app.TimeZone, &app.Status, &app.CreatedAt); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return apps, nil
}

func newToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
