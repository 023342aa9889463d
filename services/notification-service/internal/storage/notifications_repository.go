package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"mentorhub/libs/db"
)

type Notification struct {
	ID          string
	RecipientID string
	Kind        string
	Title       string
	Body        string
	Data        map[string]any
	Channel     string
	Status      string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) (string, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, kind, title, body, data, channel, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, n.RecipientID, n.Kind, n.Title, n.Body, data, n.Channel, n.Status)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListForRecipient(ctx context.Context, recipientID string, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, kind, title, body, data, channel, status, read_at, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.Title, &n.Body, &data, &n.Channel, &n.Status, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &n.Data)
		}
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL
	`, recipientID).Scan(&n)
	return n, err
}

// MarkRead flags the given notifications; an empty id list marks everything.
func (r *Repository) MarkRead(ctx context.Context, recipientID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		tag, err := r.pool.Exec(ctx, `
			UPDATE notifications
			SET read_at = now()
			WHERE recipient_id = $1 AND read_at IS NULL
		`, recipientID)
		if err != nil {
			return 0, err
		}
		return tag.RowsAffected(), nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications
		SET read_at = now()
		WHERE recipient_id = $1 AND id = ANY($2) AND read_at IS NULL
	`, recipientID, ids)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
