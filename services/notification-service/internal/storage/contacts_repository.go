package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"mentorhub/libs/db"
)

// Contact is a local projection of auth.user.created.v1, kept so senders can
// address users without a synchronous call to auth.
type Contact struct {
	UserID   string
	Email    string
	FullName string
}

type ContactsRepository struct {
	pool *db.Pool
}

func NewContactsRepository(pool *db.Pool) *ContactsRepository {
	return &ContactsRepository{pool: pool}
}

func (r *ContactsRepository) Upsert(ctx context.Context, c Contact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO contacts (user_id, email, full_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET email = EXCLUDED.email, full_name = EXCLUDED.full_name
	`, c.UserID, c.Email, c.FullName)
	return err
}

func (r *ContactsRepository) Get(ctx context.Context, userID string) (Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, email, full_name
		FROM contacts
		WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.Email, &c.FullName)
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (r *ContactsRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM contacts WHERE user_id = $1`, userID)
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
