package storage

import (
	"context"

	"github.com/jackc/pgx/v5"

	"mentorhub/libs/db"
)

type Profile struct {
	UserID    string
	FullName  string
	AvatarURL string
	TimeZone  string
}

type ProfileRepository struct {
	pool *db.Pool
}

func NewProfileRepository(pool *db.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

func (r *ProfileRepository) CreateTx(ctx context.Context, tx pgx.Tx, profile Profile) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO profiles (user_id, full_name, avatar_url, time_zone)
		VALUES ($1, $2, NULLIF($3, ''), $4)
	`, profile.UserID, profile.FullName, profile.AvatarURL, profile.TimeZone)
	return err
}

func (r *ProfileRepository) Get(ctx context.Context, userID string) (Profile, error) {
	var profile Profile
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, full_name, COALESCE(avatar_url, ''), time_zone
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&profile.UserID, &profile.FullName, &profile.AvatarURL, &profile.TimeZone)
	if err != nil {
		return Profile{}, err
	}
	return profile, nil
}

func (r *ProfileRepository) Update(ctx context.Context, profile Profile) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE profiles
		SET full_name = $2, avatar_url = NULLIF($3, ''), time_zone = $4, updated_at = now()
		WHERE user_id = $1
	`, profile.UserID, profile.FullName, profile.AvatarURL, profile.TimeZone)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ProfileRepository) DeleteTx(ctx context.Context, tx pgx.Tx, userID string) error {
	_, err := tx.Exec(ctx, `DELETE FROM profiles WHERE user_id = $1`, userID)
	return err
}
