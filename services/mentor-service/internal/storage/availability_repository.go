package storage

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mentorhub/libs/db"
	"mentorhub/services/mentor-service/internal/model"
)

// AvailabilityRepository owns the canonical weekly rule rows. Every write
// commits alongside an outbox snapshot event so downstream projections stay
// in sync.
type AvailabilityRepository struct {
	pool *db.Pool
}

func NewAvailabilityRepository(pool *db.Pool) *AvailabilityRepository {
	return &AvailabilityRepository{pool: pool}
}

func (r *AvailabilityRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *AvailabilityRepository) ListRules(ctx context.Context, mentorID string) ([]model.AvailabilityRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, mentor_id::text, day_of_week, start_minute, end_minute, is_available
		FROM mentor_availability
		WHERE mentor_id = $1
		ORDER BY day_of_week, start_minute
	`, mentorID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func (r *AvailabilityRepository) ListRulesTx(ctx context.Context, tx pgx.Tx, mentorID string) ([]model.AvailabilityRule, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, mentor_id::text, day_of_week, start_minute, end_minute, is_available
		FROM mentor_availability
		WHERE mentor_id = $1
		ORDER BY day_of_week, start_minute
	`, mentorID)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

// ReplaceDay swaps a single weekday's windows for the given set. The mentor
// settings screen edits one day at a time.
func (r *AvailabilityRepository) ReplaceDay(ctx context.Context, tx pgx.Tx, mentorID string, dayOfWeek int, windows []model.AvailabilityRule) error {
	_, err := tx.Exec(ctx, `
		DELETE FROM mentor_availability
		WHERE mentor_id = $1 AND day_of_week = $2
	`, mentorID, dayOfWeek)
	if err != nil {
		return err
	}

	for _, w := range windows {
		_, err := tx.Exec(ctx, `
			INSERT INTO mentor_availability (id, mentor_id, day_of_week, start_minute, end_minute, is_available)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.NewString(), mentorID, dayOfWeek, w.StartMinute, w.EndMinute, w.IsAvailable)
		if err != nil {
			return err
		}
	}
	return nil
}

// CopyDayToAll replicates the source weekday's windows onto the six other
// weekdays, replacing whatever those days held before. Returns the full rule
// set after the copy.
func (r *AvailabilityRepository) CopyDayToAll(ctx context.Context, tx pgx.Tx, mentorID string, sourceDay int) ([]model.AvailabilityRule, error) {
	source, err := r.listDayTx(ctx, tx, mentorID, sourceDay)
	if err != nil {
		return nil, err
	}

	for day := 0; day <= 6; day++ {
		if day == sourceDay {
			continue
		}
		copies := make([]model.AvailabilityRule, 0, len(source))
		for _, w := range source {
			w.DayOfWeek = day
			copies = append(copies, w)
		}
		if err := r.ReplaceDay(ctx, tx, mentorID, day, copies); err != nil {
			return nil, err
		}
	}

	return r.ListRulesTx(ctx, tx, mentorID)
}

func (r *AvailabilityRepository) listDayTx(ctx context.Context, tx pgx.Tx, mentorID string, dayOfWeek int) ([]model.AvailabilityRule, error) {
	rows, err := tx.Query(ctx, `
		SELECT id::text, mentor_id::text, day_of_week, start_minute, end_minute, is_available
		FROM mentor_availability
		WHERE mentor_id = $1 AND day_of_week = $2
		ORDER BY start_minute
	`, mentorID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]model.AvailabilityRule, error) {
	defer rows.Close()

	var rules []model.AvailabilityRule
	for rows.Next() {
		var rule model.AvailabilityRule
		if err := rows.Scan(&rule.ID, &rule.MentorID, &rule.DayOfWeek, &rule.StartMinute, &rule.EndMinute, &rule.IsAvailable); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return rules, nil
}
