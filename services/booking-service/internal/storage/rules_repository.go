package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"mentorhub/libs/db"
	"mentorhub/services/booking-service/internal/availability"
)

// RulesRepository is the local read model of mentor availability, projected
// from mentor-service events. Keeping a projection here means slot queries
// never fan out to another service on the hot path.
type RulesRepository struct {
	pool *db.Pool
}

func NewRulesRepository(pool *db.Pool) *RulesRepository {
	return &RulesRepository{pool: pool}
}

func (r *RulesRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// ReplaceForMentor swaps in the full rule snapshot carried by an availability
// changed event. Snapshot semantics keep the projection correct regardless of
// how many individual edits the event collapsed.
func (r *RulesRepository) ReplaceForMentor(ctx context.Context, tx pgx.Tx, mentorID, timeZone string, rules []availability.Rule) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO mentor_calendars (mentor_id, time_zone, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (mentor_id) DO UPDATE
		SET time_zone = EXCLUDED.time_zone, updated_at = now()
	`, mentorID, timeZone)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM mentor_availability_rules WHERE mentor_id = $1`, mentorID); err != nil {
		return err
	}

	for _, rule := range rules {
		_, err := tx.Exec(ctx, `
			INSERT INTO mentor_availability_rules (mentor_id, day_of_week, start_minute, end_minute, is_available)
			VALUES ($1, $2, $3, $4, $5)
		`, mentorID, int(rule.Weekday), rule.StartMinute, rule.EndMinute, rule.Available)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListForMentor returns the mentor's stored rules and their IANA timezone.
// A mentor never seen in an event yet has no calendar row; callers treat
// that as an empty rule set in UTC.
func (r *RulesRepository) ListForMentor(ctx context.Context, mentorID string) ([]availability.Rule, string, error) {
	timeZone := "UTC"
	err := r.pool.QueryRow(ctx, `
		SELECT time_zone FROM mentor_calendars WHERE mentor_id = $1
	`, mentorID).Scan(&timeZone)
	if err != nil && !IsNotFound(err) {
		return nil, "", err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id::text, mentor_id, day_of_week, start_minute, end_minute, is_available
		FROM mentor_availability_rules
		WHERE mentor_id = $1
		ORDER BY day_of_week, start_minute
	`, mentorID)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var rules []availability.Rule
	for rows.Next() {
		var rule availability.Rule
		var weekday int
		if err := rows.Scan(&rule.ID, &rule.MentorID, &weekday, &rule.StartMinute, &rule.EndMinute, &rule.Available); err != nil {
			return nil, "", err
		}
		rule.Weekday = time.Weekday(weekday)
		rules = append(rules, rule)
	}
	if rows.Err() != nil {
		return nil, "", rows.Err()
	}
	return rules, timeZone, nil
}
