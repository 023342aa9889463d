package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mentorhub/libs/db"
	"mentorhub/services/booking-service/internal/model"
)

type BookingRepository struct {
	pool *db.Pool
}

type IdempotencyRecord struct {
	UserID          string
	IdempotencyKey  string
	AppointmentID   string
	StatusCode      int
	ResponsePayload []byte
}

// Finalized reports whether a previous request finished and stored its
// response. A freshly claimed key has no status code yet (NULL reads back
// as zero) and must not be replayed.
func (rec IdempotencyRecord) Finalized() bool {
	return rec.StatusCode > 0
}

func NewBookingRepository(pool *db.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func (r *BookingRepository) LockIdempotencyKey(ctx context.Context, tx pgx.Tx, userID, key string) (IdempotencyRecord, bool, error) {
	rec, err := r.selectIdempotencyForUpdate(ctx, tx, userID, key)
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return IdempotencyRecord{}, false, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (user_id, idempotency_key)
		VALUES ($1, $2)
		ON CONFLICT (user_id, idempotency_key) DO NOTHING
	`, userID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}

	rec, err = r.selectIdempotencyForUpdate(ctx, tx, userID, key)
	if err != nil {
		return IdempotencyRecord{}, false, err
	}
	return rec, false, nil
}

func (r *BookingRepository) FinalizeIdempotency(ctx context.Context, tx pgx.Tx, userID, key, appointmentID string, statusCode int, response []byte) error {
	_, err := tx.Exec(ctx, `
		UPDATE booking_idempotency_keys
		SET appointment_id = $3,
			status_code = $4,
			response_payload = $5,
			updated_at = now()
		WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key, appointmentID, statusCode, response)
	return err
}

func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, appt *model.Appointment) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(mentor_id, user_id, session_date, start_time, session_type, problem_description,
			 status, payment_intent_id, payment_status, amount_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`, appt.MentorID, appt.UserID, appt.SessionDate, appt.StartTime, appt.SessionType, appt.ProblemDescription,
		appt.Status, appt.PaymentIntentID, appt.PaymentStatus, appt.AmountCents, appt.Currency).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *BookingRepository) GetAppointmentForUpdate(ctx context.Context, tx pgx.Tx, appointmentID string) (model.Appointment, error) {
	return r.scanOne(tx.QueryRow(ctx, appointmentSelect+`
		WHERE id = $1
		FOR UPDATE
	`, appointmentID))
}

func (r *BookingRepository) GetAppointment(ctx context.Context, appointmentID string) (model.Appointment, error) {
	return r.scanOne(r.pool.QueryRow(ctx, appointmentSelect+`
		WHERE id = $1
	`, appointmentID))
}

func (r *BookingRepository) CancelAppointment(ctx context.Context, tx pgx.Tx, appointmentID, reason string) (time.Time, error) {
	var cancelledAt time.Time
	err := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
			cancelled_at = now(),
			cancellation_reason = $2
		WHERE id = $1
		RETURNING cancelled_at
	`, appointmentID, reason).Scan(&cancelledAt)
	return cancelledAt, err
}

func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, appointmentID, status string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2
		WHERE id = $1
	`, appointmentID, status)
	return err
}

func (r *BookingRepository) Reschedule(ctx context.Context, tx pgx.Tx, appointmentID, sessionDate, startTime string) error {
	_, err := tx.Exec(ctx, `
		UPDATE appointments
		SET session_date = $2,
			start_time = $3,
			status = 'pending'
		WHERE id = $1
	`, appointmentID, sessionDate, startTime)
	return err
}

// ListBookedMarks returns the taken start times per date for a mentor over
// [fromDate, toDate], excluding cancelled sessions. Used to hide taken slots
// from the derived schedule before it is returned to a browsing user.
func (r *BookingRepository) ListBookedMarks(ctx context.Context, mentorID, fromDate, toDate string) (map[string][]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_date, start_time
		FROM appointments
		WHERE mentor_id = $1
			AND status <> 'cancelled'
			AND session_date >= $2
			AND session_date <= $3
		ORDER BY session_date, start_time
	`, mentorID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	booked := map[string][]string{}
	for rows.Next() {
		var date, start string
		if err := rows.Scan(&date, &start); err != nil {
			return nil, err
		}
		booked[date] = append(booked[date], start)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return booked, nil
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, appointmentSelect+`
		WHERE user_id = $1
		ORDER BY session_date DESC, start_time DESC
		LIMIT $2
	`, userID, limit)
}

func (r *BookingRepository) ListByMentor(ctx context.Context, mentorID string, limit int) ([]model.Appointment, error) {
	return r.list(ctx, appointmentSelect+`
		WHERE mentor_id = $1
		ORDER BY session_date DESC, start_time DESC
		LIMIT $2
	`, mentorID, limit)
}

const appointmentSelect = `
	SELECT id, mentor_id, user_id, session_date::text, start_time, session_type,
		COALESCE(problem_description, ''), status,
		COALESCE(payment_intent_id, ''), COALESCE(payment_status, ''),
		COALESCE(amount_cents, 0), COALESCE(currency, ''),
		cancelled_at, COALESCE(cancellation_reason, ''), created_at
	FROM appointments
`

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var appts []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, appt)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return appts, nil
}

func (r *BookingRepository) scanOne(row pgx.Row) (model.Appointment, error) {
	return scanAppointment(row)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var appt model.Appointment
	var cancelledAt *time.Time
	err := row.Scan(
		&appt.ID,
		&appt.MentorID,
		&appt.UserID,
		&appt.SessionDate,
		&appt.StartTime,
		&appt.SessionType,
		&appt.ProblemDescription,
		&appt.Status,
		&appt.PaymentIntentID,
		&appt.PaymentStatus,
		&appt.AmountCents,
		&appt.Currency,
		&cancelledAt,
		&appt.CancelReason,
		&appt.CreatedAt,
	)
	if err != nil {
		return model.Appointment{}, err
	}
	appt.CancelledAt = cancelledAt
	return appt, nil
}

// IsConflict reports whether err is the partial unique index on
// (mentor_id, session_date, start_time) rejecting a double booking.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func (r *BookingRepository) selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, userID, key string) (IdempotencyRecord, error) {
	var rec IdempotencyRecord
	var responseText string
	err := tx.QueryRow(ctx, `
		SELECT user_id::text,
			idempotency_key,
			COALESCE(appointment_id::text, ''),
			COALESCE(status_code, 0),
			COALESCE(response_payload::text, '')
		FROM booking_idempotency_keys
		WHERE user_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, userID, key).Scan(
		&rec.UserID,
		&rec.IdempotencyKey,
		&rec.AppointmentID,
		&rec.StatusCode,
		&responseText,
	)
	if err != nil {
		return IdempotencyRecord{}, err
	}
	if responseText != "" {
		rec.ResponsePayload = []byte(responseText)
	}
	return rec, nil
}
