package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"mentorhub/services/booking-service/internal/availability"
	"mentorhub/services/booking-service/internal/model"
	"mentorhub/services/booking-service/internal/outbox"
	"mentorhub/services/booking-service/internal/payments"
	"mentorhub/services/booking-service/internal/storage"
)

const maxHorizonDays = 30

// RulesSource yields the availability rules and timezone for a mentor.
// Backed by the local projection; the gRPC provider satisfies the same
// contract when live reads are compiled in.
type RulesSource interface {
	ListForMentor(ctx context.Context, mentorID string) ([]availability.Rule, string, error)
}

type BookingHandler struct {
	repo            *storage.BookingRepository
	rules           RulesSource
	outboxRepo      *outbox.Repository
	payments        payments.Provider
	logger          *slog.Logger
	reminderOffsets []time.Duration
}

func NewBookingHandler(repo *storage.BookingRepository, rules RulesSource, outboxRepo *outbox.Repository, paymentsProvider payments.Provider, logger *slog.Logger, reminderOffsets []time.Duration) *BookingHandler {
	if len(reminderOffsets) == 0 {
		reminderOffsets = []time.Duration{24 * time.Hour, time.Hour}
	}
	return &BookingHandler{
		repo:            repo,
		rules:           rules,
		outboxRepo:      outboxRepo,
		payments:        paymentsProvider,
		logger:          logger,
		reminderOffsets: reminderOffsets,
	}
}

type slotDay struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

type slotsResponse struct {
	MentorID string    `json:"mentor_id"`
	TimeZone string    `json:"time_zone"`
	Days     []slotDay `json:"days"`
}

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.URL.Query().Get("mentor_id"))
	if mentorID == "" {
		http.Error(w, "mentor_id required", http.StatusBadRequest)
		return
	}

	days := 7
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHorizonDays {
			http.Error(w, "days must be between 1 and 30", http.StatusBadRequest)
			return
		}
		days = n
	}

	excludeBooked, err := excludeBookedParam(r.URL.Query())
	if err != nil {
		http.Error(w, "exclude_booked must be a boolean", http.StatusBadRequest)
		return
	}

	schedule, timeZone, err := h.resolveSchedule(r.Context(), mentorID, days)
	if err != nil {
		if errors.Is(err, availability.ErrInvalidArgument) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to derive slots", http.StatusInternalServerError)
		return
	}

	// Slots are structurally available by default; the write path's unique
	// index still decides races. exclude_booked=true filters taken slots
	// for clients that want a cleaner picker.
	if excludeBooked {
		booked, err := h.repo.ListBookedMarks(r.Context(), mentorID, schedule.Dates[0], schedule.Dates[len(schedule.Dates)-1])
		if err != nil {
			http.Error(w, "failed to load booked slots", http.StatusInternalServerError)
			return
		}
		availability.Exclude(schedule, booked)
	}

	resp := slotsResponse{MentorID: mentorID, TimeZone: timeZone, Days: make([]slotDay, 0, len(schedule.Dates))}
	for _, date := range schedule.Dates {
		resp.Days = append(resp.Days, slotDay{Date: date, Slots: schedule.Slots[date]})
	}

	writeJSON(w, http.StatusOK, resp)
}

func excludeBookedParam(q url.Values) (bool, error) {
	raw := strings.TrimSpace(q.Get("exclude_booked"))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func (h *BookingHandler) resolveSchedule(ctx context.Context, mentorID string, days int) (*availability.Schedule, string, error) {
	rules, timeZone, err := h.rules.ListForMentor(ctx, mentorID)
	if err != nil {
		return nil, "", err
	}

	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		h.logger.Warn("unknown mentor timezone, using UTC", "mentor_id", mentorID, "time_zone", timeZone)
		loc = time.UTC
		timeZone = "UTC"
	}

	schedule, err := availability.Resolve(mentorID, time.Now().In(loc), days, rules)
	if err != nil {
		return nil, "", err
	}
	for _, skipped := range schedule.Skipped {
		h.logger.Warn("malformed availability rule skipped", "mentor_id", mentorID, "rule_id", skipped.RuleID, "reason", skipped.Reason)
	}
	return schedule, timeZone, nil
}

type createBookingRequest struct {
	MentorID           string `json:"mentor_id"`
	SessionDate        string `json:"session_date"`
	StartTime          string `json:"start_time"`
	SessionType        string `json:"session_type"`
	ProblemDescription string `json:"problem_description"`
	AmountCents        int64  `json:"amount_cents"`
	Currency           string `json:"currency"`
}

type createBookingResponse struct {
	AppointmentID       string `json:"appointment_id"`
	Status              string `json:"status"`
	PaymentClientSecret string `json:"payment_client_secret,omitempty"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	req.MentorID = strings.TrimSpace(req.MentorID)
	req.SessionDate = strings.TrimSpace(req.SessionDate)
	req.StartTime = strings.TrimSpace(req.StartTime)
	req.SessionType = strings.TrimSpace(req.SessionType)

	if req.MentorID == "" || req.SessionDate == "" || req.StartTime == "" {
		http.Error(w, "mentor_id, session_date and start_time are required", http.StatusBadRequest)
		return
	}
	if !model.ValidSessionType(req.SessionType) {
		http.Error(w, "session_type must be video, chat or call", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse(availability.DateFormat, req.SessionDate); err != nil {
		http.Error(w, "invalid session_date", http.StatusBadRequest)
		return
	}
	startMinute, err := availability.ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	req.StartTime = availability.FormatClock(startMinute)
	if req.AmountCents < 0 {
		http.Error(w, "invalid amount_cents", http.StatusBadRequest)
		return
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, userID, idempotencyKey)
		if err != nil {
			http.Error(w, "failed to lock idempotency key", http.StatusInternalServerError)
			return
		}
		if exists && rec.Finalized() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			if len(rec.ResponsePayload) > 0 {
				_, _ = w.Write(rec.ResponsePayload)
				return
			}
			_ = json.NewEncoder(w).Encode(createBookingResponse{AppointmentID: rec.AppointmentID, Status: "pending"})
			return
		}
	}

	// The requested slot must be one the mentor actually offers. The unique
	// index still decides races; this rejects times outside the derived grid.
	offered, err := h.slotOffered(ctx, req.MentorID, req.SessionDate, req.StartTime)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	if !offered {
		if idempotencyKey != "" && h.finalizeIdempotencyError(ctx, tx, userID, idempotencyKey, http.StatusUnprocessableEntity, "requested time is outside mentor availability") {
			_ = tx.Commit(ctx)
		}
		http.Error(w, "requested time is outside mentor availability", http.StatusUnprocessableEntity)
		return
	}

	appt := &model.Appointment{
		MentorID:           req.MentorID,
		UserID:             userID,
		SessionDate:        req.SessionDate,
		StartTime:          req.StartTime,
		SessionType:        req.SessionType,
		ProblemDescription: strings.TrimSpace(req.ProblemDescription),
		Status:             "pending",
		AmountCents:        req.AmountCents,
		Currency:           currency,
	}

	var clientSecret string
	if h.payments != nil && req.AmountCents > 0 {
		intent, err := h.payments.CreateIntent(ctx, req.AmountCents, currency, map[string]string{
			"mentor_id":    req.MentorID,
			"user_id":      userID,
			"session_date": req.SessionDate,
			"start_time":   req.StartTime,
		})
		if err != nil {
			// Dependency failure: leave the idempotency key open so the
			// client can retry with the same key.
			http.Error(w, "payment provider unavailable", http.StatusServiceUnavailable)
			return
		}
		appt.PaymentIntentID = intent.ID
		appt.PaymentStatus = string(intent.Status)
		clientSecret = intent.ClientSecret
	}

	id, err := h.repo.Create(ctx, tx, appt)
	if err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to create appointment", http.StatusInternalServerError)
		return
	}

	evtPayload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"mentor_id":      appt.MentorID,
		"user_id":        appt.UserID,
		"session_date":   appt.SessionDate,
		"start_time":     appt.StartTime,
		"session_type":   appt.SessionType,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     "booking.session.created.v1",
		Payload:       evtPayload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	h.enqueueReminders(ctx, tx, id, appt)

	respBody, err := json.Marshal(createBookingResponse{
		AppointmentID:       id,
		Status:              appt.Status,
		PaymentClientSecret: clientSecret,
	})
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, userID, idempotencyKey, id, http.StatusCreated, respBody); err != nil {
			http.Error(w, "failed to finalize idempotency key", http.StatusInternalServerError)
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

// slotOffered re-derives the mentor's schedule and checks the requested mark
// is structurally available. Dates outside the maximum horizon are never
// bookable.
func (h *BookingHandler) slotOffered(ctx context.Context, mentorID, sessionDate, startTime string) (bool, error) {
	schedule, _, err := h.resolveSchedule(ctx, mentorID, maxHorizonDays)
	if err != nil {
		return false, err
	}
	slots, ok := schedule.Slots[sessionDate]
	if !ok {
		return false, nil
	}
	for _, s := range slots {
		if s == startTime {
			return true, nil
		}
	}
	return false, nil
}

func (h *BookingHandler) enqueueReminders(ctx context.Context, tx pgx.Tx, appointmentID string, appt *model.Appointment) {
	startAt, err := sessionStart(ctx, h.rules, appt)
	if err != nil {
		h.logger.Warn("cannot schedule reminders", "appointment_id", appointmentID, "err", err)
		return
	}

	now := time.Now().UTC()
	for _, offset := range h.reminderOffsets {
		remindAt := startAt.Add(-offset)
		if remindAt.Before(now) {
			continue
		}
		payload, err := json.Marshal(map[string]any{
			"appointment_id": appointmentID,
			"mentor_id":      appt.MentorID,
			"user_id":        appt.UserID,
			"session_date":   appt.SessionDate,
			"start_time":     appt.StartTime,
			"session_type":   appt.SessionType,
			"remind_at":      remindAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			h.logger.Error("failed to build reminder payload", "err", err)
			continue
		}
		if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   appointmentID,
			EventType:     "booking.reminder.requested.v1",
			Payload:       payload,
		}); err != nil {
			h.logger.Error("failed to enqueue reminder", "err", err)
		}
	}
}

// sessionStart materializes the appointment's wall-clock start in the
// mentor's timezone as an absolute instant.
func sessionStart(ctx context.Context, rules RulesSource, appt *model.Appointment) (time.Time, error) {
	_, timeZone, err := rules.ListForMentor(ctx, appt.MentorID)
	if err != nil {
		return time.Time{}, err
	}
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(availability.DateFormat, appt.SessionDate, loc)
	if err != nil {
		return time.Time{}, err
	}
	minute, err := availability.ParseClock(appt.StartTime)
	if err != nil {
		return time.Time{}, err
	}
	return day.Add(time.Duration(minute) * time.Minute), nil
}

type cancelBookingRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type cancelBookingResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if !h.mayActOn(r, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	if appt.Status == "cancelled" && appt.CancelledAt != nil {
		writeJSON(w, http.StatusOK, cancelBookingResponse{
			AppointmentID: appt.ID,
			Status:        "cancelled",
			CancelledAt:   appt.CancelledAt.UTC().Format(time.RFC3339),
		})
		return
	}
	if appt.Status == "completed" {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.repo.CancelAppointment(ctx, tx, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	if h.payments != nil && appt.PaymentIntentID != "" && appt.PaymentStatus != "succeeded" {
		if err := h.payments.CancelIntent(ctx, appt.PaymentIntentID); err != nil {
			h.logger.Warn("payment intent cancel failed", "appointment_id", appt.ID, "err", err)
		}
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"mentor_id":      appt.MentorID,
		"user_id":        appt.UserID,
		"session_date":   appt.SessionDate,
		"start_time":     appt.StartTime,
		"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
		"reason":         req.Reason,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.session.cancelled.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, cancelBookingResponse{
		AppointmentID: appt.ID,
		Status:        "cancelled",
		CancelledAt:   cancelledAt.UTC().Format(time.RFC3339),
	})
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	SessionDate   string `json:"session_date"`
	StartTime     string `json:"start_time"`
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.SessionDate = strings.TrimSpace(req.SessionDate)
	req.StartTime = strings.TrimSpace(req.StartTime)
	if req.AppointmentID == "" || req.SessionDate == "" || req.StartTime == "" {
		http.Error(w, "appointment_id, session_date and start_time required", http.StatusBadRequest)
		return
	}
	if _, err := time.Parse(availability.DateFormat, req.SessionDate); err != nil {
		http.Error(w, "invalid session_date", http.StatusBadRequest)
		return
	}
	minute, err := availability.ParseClock(req.StartTime)
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}
	req.StartTime = availability.FormatClock(minute)

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if !h.mayActOn(r, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if appt.Status == "cancelled" || appt.Status == "completed" {
		http.Error(w, "appointment cannot be rescheduled", http.StatusConflict)
		return
	}

	offered, err := h.slotOffered(ctx, appt.MentorID, req.SessionDate, req.StartTime)
	if err != nil {
		http.Error(w, "failed to check availability", http.StatusInternalServerError)
		return
	}
	if !offered {
		http.Error(w, "requested time is outside mentor availability", http.StatusUnprocessableEntity)
		return
	}

	if err := h.repo.Reschedule(ctx, tx, appt.ID, req.SessionDate, req.StartTime); err != nil {
		if storage.IsConflict(err) {
			http.Error(w, "time slot already booked", http.StatusConflict)
			return
		}
		http.Error(w, "failed to reschedule appointment", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id":   appt.ID,
		"mentor_id":        appt.MentorID,
		"user_id":          appt.UserID,
		"old_session_date": appt.SessionDate,
		"old_start_time":   appt.StartTime,
		"session_date":     req.SessionDate,
		"start_time":       req.StartTime,
		"session_type":     appt.SessionType,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     "booking.session.rescheduled.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	appt.SessionDate = req.SessionDate
	appt.StartTime = req.StartTime
	h.enqueueReminders(ctx, tx, appt.ID, &appt)

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": appt.ID,
		"status":         "pending",
		"session_date":   req.SessionDate,
		"start_time":     req.StartTime,
	})
}

type statusRequest struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
}

// UpdateStatus moves a session forward through the mentor-driven states:
// pending -> confirmed -> completed.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Status = strings.TrimSpace(req.Status)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}
	if req.Status != "confirmed" && req.Status != "completed" {
		http.Error(w, "status must be confirmed or completed", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetAppointmentForUpdate(ctx, tx, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	mentorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if role != "admin" && appt.MentorID != mentorID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	validTransition := (appt.Status == "pending" && req.Status == "confirmed") ||
		(appt.Status == "confirmed" && req.Status == "completed")
	if !validTransition {
		http.Error(w, "invalid status transition", http.StatusConflict)
		return
	}

	if err := h.repo.UpdateStatus(ctx, tx, appt.ID, req.Status); err != nil {
		http.Error(w, "failed to update status", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"mentor_id":      appt.MentorID,
		"user_id":        appt.UserID,
		"session_date":   appt.SessionDate,
		"start_time":     appt.StartTime,
		"status":         req.Status,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	eventType := "booking.session.confirmed.v1"
	if req.Status == "completed" {
		eventType = "booking.session.completed.v1"
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"appointment_id": appt.ID, "status": req.Status})
}

type listAppointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	MentorID      string `json:"mentor_id"`
	UserID        string `json:"user_id"`
	SessionDate   string `json:"session_date"`
	StartTime     string `json:"start_time"`
	SessionType   string `json:"session_type"`
	Status        string `json:"status"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	var appts []model.Appointment
	var err error
	if r.URL.Query().Get("as") == "mentor" {
		appts, err = h.repo.ListByMentor(r.Context(), userID, limit)
	} else {
		appts, err = h.repo.ListByUser(r.Context(), userID, limit)
	}
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}

	items := make([]listAppointmentItem, 0, len(appts))
	for _, appt := range appts {
		item := listAppointmentItem{
			AppointmentID: appt.ID,
			MentorID:      appt.MentorID,
			UserID:        appt.UserID,
			SessionDate:   appt.SessionDate,
			StartTime:     appt.StartTime,
			SessionType:   appt.SessionType,
			Status:        appt.Status,
			CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
		}
		if appt.CancelledAt != nil {
			item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	appt, err := h.repo.GetAppointment(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if !h.mayActOn(r, appt) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	item := listAppointmentItem{
		AppointmentID: appt.ID,
		MentorID:      appt.MentorID,
		UserID:        appt.UserID,
		SessionDate:   appt.SessionDate,
		StartTime:     appt.StartTime,
		SessionType:   appt.SessionType,
		Status:        appt.Status,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, item)
}

// mayActOn restricts appointment reads and mutations to its two parties,
// plus admins.
func (h *BookingHandler) mayActOn(r *http.Request, appt model.Appointment) bool {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if role == "admin" {
		return true
	}
	return userID != "" && (appt.UserID == userID || appt.MentorID == userID)
}

func (h *BookingHandler) finalizeIdempotencyError(ctx context.Context, tx pgx.Tx, userID, key string, statusCode int, msg string) bool {
	body, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return false
	}
	if err := h.repo.FinalizeIdempotency(ctx, tx, userID, key, "", statusCode, body); err != nil {
		h.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
