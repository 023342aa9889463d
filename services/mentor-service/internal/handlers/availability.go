package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"

	"mentorhub/services/mentor-service/internal/model"
	"mentorhub/services/mentor-service/internal/outbox"
	"mentorhub/services/mentor-service/internal/storage"
)

// AvailabilityHandler is the mentor-facing CRUD surface for weekly windows.
// Every mutation commits a full-snapshot changed event in the same
// transaction, which is what keeps the booking projection consistent.
type AvailabilityHandler struct {
	mentors    *storage.Repository
	rules      *storage.AvailabilityRepository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewAvailabilityHandler(mentors *storage.Repository, rules *storage.AvailabilityRepository, outboxRepo *outbox.Repository, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{mentors: mentors, rules: rules, outboxRepo: outboxRepo, logger: logger}
}

type ruleItem struct {
	ID          string `json:"id,omitempty"`
	DayOfWeek   int    `json:"day_of_week"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	IsAvailable bool   `json:"is_available"`
}

func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.URL.Query().Get("mentor_id"))
	if mentorID == "" {
		mentorID = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}
	if mentorID == "" {
		http.Error(w, "mentor_id required", http.StatusBadRequest)
		return
	}

	rules, err := h.rules.ListRules(r.Context(), mentorID)
	if err != nil {
		http.Error(w, "failed to list availability", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, rulesToItems(rules))
}

type replaceDayRequest struct {
	DayOfWeek int        `json:"day_of_week"`
	Windows   []ruleItem `json:"windows"`
}

// ReplaceDay swaps one weekday's windows. Windows with start >= end are
// rejected here at the owning edge; the resolver downstream also tolerates
// bad rows, but there is no reason to store them.
func (h *AvailabilityHandler) ReplaceDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if mentorID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req replaceDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		http.Error(w, "day_of_week must be 0-6", http.StatusBadRequest)
		return
	}

	windows := make([]model.AvailabilityRule, 0, len(req.Windows))
	for _, item := range req.Windows {
		start, err := parseClock(item.StartTime)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		end, err := parseClock(item.EndTime)
		if err != nil {
			http.Error(w, "invalid end_time", http.StatusBadRequest)
			return
		}
		if start >= end {
			http.Error(w, "start_time must be before end_time", http.StatusBadRequest)
			return
		}
		windows = append(windows, model.AvailabilityRule{
			MentorID:    mentorID,
			DayOfWeek:   req.DayOfWeek,
			StartMinute: start,
			EndMinute:   end,
			IsAvailable: item.IsAvailable,
		})
	}

	ctx := r.Context()
	tx, err := h.rules.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.rules.ReplaceDay(ctx, tx, mentorID, req.DayOfWeek, windows); err != nil {
		http.Error(w, "failed to update availability", http.StatusInternalServerError)
		return
	}

	rules, err := h.rules.ListRulesTx(ctx, tx, mentorID)
	if err != nil {
		http.Error(w, "failed to load availability", http.StatusInternalServerError)
		return
	}
	if err := h.emitChanged(ctx, tx, mentorID, rules); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rulesToItems(rules))
}

type copyDayRequest struct {
	SourceDay int `json:"source_day"`
}

// CopyDay replicates one weekday's windows across the whole week.
func (h *AvailabilityHandler) CopyDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if mentorID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req copyDayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.SourceDay < 0 || req.SourceDay > 6 {
		http.Error(w, "source_day must be 0-6", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.rules.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rules, err := h.rules.CopyDayToAll(ctx, tx, mentorID, req.SourceDay)
	if err != nil {
		http.Error(w, "failed to copy availability", http.StatusInternalServerError)
		return
	}
	if err := h.emitChanged(ctx, tx, mentorID, rules); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rulesToItems(rules))
}

func (h *AvailabilityHandler) emitChanged(ctx context.Context, tx pgx.Tx, mentorID string, rules []model.AvailabilityRule) error {
	timeZone := "UTC"
	if mentor, err := h.mentors.Get(ctx, mentorID); err == nil && mentor.TimeZone != "" {
		timeZone = mentor.TimeZone
	}

	payload, err := json.Marshal(map[string]any{
		"mentor_id": mentorID,
		"time_zone": timeZone,
		"rules":     rulesToItems(rules),
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "mentor",
		AggregateID:   mentorID,
		EventType:     "mentor.availability.changed.v1",
		Payload:       payload,
	})
}

func rulesToItems(rules []model.AvailabilityRule) []ruleItem {
	items := make([]ruleItem, 0, len(rules))
	for _, rule := range rules {
		items = append(items, ruleItem{
			ID:          rule.ID,
			DayOfWeek:   rule.DayOfWeek,
			StartTime:   formatClock(rule.StartMinute),
			EndTime:     formatClock(rule.EndMinute),
			IsAvailable: rule.IsAvailable,
		})
	}
	return items
}
