package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mentorhub/services/mentor-service/internal/model"
	"mentorhub/services/mentor-service/internal/outbox"
	"mentorhub/services/mentor-service/internal/storage"
)

// ApplicationHandler runs the become-a-mentor flow. A submitted application
// produces a review event carrying a one-time token; approving with that
// token promotes the applicant to an approved mentor profile.
type ApplicationHandler struct {
	apps       *storage.ApplicationRepository
	mentors    *storage.Repository
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewApplicationHandler(apps *storage.ApplicationRepository, mentors *storage.Repository, outboxRepo *outbox.Repository, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, mentors: mentors, outboxRepo: outboxRepo, logger: logger}
}

type applyRequest struct {
	DisplayName string `json:"display_name"`
	Title       string `json:"title"`
	Bio         string `json:"bio"`
	CategoryID  string `json:"category_id"`
	TimeZone    string `json:"time_zone"`
}

func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		http.Error(w, "display_name required", http.StatusBadRequest)
		return
	}
	timeZone := strings.TrimSpace(req.TimeZone)
	if timeZone == "" {
		timeZone = "UTC"
	}
	if _, err := time.LoadLocation(timeZone); err != nil {
		http.Error(w, "invalid time_zone", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.apps.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, token, err := h.apps.Create(ctx, tx, model.Application{
		UserID:      userID,
		DisplayName: req.DisplayName,
		Title:       strings.TrimSpace(req.Title),
		Bio:         strings.TrimSpace(req.Bio),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		TimeZone:    timeZone,
	})
	if err != nil {
		http.Error(w, "failed to create application", http.StatusInternalServerError)
		return
	}

	// The raw token rides the event to the notification service, which mails
	// the review link. It is not returned to the applicant.
	payload, err := json.Marshal(map[string]any{
		"application_id": id,
		"user_id":        userID,
		"display_name":   req.DisplayName,
		"approval_token": token,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "mentor_application",
		AggregateID:   id,
		EventType:     "mentor.application.submitted.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"application_id": id, "status": "pending"})
}

type reviewRequest struct {
	Token   string `json:"token"`
	Approve bool   `json:"approve"`
}

// Review consumes the one-time token from the review email. Approval
// creates the mentor row and promotes the account's role downstream via the
// approved event.
func (h *ApplicationHandler) Review(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		http.Error(w, "token required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.apps.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	app, err := h.apps.GetPendingByToken(ctx, tx, req.Token)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "invalid or already used token", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load application", http.StatusInternalServerError)
		return
	}

	status := "rejected"
	if req.Approve {
		status = "approved"
	}
	if _, err := h.apps.MarkReviewed(ctx, tx, app.ID, status); err != nil {
		http.Error(w, "failed to update application", http.StatusInternalServerError)
		return
	}

	mentorID := ""
	if req.Approve {
		mentorID, err = h.mentors.CreateApproved(ctx, tx, app)
		if err != nil {
			http.Error(w, "failed to create mentor profile", http.StatusInternalServerError)
			return
		}
	}

	payload, err := json.Marshal(map[string]any{
		"application_id": app.ID,
		"user_id":        app.UserID,
		"mentor_id":      mentorID,
		"status":         status,
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	eventType := "mentor.application.rejected.v1"
	if req.Approve {
		eventType = "mentor.application.approved.v1"
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "mentor_application",
		AggregateID:   app.ID,
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
	writeJSON(w, http.StatusOK, map[string]string{"application_id": app.ID, "status": status})
}

func (h *ApplicationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(r.Header.Get("X-Role")) != "admin" {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	apps, err := h.apps.ListPending(r.Context(), 50)
	if err != nil {
		http.Error(w, "failed to list applications", http.StatusInternalServerError)
		return
	}

	type item struct {
		ApplicationID string `json:"application_id"`
		UserID        string `json:"user_id"`
		DisplayName   string `json:"display_name"`
		Title         string `json:"title,omitempty"`
		CreatedAt     string `json:"created_at"`
	}
	items := make([]item, 0, len(apps))
	for _, app := range apps {
		items = append(items, item{
			ApplicationID: app.ID,
			UserID:        app.UserID,
			DisplayName:   app.DisplayName,
			Title:         app.Title,
			CreatedAt:     app.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, items)
}
