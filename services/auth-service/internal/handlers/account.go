package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"mentorhub/services/auth-service/internal/outbox"
	"mentorhub/services/auth-service/internal/storage"
)

type profileResponse struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	TimeZone  string `json:"time_zone"`
}

type updateProfileRequest struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	TimeZone  string `json:"time_zone"`
}

// Profile serves the personal-info screen: GET returns the caller's profile,
// PUT replaces it.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.bearerClaims(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		profile, err := h.profiles.Get(r.Context(), claims.Sub)
		if err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "profile not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to load profile", http.StatusInternalServerError)
			return
		}
		writeProfile(w, profile)
	case http.MethodPut:
		var req updateProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req.FullName = strings.TrimSpace(req.FullName)
		req.TimeZone = strings.TrimSpace(req.TimeZone)
		if req.FullName == "" {
			http.Error(w, "full_name required", http.StatusBadRequest)
			return
		}
		if req.TimeZone == "" {
			req.TimeZone = "UTC"
		}
		if _, err := time.LoadLocation(req.TimeZone); err != nil {
			http.Error(w, "invalid time_zone", http.StatusBadRequest)
			return
		}

		profile := storage.Profile{
			UserID:    claims.Sub,
			FullName:  req.FullName,
			AvatarURL: strings.TrimSpace(req.AvatarURL),
			TimeZone:  req.TimeZone,
		}
		if err := h.profiles.Update(r.Context(), profile); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "profile not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to update profile", http.StatusInternalServerError)
			return
		}
		writeProfile(w, profile)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// DeleteAccount removes the caller's auth records in one transaction and
// publishes auth.user.deleted.v1 so the other services purge their side.
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := h.bearerClaims(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByID(ctx, claims.Sub)
	if err != nil {
		if storage.IsNotFound(err) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "failed to lookup user", http.StatusInternalServerError)
		return
	}

	tx, err := h.pool.Begin(ctx)
	if err != nil {
		http.Error(w, "failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.refreshRepo.RevokeAllForUserTx(ctx, tx, user.ID); err != nil {
		http.Error(w, "failed to revoke sessions", http.StatusInternalServerError)
		return
	}
	if err := h.profiles.DeleteTx(ctx, tx, user.ID); err != nil {
		http.Error(w, "failed to delete profile", http.StatusInternalServerError)
		return
	}
	if err := h.users.DeleteTx(ctx, tx, user.ID); err != nil {
		http.Error(w, "failed to delete user", http.StatusInternalServerError)
		return
	}

	deletedPayload, err := json.Marshal(map[string]any{
		"user_id":    user.ID,
		"role":       user.Role,
		"deleted_at": time.Now().UTC(),
	})
	if err != nil {
		http.Error(w, "failed to marshal user event", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "user",
		AggregateID:   user.ID,
		EventType:     "auth.user.deleted.v1",
		Payload:       deletedPayload,
	}); err != nil {
		http.Error(w, "failed to enqueue user event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit transaction", http.StatusInternalServerError)
		return
	}

	if h.audit != nil {
		_ = h.audit.Record(ctx, "account.deleted", user.ID, map[string]any{"email": user.Email})
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeProfile(w http.ResponseWriter, profile storage.Profile) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(profileResponse{
		UserID:    profile.UserID,
		FullName:  profile.FullName,
		AvatarURL: profile.AvatarURL,
		TimeZone:  profile.TimeZone,
	})
}
