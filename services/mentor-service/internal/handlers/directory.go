package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mentorhub/services/mentor-service/internal/model"
	"mentorhub/services/mentor-service/internal/storage"
)

type DirectoryHandler struct {
	repo *storage.Repository
}

func NewDirectoryHandler(repo *storage.Repository) *DirectoryHandler {
	return &DirectoryHandler{repo: repo}
}

type mentorItem struct {
	MentorID        string  `json:"mentor_id"`
	DisplayName     string  `json:"display_name"`
	Title           string  `json:"title,omitempty"`
	Bio             string  `json:"bio,omitempty"`
	CategoryID      string  `json:"category_id,omitempty"`
	SubcategoryID   string  `json:"subcategory_id,omitempty"`
	HourlyRateCents int64   `json:"hourly_rate_cents"`
	Currency        string  `json:"currency"`
	TimeZone        string  `json:"time_zone"`
	Rating          float64 `json:"rating"`
	ReviewCount     int     `json:"review_count"`
	CreatedAt       string  `json:"created_at"`
}

func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	filter := storage.ListFilter{
		CategoryID:    strings.TrimSpace(r.URL.Query().Get("category_id")),
		SubcategoryID: strings.TrimSpace(r.URL.Query().Get("subcategory_id")),
		Search:        strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			filter.Limit = n
		}
	}

	mentors, err := h.repo.List(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to list mentors", http.StatusInternalServerError)
		return
	}

	items := make([]mentorItem, 0, len(mentors))
	for _, m := range mentors {
		items = append(items, mentorToItem(m))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *DirectoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	mentor, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "mentor not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load mentor", http.StatusInternalServerError)
		return
	}

	media, err := h.repo.ListMedia(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to load media", http.StatusInternalServerError)
		return
	}

	type mediaItem struct {
		ID       string `json:"id"`
		Kind     string `json:"kind"`
		URL      string `json:"url"`
		Position int    `json:"position"`
	}
	resp := struct {
		mentorItem
		Media []mediaItem `json:"media"`
	}{mentorItem: mentorToItem(mentor), Media: make([]mediaItem, 0, len(media))}
	for _, m := range media {
		resp.Media = append(resp.Media, mediaItem{ID: m.ID, Kind: m.Kind, URL: m.URL, Position: m.Position})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *DirectoryHandler) Categories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		http.Error(w, "failed to list categories", http.StatusInternalServerError)
		return
	}

	type subItem struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type catItem struct {
		ID            string    `json:"id"`
		Name          string    `json:"name"`
		Subcategories []subItem `json:"subcategories"`
	}
	items := make([]catItem, 0, len(categories))
	for _, c := range categories {
		item := catItem{ID: c.ID, Name: c.Name, Subcategories: make([]subItem, 0, len(c.Subcategories))}
		for _, s := range c.Subcategories {
			item.Subcategories = append(item.Subcategories, subItem{ID: s.ID, Name: s.Name})
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, items)
}

type updateProfileRequest struct {
	DisplayName     string `json:"display_name"`
	Title           string `json:"title"`
	Bio             string `json:"bio"`
	CategoryID      string `json:"category_id"`
	SubcategoryID   string `json:"subcategory_id"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
	TimeZone        string `json:"time_zone"`
}

func (h *DirectoryHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if mentorID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		http.Error(w, "display_name required", http.StatusBadRequest)
		return
	}
	if req.HourlyRateCents < 0 {
		http.Error(w, "invalid hourly_rate_cents", http.StatusBadRequest)
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

	err := h.repo.UpdateProfile(r.Context(), mentorID, model.Mentor{
		DisplayName:     req.DisplayName,
		Title:           strings.TrimSpace(req.Title),
		Bio:             strings.TrimSpace(req.Bio),
		CategoryID:      strings.TrimSpace(req.CategoryID),
		SubcategoryID:   strings.TrimSpace(req.SubcategoryID),
		HourlyRateCents: req.HourlyRateCents,
		TimeZone:        timeZone,
	})
	if err != nil {
		http.Error(w, "failed to update profile", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mentor_id": mentorID})
}

type addMediaRequest struct {
	Kind     string `json:"kind"`
	URL      string `json:"url"`
	Position int    `json:"position"`
}

func (h *DirectoryHandler) AddMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if mentorID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req addMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.Kind = strings.TrimSpace(req.Kind)
	req.URL = strings.TrimSpace(req.URL)
	if req.Kind != "image" && req.Kind != "video" {
		http.Error(w, "kind must be image or video", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url required", http.StatusBadRequest)
		return
	}

	id, err := h.repo.AddMedia(r.Context(), model.MediaItem{
		MentorID: mentorID,
		Kind:     req.Kind,
		URL:      req.URL,
		Position: req.Position,
	})
	if err != nil {
		http.Error(w, "failed to add media", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *DirectoryHandler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mentorID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if mentorID == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}

	if err := h.repo.DeleteMedia(r.Context(), mentorID, id); err != nil {
		http.Error(w, "failed to delete media", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func mentorToItem(m model.Mentor) mentorItem {
	return mentorItem{
		MentorID:        m.ID,
		DisplayName:     m.DisplayName,
		Title:           m.Title,
		Bio:             m.Bio,
		CategoryID:      m.CategoryID,
		SubcategoryID:   m.SubcategoryID,
		HourlyRateCents: m.HourlyRateCents,
		Currency:        m.Currency,
		TimeZone:        m.TimeZone,
		Rating:          m.Rating,
		ReviewCount:     m.ReviewCount,
		CreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339),
	}
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
