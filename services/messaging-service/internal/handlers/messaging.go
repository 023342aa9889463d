package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mentorhub/services/messaging-service/internal/outbox"
	"mentorhub/services/messaging-service/internal/storage"
	"mentorhub/services/messaging-service/internal/unread"
)

const maxMessageBytes = 4096

type MessagingHandler struct {
	repo       *storage.MessageRepository
	counter    *unread.Counter
	outboxRepo *outbox.Repository
	logger     *slog.Logger
}

func NewMessagingHandler(repo *storage.MessageRepository, counter *unread.Counter, outboxRepo *outbox.Repository, logger *slog.Logger) *MessagingHandler {
	return &MessagingHandler{repo: repo, counter: counter, outboxRepo: outboxRepo, logger: logger}
}

type sendRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

type messageItem struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	Body           string `json:"body"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"created_at"`
}

type conversationItem struct {
	ID                string `json:"id"`
	MemberID          string `json:"member_id"`
	MentorID          string `json:"mentor_id"`
	LastMessageBody   string `json:"last_message_body,omitempty"`
	LastMessageSender string `json:"last_message_sender,omitempty"`
	LastMessageAt     string `json:"last_message_at"`
	Unread            int64  `json:"unread"`
}

func (h *MessagingHandler) Send(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	senderID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if senderID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.RecipientID = strings.TrimSpace(req.RecipientID)
	req.Body = strings.TrimSpace(req.Body)
	if req.RecipientID == "" || req.Body == "" {
		http.Error(w, "recipient_id and body required", http.StatusBadRequest)
		return
	}
	if req.RecipientID == senderID {
		http.Error(w, "cannot message yourself", http.StatusBadRequest)
		return
	}
	if len(req.Body) > maxMessageBytes {
		http.Error(w, "message too long", http.StatusBadRequest)
		return
	}

	memberID, mentorID := conversationParties(r.Header.Get("X-Role"), senderID, req.RecipientID)

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		http.Error(w, "failed to start transaction", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	conversationID, err := h.repo.EnsureConversationTx(ctx, tx, memberID, mentorID)
	if err != nil {
		http.Error(w, "failed to resolve conversation", http.StatusInternalServerError)
		return
	}

	msg, err := h.repo.CreateTx(ctx, tx, storage.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		RecipientID:    req.RecipientID,
		Body:           req.Body,
	})
	if err != nil {
		http.Error(w, "failed to store message", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"message_id":      msg.ID,
		"conversation_id": conversationID,
		"sender_id":       senderID,
		"recipient_id":    req.RecipientID,
		"sent_at":         msg.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "message",
		AggregateID:   conversationID,
		EventType:     "message.sent.v1",
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}

	h.counter.Incr(ctx, req.RecipientID, conversationID)

	writeJSON(w, http.StatusCreated, toMessageItem(msg))
}

func (h *MessagingHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	summaries, err := h.repo.ListConversations(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	items := make([]conversationItem, 0, len(summaries))
	for _, s := range summaries {
		n, err := h.counter.Conversation(r.Context(), userID, s.ID)
		if err != nil {
			h.logger.Warn("failed to read unread count", "err", err, "conversation_id", s.ID)
		}
		items = append(items, conversationItem{
			ID:                s.ID,
			MemberID:          s.MemberID,
			MentorID:          s.MentorID,
			LastMessageBody:   s.LastMessageBody,
			LastMessageSender: s.LastMessageSender,
			LastMessageAt:     s.LastMessageAt.UTC().Format(time.RFC3339),
			Unread:            n,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

func (h *MessagingHandler) Messages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if conversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	conversation, err := h.repo.GetConversation(r.Context(), conversationID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}
	if conversation.MemberID != userID && conversation.MentorID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	var before time.Time
	if v := strings.TrimSpace(r.URL.Query().Get("before")); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "before must be RFC3339", http.StatusBadRequest)
			return
		}
		before = parsed
	}

	messages, err := h.repo.ListMessages(r.Context(), conversationID, before, limit)
	if err != nil {
		http.Error(w, "failed to list messages", http.StatusInternalServerError)
		return
	}

	items := make([]messageItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, toMessageItem(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"messages":        items,
	})
}

func (h *MessagingHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	var req struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if req.ConversationID == "" {
		http.Error(w, "conversation_id is required", http.StatusBadRequest)
		return
	}

	conversation, err := h.repo.GetConversation(r.Context(), req.ConversationID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}
	if conversation.MemberID != userID && conversation.MentorID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	marked, err := h.repo.MarkRead(r.Context(), req.ConversationID, userID)
	if err != nil {
		http.Error(w, "failed to mark read", http.StatusInternalServerError)
		return
	}
	h.counter.Reset(r.Context(), userID, req.ConversationID)

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": req.ConversationID,
		"marked":          marked,
	})
}

func (h *MessagingHandler) Unread(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	total, err := h.counter.Total(r.Context(), userID)
	if err != nil {
		http.Error(w, "failed to count unread messages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread": total})
}

// conversationParties maps a sender/recipient pair onto the conversation key.
// Conversations are keyed (member, mentor); when a mentor writes first, the
// recipient is the member.
func conversationParties(senderRole, senderID, recipientID string) (memberID, mentorID string) {
	if senderRole == "mentor" {
		return recipientID, senderID
	}
	return senderID, recipientID
}

func toMessageItem(m storage.Message) messageItem {
	return messageItem{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		RecipientID:    m.RecipientID,
		Body:           m.Body,
		Read:           m.ReadAt != nil,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
