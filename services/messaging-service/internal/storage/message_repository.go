package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mentorhub/libs/db"
)

type Conversation struct {
	ID            string
	MemberID      string
	MentorID      string
	CreatedAt     time.Time
	LastMessageAt time.Time
}

type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Body           string
	ReadAt         *time.Time
	CreatedAt      time.Time
}

// ConversationSummary is one row of the inbox screen: the conversation plus
// its most recent message.
type ConversationSummary struct {
	Conversation
	LastMessageBody   string
	LastMessageSender string
}

type MessageRepository struct {
	pool *db.Pool
}

func NewMessageRepository(pool *db.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

func (r *MessageRepository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// EnsureConversationTx returns the conversation id for the member/mentor pair,
// creating the row on first contact.
func (r *MessageRepository) EnsureConversationTx(ctx context.Context, tx pgx.Tx, memberID, mentorID string) (string, error) {
	var id string
	err := tx.QueryRow(ctx, `
		INSERT INTO conversations (id, member_id, mentor_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id, mentor_id) DO UPDATE SET member_id = EXCLUDED.member_id
		RETURNING id
	`, uuid.NewString(), memberID, mentorID).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *MessageRepository) CreateTx(ctx context.Context, tx pgx.Tx, msg Message) (Message, error) {
	msg.ID = uuid.NewString()
	err := tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, recipient_id, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.RecipientID, msg.Body).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $2
		WHERE id = $1
	`, msg.ConversationID, msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func (r *MessageRepository) GetConversation(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	err := r.pool.QueryRow(ctx, `
		SELECT id, member_id, mentor_id, created_at, last_message_at
		FROM conversations
		WHERE id = $1
	`, id).Scan(&c.ID, &c.MemberID, &c.MentorID, &c.CreatedAt, &c.LastMessageAt)
	if err != nil {
		return Conversation{}, err
	}
	return c, nil
}

// ListMessages pages backwards from `before` (zero means newest) and returns
// the page in chronological order.
func (r *MessageRepository) ListMessages(ctx context.Context, conversationID string, before time.Time, limit int) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if before.IsZero() {
		before = time.Now().Add(time.Minute)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, recipient_id, body, read_at, created_at
		FROM messages
		WHERE conversation_id = $1 AND created_at < $2
		ORDER BY created_at DESC
		LIMIT $3
	`, conversationID, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var page []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID, &m.Body, &m.ReadAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		page = append(page, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (r *MessageRepository) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.member_id, c.mentor_id, c.created_at, c.last_message_at,
		       COALESCE(m.body, ''), COALESCE(m.sender_id::text, '')
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT body, sender_id
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC
			LIMIT 1
		) m ON true
		WHERE c.member_id = $1 OR c.mentor_id = $1
		ORDER BY c.last_message_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.MemberID, &s.MentorID, &s.CreatedAt, &s.LastMessageAt, &s.LastMessageBody, &s.LastMessageSender); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// MarkRead flags every unread message addressed to the reader and returns how
// many were flagged.
func (r *MessageRepository) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE messages
		SET read_at = now()
		WHERE conversation_id = $1 AND recipient_id = $2 AND read_at IS NULL
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *MessageRepository) CountUnread(ctx context.Context, conversationID, recipientID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM messages
		WHERE conversation_id = $1 AND recipient_id = $2 AND read_at IS NULL
	`, conversationID, recipientID).Scan(&n)
	return n, err
}

func (r *MessageRepository) CountUnreadTotal(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM messages
		WHERE recipient_id = $1 AND read_at IS NULL
	`, recipientID).Scan(&n)
	return n, err
}

// PurgeForUser removes a deleted account's conversations and messages.
func (r *MessageRepository) PurgeForUser(ctx context.Context, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		DELETE FROM messages
		WHERE conversation_id IN (
			SELECT id FROM conversations WHERE member_id = $1 OR mentor_id = $1
		)
	`, userID)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		DELETE FROM conversations
		WHERE member_id = $1 OR mentor_id = $1
	`, userID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
