package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"mentorhub/services/messaging-service/internal/storage"
	"mentorhub/services/messaging-service/internal/unread"
)

// AccountPurge drops a deleted user's conversations when auth publishes
// auth.user.deleted.v1.
type AccountPurge struct {
	repo    *storage.MessageRepository
	counter *unread.Counter
	logger  *slog.Logger
}

func NewAccountPurge(repo *storage.MessageRepository, counter *unread.Counter, logger *slog.Logger) *AccountPurge {
	return &AccountPurge{repo: repo, counter: counter, logger: logger}
}

func (p *AccountPurge) Handle(ctx context.Context, msg kafka.Message) error {
	var evt struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode user deleted event: %w", err)
	}
	if evt.UserID == "" {
		return fmt.Errorf("user deleted event missing user_id")
	}

	if err := p.repo.PurgeForUser(ctx, evt.UserID); err != nil {
		return err
	}
	p.counter.Clear(ctx, evt.UserID)
	p.logger.Info("purged conversations for deleted user", "user_id", evt.UserID)
	return nil
}
