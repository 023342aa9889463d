package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"mentorhub/libs/db"
	"mentorhub/services/auth-service/internal/audit"
	"mentorhub/services/auth-service/internal/storage"
)

// RolePromotion grants the mentor role when a mentor application is approved.
type RolePromotion struct {
	pool   *db.Pool
	users  *storage.UserRepository
	audit  *audit.Repository
	logger *slog.Logger
}

func NewRolePromotion(pool *db.Pool, users *storage.UserRepository, auditRepo *audit.Repository, logger *slog.Logger) *RolePromotion {
	return &RolePromotion{pool: pool, users: users, audit: auditRepo, logger: logger}
}

type applicationApprovedEvent struct {
	ApplicationID string `json:"application_id"`
	UserID        string `json:"user_id"`
	MentorID      string `json:"mentor_id"`
	Status        string `json:"status"`
}

func (p *RolePromotion) Handle(ctx context.Context, msg kafka.Message) error {
	var evt applicationApprovedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode application event: %w", err)
	}
	if evt.UserID == "" {
		return fmt.Errorf("application event missing user_id")
	}
	if evt.Status != "approved" {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := p.users.UpdateRole(ctx, tx, evt.UserID, "mentor"); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if p.audit != nil {
		_ = p.audit.Record(ctx, "role.promoted", evt.UserID, map[string]any{
			"application_id": evt.ApplicationID,
			"mentor_id":      evt.MentorID,
			"role":           "mentor",
		})
	}
	p.logger.Info("promoted user to mentor", "user_id", evt.UserID, "application_id", evt.ApplicationID)
	return nil
}
