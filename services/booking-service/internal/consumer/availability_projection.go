package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"mentorhub/services/booking-service/internal/availability"
	"mentorhub/services/booking-service/internal/storage"
)

// AvailabilityProjection applies mentor.availability.changed.v1 snapshots to
// the local read model. Events carry the mentor's complete rule set, so each
// apply is a full replace.
type AvailabilityProjection struct {
	rules  *storage.RulesRepository
	logger *slog.Logger
}

func NewAvailabilityProjection(rules *storage.RulesRepository, logger *slog.Logger) *AvailabilityProjection {
	return &AvailabilityProjection{rules: rules, logger: logger}
}

type availabilityChangedEvent struct {
	MentorID string `json:"mentor_id"`
	TimeZone string `json:"time_zone"`
	Rules    []struct {
		DayOfWeek   int    `json:"day_of_week"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
		IsAvailable bool   `json:"is_available"`
	} `json:"rules"`
}

func (p *AvailabilityProjection) Handle(ctx context.Context, msg kafka.Message) error {
	var evt availabilityChangedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		return fmt.Errorf("decode availability event: %w", err)
	}
	if evt.MentorID == "" {
		return fmt.Errorf("availability event missing mentor_id")
	}
	if evt.TimeZone == "" {
		evt.TimeZone = "UTC"
	}

	rules := make([]availability.Rule, 0, len(evt.Rules))
	for _, r := range evt.Rules {
		start, err := availability.ParseClock(r.StartTime)
		if err != nil {
			p.logger.Warn("dropping rule with bad start time", "mentor_id", evt.MentorID, "start", r.StartTime)
			continue
		}
		end, err := availability.ParseClock(r.EndTime)
		if err != nil {
			p.logger.Warn("dropping rule with bad end time", "mentor_id", evt.MentorID, "end", r.EndTime)
			continue
		}
		rules = append(rules, availability.Rule{
			MentorID:    evt.MentorID,
			Weekday:     time.Weekday(r.DayOfWeek),
			StartMinute: start,
			EndMinute:   end,
			Available:   r.IsAvailable,
		})
	}

	tx, err := p.rules.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := p.rules.ReplaceForMentor(ctx, tx, evt.MentorID, evt.TimeZone, rules); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
