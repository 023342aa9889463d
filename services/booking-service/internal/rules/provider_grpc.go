//go:build protogen

package rules

import (
	"context"
	"time"

	"mentorhub/libs/grpcx"
	mentorv1 "mentorhub/protos/gen/mentor/v1"
	"mentorhub/services/booking-service/internal/availability"
)

// Provider is the live-read path for mentor availability, used when the
// local projection has no data yet (e.g. a mentor created before this
// service's consumer group existed).
type Provider interface {
	GetRules(ctx context.Context, mentorID string) ([]availability.Rule, string, error)
}

type grpcProvider struct {
	client mentorv1.MentorServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: mentorv1.NewMentorServiceClient(conn)}, nil
}

func (p *grpcProvider) GetRules(ctx context.Context, mentorID string) ([]availability.Rule, string, error) {
	resp, err := p.client.GetAvailabilityRules(ctx, &mentorv1.AvailabilityRulesRequest{
		MentorId: mentorID,
	})
	if err != nil {
		return nil, "", err
	}

	timeZone := resp.GetTimeZone()
	if timeZone == "" {
		timeZone = "UTC"
	}

	var out []availability.Rule
	for _, r := range resp.GetRules() {
		start, err := availability.ParseClock(r.GetStartTime())
		if err != nil {
			continue
		}
		end, err := availability.ParseClock(r.GetEndTime())
		if err != nil {
			continue
		}
		out = append(out, availability.Rule{
			ID:          r.GetId(),
			MentorID:    mentorID,
			Weekday:     time.Weekday(r.GetDayOfWeek()),
			StartMinute: start,
			EndMinute:   end,
			Available:   r.GetIsAvailable(),
		})
	}
	return out, timeZone, nil
}
