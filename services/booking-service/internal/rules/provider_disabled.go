//go:build !protogen

package rules

import (
	"context"

	"mentorhub/services/booking-service/internal/availability"
)

// Provider is the live-read path for mentor availability, used when the
// local projection has no data yet (e.g. a mentor created before this
// service's consumer group existed).
type Provider interface {
	GetRules(ctx context.Context, mentorID string) ([]availability.Rule, string, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
