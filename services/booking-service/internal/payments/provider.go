package payments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

// Intent is the provider-agnostic view of a created payment.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

type Provider interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (Intent, error)
	CancelIntent(ctx context.Context, intentID string) error
}

// NoopProvider issues synthetic always-succeeding intents for local dev and
// tests where no payment processor is configured.
type NoopProvider struct{}

func NewNoop() *NoopProvider {
	return &NoopProvider{}
}

func (NoopProvider) CreateIntent(_ context.Context, _ int64, _ string, _ map[string]string) (Intent, error) {
	var b [12]byte
	_, _ = rand.Read(b[:])
	id := "pi_sim_" + hex.EncodeToString(b[:])
	return Intent{ID: id, ClientSecret: id + "_secret", Status: "succeeded"}, nil
}

func (NoopProvider) CancelIntent(_ context.Context, _ string) error {
	return nil
}
