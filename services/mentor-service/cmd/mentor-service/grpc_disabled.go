//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"mentorhub/services/mentor-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *storage.Repository, _ *storage.AvailabilityRepository) error {
	return nil
}
