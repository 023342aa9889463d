package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mentorhub/libs/config"
	"mentorhub/libs/db"
	"mentorhub/libs/httpx"
	"mentorhub/libs/kafkax"
	otelx "mentorhub/libs/otel"
	"mentorhub/libs/runtime"
	"mentorhub/services/mentor-service/internal/handlers"
	"mentorhub/services/mentor-service/internal/outbox"
	"mentorhub/services/mentor-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "mentor-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	mentors := storage.NewRepository(pool)
	rules := storage.NewAvailabilityRepository(pool)
	apps := storage.NewApplicationRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	if err := startGrpcServer(ctx, logger, mentors, rules); err != nil {
		logger.Error("grpc server init failed", "err", err)
	}

	directory := handlers.NewDirectoryHandler(mentors)
	availabilityHandler := handlers.NewAvailabilityHandler(mentors, rules, outboxRepo, logger)
	applications := handlers.NewApplicationHandler(apps, mentors, outboxRepo, logger)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/mentors", directory.List)
	mux.HandleFunc("/api/v1/public/mentors/get", directory.Get)
	mux.HandleFunc("/api/v1/public/categories", directory.Categories)
	mux.HandleFunc("/api/v1/mentors/profile", directory.UpdateProfile)
	mux.HandleFunc("/api/v1/mentors/media", directory.AddMedia)
	mux.HandleFunc("/api/v1/mentors/media/delete", directory.DeleteMedia)
	mux.HandleFunc("/api/v1/mentors/availability", availabilityHandler.Get)
	mux.HandleFunc("/api/v1/mentors/availability/day", availabilityHandler.ReplaceDay)
	mux.HandleFunc("/api/v1/mentors/availability/copy", availabilityHandler.CopyDay)
	mux.HandleFunc("/api/v1/mentors/apply", applications.Apply)
	mux.HandleFunc("/api/v1/mentors/applications/review", applications.Review)
	mux.HandleFunc("/api/v1/mentors/applications", applications.ListPending)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "mentor")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
