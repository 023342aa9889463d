package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mentorhub/libs/config"
	"mentorhub/libs/db"
	"mentorhub/libs/httpx"
	"mentorhub/libs/kafkax"
	otelx "mentorhub/libs/otel"
	"mentorhub/libs/runtime"
	"mentorhub/services/booking-service/internal/availability"
	"mentorhub/services/booking-service/internal/consumer"
	"mentorhub/services/booking-service/internal/handlers"
	"mentorhub/services/booking-service/internal/inbox"
	"mentorhub/services/booking-service/internal/outbox"
	"mentorhub/services/booking-service/internal/payments"
	"mentorhub/services/booking-service/internal/rules"
	"mentorhub/services/booking-service/internal/storage"
)

// rulesSource prefers the local projection and falls back to a live mentor
// service read for mentors the projection has not seen yet.
type rulesSource struct {
	local *storage.RulesRepository
	live  rules.Provider
}

func (s *rulesSource) ListForMentor(ctx context.Context, mentorID string) ([]availability.Rule, string, error) {
	localRules, timeZone, err := s.local.ListForMentor(ctx, mentorID)
	if err == nil && len(localRules) > 0 {
		return localRules, timeZone, nil
	}
	if s.live != nil {
		if liveRules, liveTZ, liveErr := s.live.GetRules(ctx, mentorID); liveErr == nil {
			return liveRules, liveTZ, nil
		}
	}
	return localRules, timeZone, err
}

func parseReminderOffsets(raw string, logger *slog.Logger) []time.Duration {
	var offsets []time.Duration
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mins, err := strconv.Atoi(part)
		if err != nil || mins <= 0 {
			logger.Warn("invalid reminder offset", "value", part)
			continue
		}
		offsets = append(offsets, time.Duration(mins)*time.Minute)
	}
	if len(offsets) == 0 {
		offsets = []time.Duration{24 * time.Hour}
	}
	return offsets
}

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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

	repo := storage.NewBookingRepository(pool)
	rulesRepo := storage.NewRulesRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	liveRules, err := rules.NewProvider(config.String("MENTOR_GRPC_ADDR", ""))
	if err != nil {
		logger.Error("mentor rules provider init failed; using projection only", "err", err)
		liveRules = nil
	}

	var paymentsProvider payments.Provider = payments.NewNoop()
	if key := config.String("STRIPE_SECRET_KEY", ""); key != "" {
		paymentsProvider = payments.NewStripe(key)
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	projection := consumer.NewAvailabilityProjection(rulesRepo, logger)
	if topic := config.String("KAFKA_CONSUME_TOPIC", "mentor.availability.changed.v1"); strings.TrimSpace(topic) != "" {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   topic,
		}, projection.Handle)
		go eventConsumer.Run(ctx)
	}

	offsets := parseReminderOffsets(config.String("REMINDER_OFFSETS_MINUTES", "1440,60"), logger)
	bookingHandler := handlers.NewBookingHandler(
		repo,
		&rulesSource{local: rulesRepo, live: liveRules},
		outboxRepo,
		paymentsProvider,
		logger,
		offsets,
	)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/appointments", bookingHandler.Create)
	mux.HandleFunc("/api/v1/appointments/list", bookingHandler.List)
	mux.HandleFunc("/api/v1/appointments/get", bookingHandler.Get)
	mux.HandleFunc("/api/v1/appointments/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/appointments/reschedule", bookingHandler.Reschedule)
	mux.HandleFunc("/api/v1/appointments/status", bookingHandler.UpdateStatus)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
