package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mentorhub/libs/config"
	"mentorhub/libs/db"
	"mentorhub/libs/httpx"
	"mentorhub/libs/kafkax"
	otelx "mentorhub/libs/otel"
	"mentorhub/libs/runtime"
	"mentorhub/services/notification-service/internal/consumer"
	"mentorhub/services/notification-service/internal/email"
	"mentorhub/services/notification-service/internal/handlers"
	"mentorhub/services/notification-service/internal/inbox"
	"mentorhub/services/notification-service/internal/outbox"
	"mentorhub/services/notification-service/internal/sms"
	"mentorhub/services/notification-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8085")
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

	inboxRepo := inbox.NewRepository(pool)
	notificationsRepo := storage.NewRepository(pool)
	contactsRepo := storage.NewContactsRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	smtpHost := config.String("SMTP_HOST", "mailpit")
	smtpPort := config.String("SMTP_PORT", "1025")
	smtpFrom := config.String("SMTP_FROM", "no-reply@mentorhub.local")
	emailSender := email.NewSMTPSender(smtpHost, smtpPort, smtpFrom)

	smsProvider := strings.ToLower(config.String("SMS_PROVIDER", "noop"))
	smsWebhookURL := config.String("SMS_WEBHOOK_URL", "")
	smsWebhookToken := config.String("SMS_WEBHOOK_TOKEN", "")
	var smsSender sms.Sender
	switch smsProvider {
	case "noop":
		smsSender = sms.NewNoopSender()
	default:
		smsSender = sms.NewWebhookSender(smsWebhookURL, smsWebhookToken)
	}

	events := consumer.NewEvents(
		pool,
		notificationsRepo,
		contactsRepo,
		outboxRepo,
		emailSender,
		smsSender,
		config.String("REVIEWER_EMAIL", ""),
		config.String("REVIEW_BASE_URL", "http://localhost:8082/api/v1/mentors/applications/review"),
		logger,
	)

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	topics := map[string]consumer.Handler{
		"booking.session.created.v1":      events.HandleSessionEvent,
		"booking.session.rescheduled.v1":  events.HandleSessionEvent,
		"booking.session.cancelled.v1":    events.HandleSessionEvent,
		"booking.session.confirmed.v1":    events.HandleSessionEvent,
		"booking.session.completed.v1":    events.HandleSessionEvent,
		"scheduler.reminder.due.v1":       events.HandleReminderDue,
		"mentor.application.submitted.v1": events.HandleApplicationSubmitted,
		"auth.user.created.v1":            events.HandleUserCreated,
		"auth.user.deleted.v1":            events.HandleUserDeleted,
	}
	for topic, handler := range topics {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: groupID,
			Topic:   topic,
		}, handler)
		go eventConsumer.Run(ctx)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	notificationsHandler := handlers.NewNotificationsHandler(notificationsRepo, logger)
	mux.HandleFunc("/api/v1/notifications", notificationsHandler.List)
	mux.HandleFunc("/api/v1/notifications/unread", notificationsHandler.Unread)
	mux.HandleFunc("/api/v1/notifications/read", notificationsHandler.MarkRead)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "notification")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
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
