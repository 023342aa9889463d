package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mentorhub/libs/config"
	"mentorhub/libs/db"
	"mentorhub/libs/httpx"
	"mentorhub/libs/kafkax"
	otelx "mentorhub/libs/otel"
	"mentorhub/libs/runtime"
	"mentorhub/services/messaging-service/internal/consumer"
	"mentorhub/services/messaging-service/internal/handlers"
	"mentorhub/services/messaging-service/internal/inbox"
	"mentorhub/services/messaging-service/internal/outbox"
	"mentorhub/services/messaging-service/internal/storage"
	"mentorhub/services/messaging-service/internal/unread"
)

func main() {
	service := config.String("SERVICE_NAME", "messaging-service")
	port, err := config.Port("PORT", "8084")
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

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)

	repo := storage.NewMessageRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()
		logger.Info("unread counters enabled (redis)", "redis_addr", addr)
	} else {
		logger.Info("unread counters using database counts")
	}
	counter := unread.NewCounter(rdb, repo, logger)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	purge := consumer.NewAccountPurge(repo, counter, logger)
	if topic := config.String("KAFKA_CONSUME_TOPIC", "auth.user.deleted.v1"); strings.TrimSpace(topic) != "" {
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "messaging-service"),
			Topic:   topic,
		}, purge.Handle)
		go eventConsumer.Run(ctx)
	}

	messagingHandler := handlers.NewMessagingHandler(repo, counter, outboxRepo, logger)
	mux.HandleFunc("/api/v1/messages/send", messagingHandler.Send)
	mux.HandleFunc("/api/v1/messages/conversations", messagingHandler.Conversations)
	mux.HandleFunc("/api/v1/messages/list", messagingHandler.Messages)
	mux.HandleFunc("/api/v1/messages/read", messagingHandler.MarkRead)
	mux.HandleFunc("/api/v1/messages/unread", messagingHandler.Unread)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	handler = otelhttp.NewHandler(handler, "messaging")
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
