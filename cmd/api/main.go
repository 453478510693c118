package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/clubhub/internal/api"
	"example.com/clubhub/internal/auth"
	"example.com/clubhub/internal/config"
	"example.com/clubhub/internal/domain"
	"example.com/clubhub/internal/email"
	"example.com/clubhub/internal/notify"
	"example.com/clubhub/internal/outbox"
	persistence "example.com/clubhub/internal/persistence/postgres"
	"example.com/clubhub/internal/realtime"
	httptransport "example.com/clubhub/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	activities := persistence.NewActivityRepository(pool)
	registrations := persistence.NewRegistrationRepository(pool)
	notifications := persistence.NewNotificationRepository(pool)
	directory := persistence.NewClubDirectory(pool)

	hub := realtime.NewHub()
	defer hub.Close()

	var emailQueue notify.EmailQueue = email.NopQueue{}
	if cfg.AMQPURL != "" {
		publisher, err := email.NewQueuePublisher(cfg.AMQPURL, cfg.EmailQueue)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer publisher.Close()
		emailQueue = publisher
	}

	notifier := notify.NewDispatcher(notifications, hub, emailQueue, directory, cfg.BroadcastWorkers)

	producer := outbox.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	outboxDispatcher := outbox.NewDispatcher(pool, producer, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go outboxDispatcher.Start(ctx)

	service := domain.NewService(activities, registrations, directory, notifier)

	handler := api.NewHandler(service, notifications, hub)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Simple CORS middleware for local dev
	cors := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "http://localhost:5173")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		func(r *http.Request) bool {
			// Preflight requests carry no bearer token.
			return r.Method == http.MethodOptions ||
				r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
		},
	)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:           cfg.HTTPAddress,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		// No write timeout: /v1/notifications/stream holds its response open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(cors(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("clubhub api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	outboxDispatcher.Wait()
}
