package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/Reservation-System/internal/config"
	"github.com/dmehra2102/Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
	reservationhttp "github.com/dmehra2102/Reservation-System/internal/reservation/infrastructure/http"
	reservationpg "github.com/dmehra2102/Reservation-System/internal/reservation/infrastructure/postgres"
	reservationredis "github.com/dmehra2102/Reservation-System/internal/reservation/infrastructure/redis"
	"github.com/dmehra2102/Reservation-System/pkg/idempotency"
	"github.com/dmehra2102/Reservation-System/pkg/jobqueue"
	"github.com/dmehra2102/Reservation-System/pkg/logging"
	"github.com/dmehra2102/Reservation-System/pkg/outbox"
	"github.com/dmehra2102/Reservation-System/pkg/shutdown"
	"github.com/dmehra2102/Reservation-System/pkg/tracing"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "reservation-service", cfg.OtelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Redis client not connected to the server", "addr", cfg.RedisAddr, "err", err)
	} else {
		log.Info("Redis client connected to the server", "addr", cfg.RedisAddr)
	}
	store := reservationredis.NewCounterStore(log, rdb)

	// Job queue
	var transport jobqueue.Transport
	switch cfg.QueueTransport {
	case config.TransportKafka:
		idem := idempotency.NewStore(rdb, cfg.QueueGroup, 24*time.Hour)
		transport = jobqueue.NewKafkaTransport(log, cfg.KafkaBrokers, cfg.QueueTopic, cfg.QueueGroup, idem)
	default:
		transport = jobqueue.NewMemoryTransport()
	}
	queue := jobqueue.New(log, transport)
	queue.Start(ctx)
	log.Info("job queue started", "transport", cfg.QueueTransport)

	// Reservation ledger
	var recorder application.ReservationRecorder = application.NoopRecorder{}
	if cfg.PGURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		repo := reservationpg.NewRepository(log, pool)
		if err := repo.Migrate(ctx); err != nil {
			log.Error("pg migrate failed", "err", err)
			os.Exit(1)
		}
		recorder = repo

		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.KafkaBrokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		}
		defer writer.Close()
		dispatch := outbox.NewDispatcher(log, writer, cfg.OutboxTopic)
		relay := outbox.NewRelay(log, reservationpg.NewOutboxStore(log, pool), dispatch, "reservation-service-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	}

	seats := application.NewSeatService(log, store, queue, recorder, cfg.InitialSeats)
	if err := seats.Seed(ctx); err != nil {
		log.Error("seat seeding failed", "err", err)
	}
	stock := application.NewStockService(log, store, domain.DefaultCatalog(), recorder)
	notifications := application.NewNotificationService(log, queue, cfg.NotificationBlacklist)

	if err := seats.StartProcessing(); err != nil {
		log.Error("seat processor registration failed", "err", err)
		os.Exit(1)
	}
	if err := notifications.StartProcessing(); err != nil {
		log.Error("notification processor registration failed", "err", err)
		os.Exit(1)
	}

	handler := reservationhttp.NewHandler(log, seats, stock, notifications)
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	if err := queue.Close(); err != nil {
		log.Warn("job queue close failed", "err", err)
	}
	waitQueue(shutdownCtx, log, queue)
	log.Info("reservation-service shutdown complete")
}

func waitQueue(ctx context.Context, log *slog.Logger, q *jobqueue.Queue) {
	done := make(chan struct{})
	go func() {
		q.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn("job queue did not stop before shutdown timeout")
	}
}
