// Package config collects runtime settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TransportMemory = "memory"
	TransportKafka  = "kafka"
)

type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        string

	RedisAddr    string
	InitialSeats int64

	QueueTransport string
	KafkaBrokers   []string
	QueueTopic     string
	QueueGroup     string

	// PGURL enables the reservation ledger and outbox relay when set.
	PGURL       string
	OutboxTopic string

	OtelEndpoint string

	NotificationBlacklist []string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int64) int64 {
	n, err := strconv.ParseInt(env(k, ""), 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envList(k, def string) []string {
	var out []string
	for _, part := range strings.Split(env(k, def), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() Config {
	transport := strings.ToLower(env("QUEUE_TRANSPORT", TransportMemory))
	if transport != TransportKafka {
		transport = TransportMemory
	}
	seats := envInt("INITIAL_SEATS", 50)
	if seats < 0 {
		seats = 0
	}
	return Config{
		HTTPAddr:              env("HTTP_ADDR", ":1245"),
		ShutdownTimeout:       time.Duration(envInt("SHUTDOWN_TIMEOUT", 10)) * time.Second,
		LogLevel:              env("LOG_LEVEL", "info"),
		RedisAddr:             env("REDIS_ADDR", "localhost:6379"),
		InitialSeats:          seats,
		QueueTransport:        transport,
		KafkaBrokers:          envList("KAFKA_ADDR", "localhost:9092"),
		QueueTopic:            env("QUEUE_TOPIC", "reservation.jobs"),
		QueueGroup:            env("QUEUE_GROUP", "reservation-service"),
		PGURL:                 env("PG_URL", ""),
		OutboxTopic:           env("OUTBOX_TOPIC", "reservation.events"),
		OtelEndpoint:          env("OTEL_ENDPOINT", ""),
		NotificationBlacklist: envList("NOTIFICATION_BLACKLIST", "4153518780,4153518781"),
	}
}
