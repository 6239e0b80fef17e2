package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds messaging-service configuration loaded from environment.
type Config struct {
	Env          string
	HTTPAddr     string
	NodeID       string
	HistoryLimit int

	MongoURI string
	MongoDB  string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	ShutdownTimeout time.Duration
}

// Load parses environment variables into a Config struct. MONGO_URI and
// KAFKA_BROKERS are optional: without them the service runs on the in-memory
// store with node-local push only.
func Load() (Config, error) {
	cfg := Config{
		Env:          getEnv("APP_ENV", "dev"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		NodeID:       strings.TrimSpace(os.Getenv("NODE_ID")),
		HistoryLimit: parseIntWithDefault(strings.TrimSpace(os.Getenv("HISTORY_LIMIT")), 200),
		MongoURI:     strings.TrimSpace(os.Getenv("MONGO_URI")),
		MongoDB:      getEnv("MONGO_DB", "hireme_messaging"),
		KafkaBrokers: splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "messaging.events.v1"),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "messaging-push"),
	}
	if cfg.NodeID == "" {
		host, err := os.Hostname()
		if err != nil {
			return Config{}, fmt.Errorf("NODE_ID is unset and hostname lookup failed: %w", err)
		}
		cfg.NodeID = host
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 200
	}

	timeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout = timeout
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return dur, nil
}

func parseIntWithDefault(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v == 0 {
		return def
	}
	return v
}
