// Package config builds runtime configuration from environment variables
// so main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full worker configuration.
type Config struct {
	OpsAddr     string
	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	LogLevel    string
	LogFormat   string
}

// RedisConfig captures recency-cache connection settings. An empty URL
// means Redis is not configured and the in-memory cache is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures event-pipeline settings. Empty Brokers disables
// the queue hand-off.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// FromEnv builds a Config from environment variables, with development
// defaults for everything but the external stores.
func FromEnv() Config {
	return Config{
		OpsAddr:     getenv("BEHAVIORTRACE_OPS_ADDR", ":9090"),
		PostgresURL: os.Getenv("BEHAVIORTRACE_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("BEHAVIORTRACE_REDIS_URL"),
			PoolSize:     getenvInt("BEHAVIORTRACE_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("BEHAVIORTRACE_REDIS_MIN_IDLE", 2),
			DialTimeout:  getenvDuration("BEHAVIORTRACE_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("BEHAVIORTRACE_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("BEHAVIORTRACE_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("BEHAVIORTRACE_KAFKA_BROKERS")),
			Topic:   getenv("BEHAVIORTRACE_KAFKA_TOPIC", "behavioral-events"),
			GroupID: getenv("BEHAVIORTRACE_KAFKA_GROUP", "behaviortrace-worker"),
		},
		LogLevel:  getenv("BEHAVIORTRACE_LOG_LEVEL", "info"),
		LogFormat: getenv("BEHAVIORTRACE_LOG_FORMAT", "json"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
