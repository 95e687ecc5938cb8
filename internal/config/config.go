package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by the cache and events sections.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendKafka  = "kafka"
)

// Config holds all configuration for the application
type Config struct {
	// App configuration
	App AppConfig

	// API configuration
	API APIConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration
	Cache CacheConfig

	// Redis configuration
	Redis RedisConfig

	// Events configuration
	Events EventsConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name            string
	Slug            string
	Version         string
	Environment     string
	LogLevel        string
	HTTPPort        int
	HealthPath      string
	ShutdownTimeout time.Duration
}

// APIConfig holds request-surface configuration
type APIConfig struct {
	// DefaultPageSize sizes collection pages when the client sends none.
	DefaultPageSize int

	// MaxPageSize caps client-requested page sizes.
	MaxPageSize int

	// DefaultSort orders collection results. One of id, created_at,
	// updated_at.
	DefaultSort string

	// CommitStatusThreshold is the response status from which the
	// request transaction rolls back instead of committing.
	CommitStatusThreshold int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend string // memory or redis
	TTL     time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
}

// EventsConfig holds event bus configuration
type EventsConfig struct {
	Backend string // memory, nats or kafka
	NATS    NATSConfig
	Kafka   KafkaConfig
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL           string
	ClientID      string
	Stream        string
	ConsumerName  string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:            getEnv("APP_NAME", serviceName),
			Slug:            getEnv("APP_SLUG", "gantry"),
			Version:         getEnv("APP_VERSION", "dev"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			HTTPPort:        getEnvAsInt("HTTP_PORT", 8080),
			HealthPath:      getEnv("HEALTH_PATH", "/health"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		API: APIConfig{
			DefaultPageSize:       getEnvAsInt("API_DEFAULT_PAGE_SIZE", 20),
			MaxPageSize:           getEnvAsInt("API_MAX_PAGE_SIZE", 100),
			DefaultSort:           getEnv("API_DEFAULT_SORT", "created_at"),
			CommitStatusThreshold: getEnvAsInt("API_COMMIT_STATUS_THRESHOLD", 400),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "gantry"),
			Password:     getEnv("DB_PASSWORD", "gantry"),
			Database:     getEnv("DB_NAME", "gantry"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
		},
		Cache: CacheConfig{
			Backend: getEnv("CACHE_BACKEND", BackendMemory),
			TTL:     getEnvAsDuration("CACHE_TTL", time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
		},
		Events: EventsConfig{
			Backend: getEnv("EVENTS_BACKEND", BackendMemory),
			NATS: NATSConfig{
				URL:           getEnv("NATS_URL", "nats://localhost:4222"),
				ClientID:      fmt.Sprintf("%s-%s", serviceName, getEnv("HOSTNAME", "local")),
				Stream:        getEnv("NATS_STREAM", "CATALOG_EVENTS"),
				ConsumerName:  getEnv("NATS_CONSUMER_NAME", fmt.Sprintf("%s-durable", serviceName)),
				MaxReconnect:  getEnvAsInt("NATS_MAX_RECONNECT", 60),
				ReconnectWait: getEnvAsDuration("NATS_RECONNECT_WAIT", 2*time.Second),
			},
			Kafka: KafkaConfig{
				Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
				Topic:   getEnv("KAFKA_TOPIC", "catalog-events"),
				GroupID: getEnv("KAFKA_GROUP_ID", fmt.Sprintf("%s-group", serviceName)),
			},
		},
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	strValue := getEnv(key, "")
	if strValue == "" {
		return defaultValue
	}
	parts := strings.Split(strValue, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}

// DSN returns the database connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// Addr returns the host:port address of the Redis server.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
