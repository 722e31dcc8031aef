// Package config loads the API configuration from the environment.
// A .env file in the working directory is picked up by godotenv/autoload in main.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full runtime configuration of the API server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Identity  IdentityConfig
	Storage   StorageConfig
	Kafka     KafkaConfig
	Consul    ConsulConfig
	Telemetry TelemetryConfig

	// PolicyFile optionally points at a YAML route policy overriding the built-in table.
	PolicyFile string
	// AdminUIDs is the manually provisioned list of subjects elevated to the admin role.
	AdminUIDs []string
	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig points at the Postgres database backing the document store.
// An empty DSN selects the in-memory store.
type DatabaseConfig struct {
	DSN string
}

// RedisConfig configures the optional response cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// IdentityConfig configures token verification and the hosted user directory.
type IdentityConfig struct {
	URL          string
	ServiceKey   string
	JWTSecret    string
	PublicKeyPEM string
	Issuer       string
	Audience     string
	Leeway       time.Duration
}

// StorageConfig configures S3-compatible object storage. Empty endpoint disables it.
type StorageConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// KafkaConfig configures moderation event publishing. Empty brokers disables it.
type KafkaConfig struct {
	Brokers         string
	ModerationTopic string
}

// ConsulConfig configures optional service registration.
type ConsulConfig struct {
	Addr  string
	Token string
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Endpoint string
	Insecure bool
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         GetEnvOrDefault("API_HOST", "localhost"),
			Port:         GetEnvInt("PORT", 8080),
			ReadTimeout:  GetEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: GetEnvDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  GetEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			DSN: GetEnvOrDefault("DB_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     GetEnvOrDefault("REDIS_ADDR", ""),
			Password: GetEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       GetEnvInt("REDIS_DB", 0),
		},
		Identity: IdentityConfig{
			URL:          GetEnvOrDefault("IDENTITY_URL", ""),
			ServiceKey:   GetEnvOrDefault("IDENTITY_SERVICE_KEY", ""),
			JWTSecret:    GetEnvOrDefault("IDENTITY_JWT_SECRET", ""),
			PublicKeyPEM: GetEnvOrDefault("IDENTITY_JWT_PUBLIC_KEY", ""),
			Issuer:       GetEnvOrDefault("IDENTITY_JWT_ISSUER", ""),
			Audience:     GetEnvOrDefault("IDENTITY_JWT_AUDIENCE", ""),
			Leeway:       GetEnvDuration("IDENTITY_JWT_LEEWAY", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:       GetEnvOrDefault("S3_ENDPOINT", ""),
			PublicEndpoint: GetEnvOrDefault("S3_PUBLIC_ENDPOINT", ""),
			AccessKey:      GetEnvOrDefault("S3_ACCESS_KEY", ""),
			SecretKey:      GetEnvOrDefault("S3_SECRET_KEY", ""),
			Bucket:         GetEnvOrDefault("S3_BUCKET_NAME", "mindsage"),
			UseSSL:         GetEnvBool("S3_USE_SSL", false),
		},
		Kafka: KafkaConfig{
			Brokers:         GetEnvOrDefault("KAFKA_BROKERS", ""),
			ModerationTopic: GetEnvOrDefault("KAFKA_TOPIC_MODERATION", "community-moderation"),
		},
		Consul: ConsulConfig{
			Addr:  GetEnvOrDefault("CONSUL_HTTP_ADDR", ""),
			Token: GetEnvOrDefault("CONSUL_HTTP_TOKEN", ""),
		},
		Telemetry: TelemetryConfig{
			Endpoint: GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure: GetEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
		PolicyFile:  GetEnvOrDefault("POLICY_FILE", ""),
		AdminUIDs:   GetEnvList("ADMIN_UIDS"),
		CORSOrigins: GetEnvList("CORS_ORIGINS"),
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Server.Port)
	}
	if c.Identity.JWTSecret == "" && c.Identity.PublicKeyPEM == "" {
		return errors.New("one of IDENTITY_JWT_SECRET or IDENTITY_JWT_PUBLIC_KEY is required")
	}
	if c.Identity.ServiceKey != "" && c.Identity.URL == "" {
		return errors.New("IDENTITY_URL is required when IDENTITY_SERVICE_KEY is set")
	}
	return nil
}
