package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Flex     FlexConfig
	Polygon  PolygonConfig
	Sync     SyncConfig
	Secrets  SecretsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers      []string
	SyncTopic    string
	ResultsTopic string
	GroupID      string
}

// RedisConfig holds Redis configuration for the price cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PriceTTL time.Duration
}

// FlexConfig holds the broker statement service configuration
type FlexConfig struct {
	BaseURL      string
	Token        string
	QueryID      string
	PollInterval time.Duration
	PollAttempts int
}

// PolygonConfig holds the market data API configuration
type PolygonConfig struct {
	APIKey string
}

// SyncConfig holds sync orchestration configuration
type SyncConfig struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// SecretsConfig holds the credential store key
type SecretsConfig struct {
	EncryptionKey string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portfolioledger"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:      []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			SyncTopic:    getEnv("KAFKA_SYNC_TOPIC", "sync-requests"),
			ResultsTopic: getEnv("KAFKA_RESULTS_TOPIC", "sync-results"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "portfolio-ledger"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PriceTTL: getEnvDuration("REDIS_PRICE_TTL", 5*time.Minute),
		},
		Flex: FlexConfig{
			BaseURL:      getEnv("FLEX_BASE_URL", "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService"),
			Token:        getEnv("FLEX_TOKEN", ""),
			QueryID:      getEnv("FLEX_QUERY_ID", ""),
			PollInterval: getEnvDuration("FLEX_POLL_INTERVAL", 10*time.Second),
			PollAttempts: getEnvInt("FLEX_POLL_ATTEMPTS", 30),
		},
		Polygon: PolygonConfig{
			APIKey: getEnv("POLYGON_API_KEY", ""),
		},
		Sync: SyncConfig{
			Timeout:        getEnvDuration("SYNC_TIMEOUT", 15*time.Minute),
			MaxConcurrency: getEnvInt("SYNC_MAX_CONCURRENCY", 4),
		},
		Secrets: SecretsConfig{
			EncryptionKey: getEnv("SECRETS_ENCRYPTION_KEY", ""),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
