package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	VerificationBackendDynamoDB = "dynamodb"
	VerificationBackendRedis    = "redis"
)

type Config struct {
	Server   ServerConfig
	DynamoDB DynamoDBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Reset    ResetConfig
	Mail     MailConfig
	Auth     AuthConfig
	Chat     ChatConfig
	Worker   WorkerConfig
	LogLevel string
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

// ResetConfig drives the password-reset workflow and its verification codes.
type ResetConfig struct {
	CodeExpiry          time.Duration
	RecordRetention     time.Duration
	SessionTTL          time.Duration
	LockTTL             time.Duration
	QueueKey            string
	VerificationBackend string
}

type MailConfig struct {
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	From     string
}

type AuthConfig struct {
	BcryptCost int
}

type ChatConfig struct {
	ListLimit int
}

type WorkerConfig struct {
	Enabled      bool
	PollInterval time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "NextAITable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),
		},
		Reset: ResetConfig{
			CodeExpiry:          getEnvAsDuration("RESET_CODE_EXPIRY", 10*time.Minute),
			RecordRetention:     getEnvAsDuration("RESET_RECORD_RETENTION", 24*time.Hour),
			SessionTTL:          getEnvAsDuration("RESET_SESSION_TTL", 30*time.Minute),
			LockTTL:             getEnvAsDuration("RESET_LOCK_TTL", 30*time.Second),
			QueueKey:            getEnv("RESET_QUEUE_KEY", "password_reset:requests"),
			VerificationBackend: strings.ToLower(getEnv("VERIFICATION_BACKEND", VerificationBackendDynamoDB)),
		},
		Mail: MailConfig{
			SMTPHost: getEnv("SMTP_HOST", ""),
			SMTPPort: getEnv("SMTP_PORT", "587"),
			SMTPUser: getEnv("SMTP_USER", ""),
			SMTPPass: getEnv("SMTP_PASS", ""),
			From:     getEnv("SMTP_FROM", "no-reply@nextai.local"),
		},
		Auth: AuthConfig{
			BcryptCost: getEnvAsInt("BCRYPT_COST", 10),
		},
		Chat: ChatConfig{
			ListLimit: getEnvAsInt("CHAT_LIST_LIMIT", 20),
		},
		Worker: WorkerConfig{
			Enabled:      getEnvAsBool("RESET_WORKER_ENABLED", true),
			PollInterval: getEnvAsDuration("RESET_WORKER_POLL_INTERVAL", 2*time.Second),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	switch cfg.Reset.VerificationBackend {
	case VerificationBackendDynamoDB, VerificationBackendRedis:
	default:
		return nil, fmt.Errorf("VERIFICATION_BACKEND must be %q or %q", VerificationBackendDynamoDB, VerificationBackendRedis)
	}

	if cfg.Reset.CodeExpiry <= 0 {
		return nil, fmt.Errorf("RESET_CODE_EXPIRY must be positive")
	}

	if cfg.Chat.ListLimit <= 0 {
		return nil, fmt.Errorf("CHAT_LIST_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
