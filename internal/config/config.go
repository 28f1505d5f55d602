package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis   RedisConfig
	Storage StorageConfig
	SMTP    SMTPConfig
	Workers WorkerConfig

	SlackWebhookURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type StorageConfig struct {
	Provider  string
	Bucket    string
	Region    string
	Endpoint  string
	KeyPrefix string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

type WorkerConfig struct {
	ProjectionEnabled   bool
	OCREnabled          bool
	NotificationEnabled bool
	LeaderLockTTL       time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "billflow"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		NodeID:            getenvInt64("NODE_ID", 1),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "billflow"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "billflow.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
			Channel:  getenv("REDIS_EVENT_CHANNEL", "billflow.events"),
		},
		Storage: StorageConfig{
			Provider:  strings.ToLower(getenv("STORAGE_PROVIDER", "memory")),
			Bucket:    strings.TrimSpace(getenv("STORAGE_BUCKET", "")),
			Region:    getenv("STORAGE_REGION", "us-east-1"),
			Endpoint:  strings.TrimSpace(getenv("STORAGE_ENDPOINT", "")),
			KeyPrefix: strings.Trim(getenv("STORAGE_KEY_PREFIX", "bills"), "/"),
		},
		SMTP: SMTPConfig{
			Host:       strings.TrimSpace(getenv("SMTP_HOST", "")),
			Port:       getenvInt("SMTP_PORT", 587),
			Username:   getenv("SMTP_USERNAME", ""),
			Password:   getenv("SMTP_PASSWORD", ""),
			From:       getenv("SMTP_FROM", "no-reply@billflow.local"),
			Recipients: parseList(getenv("NOTIFY_RECIPIENTS", "")),
		},
		SlackWebhookURL: strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
		Workers: WorkerConfig{
			ProjectionEnabled:   getenvBool("PROJECTION_WORKER_ENABLED", true),
			OCREnabled:          getenvBool("OCR_WORKER_ENABLED", false),
			NotificationEnabled: getenvBool("NOTIFICATION_WORKER_ENABLED", true),
			LeaderLockTTL:       time.Duration(getenvInt("PROJECTION_LEADER_TTL_SECONDS", 15)) * time.Second,
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
