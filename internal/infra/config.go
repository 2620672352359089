package infra

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	LogLevel         string
	Port             string
	DatabaseURL      string
	DBMaxConns       int
	DBMinConns       int
	JWTSecret        string
	GeoIPDBPath      string
	DefaultLocale    string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	ReplicateAPIToken string
	ReplicateBaseURL  string
	DashScopeAPIKey   string
	DashScopeRegion   string
	QwenVLModel       string
	WanModel          string
	WanMaxAttempts    int

	StorageDriver   string
	StoragePath     string
	StorageBaseURL  string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3UseSSL        bool
	S3PublicBaseURL string

	AMQPURL      string
	AMQPExchange string

	WorkerInterval    time.Duration
	WorkerStaleAfter  time.Duration
	WorkerGiveUpAfter time.Duration
	WorkerBatchSize   int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("DEFAULT_LOCALE", "en")
	v.SetDefault("HTTP_READ_TIMEOUT_SECONDS", 15)
	v.SetDefault("HTTP_WRITE_TIMEOUT_SECONDS", 180)
	v.SetDefault("HTTP_IDLE_TIMEOUT_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("REPLICATE_BASE_URL", "https://api.replicate.com/v1")
	v.SetDefault("DASHSCOPE_REGION", "beijing")
	v.SetDefault("QWEN_VL_MODEL", "qwen-vl-max")
	v.SetDefault("WAN_MODEL", "wan2.5-i2v-preview")
	v.SetDefault("WAN_MAX_ATTEMPTS", 4)
	v.SetDefault("STORAGE_DRIVER", "file")
	v.SetDefault("STORAGE_PATH", "./data/objects")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("AMQP_EXCHANGE", "toonify.transforms")
	v.SetDefault("WORKER_INTERVAL_SECONDS", 30)
	v.SetDefault("WORKER_STALE_AFTER_SECONDS", 120)
	v.SetDefault("WORKER_GIVE_UP_AFTER_SECONDS", 1800)
	v.SetDefault("WORKER_BATCH_SIZE", 25)

	cfg := &Config{
		AppEnv:            v.GetString("APP_ENV"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		Port:              v.GetString("PORT"),
		DatabaseURL:       strings.TrimSpace(v.GetString("DATABASE_URL")),
		DBMaxConns:        v.GetInt("DB_MAX_CONNS"),
		DBMinConns:        v.GetInt("DB_MIN_CONNS"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		GeoIPDBPath:       v.GetString("GEOIP_DB_PATH"),
		DefaultLocale:     v.GetString("DEFAULT_LOCALE"),
		CORSOrigins:       splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:   time.Second * time.Duration(v.GetInt("HTTP_READ_TIMEOUT_SECONDS")),
		HTTPWriteTimeout:  time.Second * time.Duration(v.GetInt("HTTP_WRITE_TIMEOUT_SECONDS")),
		HTTPIdleTimeout:   time.Second * time.Duration(v.GetInt("HTTP_IDLE_TIMEOUT_SECONDS")),
		RateLimitPerMin:   v.GetInt("RATE_LIMIT_PER_MINUTE"),
		ReplicateAPIToken: v.GetString("REPLICATE_API_TOKEN"),
		ReplicateBaseURL:  v.GetString("REPLICATE_BASE_URL"),
		DashScopeAPIKey:   v.GetString("DASHSCOPE_API_KEY"),
		DashScopeRegion:   strings.ToLower(v.GetString("DASHSCOPE_REGION")),
		QwenVLModel:       v.GetString("QWEN_VL_MODEL"),
		WanModel:          v.GetString("WAN_MODEL"),
		WanMaxAttempts:    v.GetInt("WAN_MAX_ATTEMPTS"),
		StorageDriver:     strings.ToLower(v.GetString("STORAGE_DRIVER")),
		StoragePath:       v.GetString("STORAGE_PATH"),
		StorageBaseURL:    strings.TrimRight(v.GetString("STORAGE_BASE_URL"), "/"),
		S3Endpoint:        v.GetString("S3_ENDPOINT"),
		S3AccessKey:       v.GetString("S3_ACCESS_KEY"),
		S3SecretKey:       v.GetString("S3_SECRET_KEY"),
		S3Bucket:          v.GetString("S3_BUCKET"),
		S3UseSSL:          v.GetBool("S3_USE_SSL"),
		S3PublicBaseURL:   strings.TrimRight(v.GetString("S3_PUBLIC_BASE_URL"), "/"),
		AMQPURL:           v.GetString("AMQP_URL"),
		AMQPExchange:      v.GetString("AMQP_EXCHANGE"),
		WorkerInterval:    time.Second * time.Duration(v.GetInt("WORKER_INTERVAL_SECONDS")),
		WorkerStaleAfter:  time.Second * time.Duration(v.GetInt("WORKER_STALE_AFTER_SECONDS")),
		WorkerGiveUpAfter: time.Second * time.Duration(v.GetInt("WORKER_GIVE_UP_AFTER_SECONDS")),
		WorkerBatchSize:   v.GetInt("WORKER_BATCH_SIZE"),
	}

	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/objects", cfg.Port)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.DashScopeRegion {
	case "beijing", "singapore":
	default:
		return nil, fmt.Errorf("DASHSCOPE_REGION must be beijing or singapore, got %q", cfg.DashScopeRegion)
	}

	if cfg.WorkerStaleAfter > cfg.WorkerGiveUpAfter {
		return nil, fmt.Errorf("WORKER_STALE_AFTER_SECONDS must not exceed WORKER_GIVE_UP_AFTER_SECONDS")
	}

	switch cfg.StorageDriver {
	case "file":
	case "s3":
		if cfg.S3Endpoint == "" || cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required for the s3 storage driver")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return cfg, nil
}

// UsesSQLite reports whether DatabaseURL points at an embedded SQLite file.
func (c *Config) UsesSQLite() bool {
	return strings.HasPrefix(c.DatabaseURL, "sqlite:")
}

// SQLitePath strips the sqlite: scheme from DatabaseURL.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(strings.TrimPrefix(c.DatabaseURL, "sqlite:"), "//")
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
