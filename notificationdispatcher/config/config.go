package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/middleware"
)

// Delivery providers.
const (
	ProviderOneSignal = "onesignal"
	ProviderFCM       = "fcm"
)

// Defaults applied during validation.
const (
	DefaultListenAddr      = ":8080"
	DefaultMetricsAddr     = ":9090"
	DefaultAppID           = "a301deef-9c27-47b2-8f7f-a1b7ee7889ee"
	DefaultLocale          = "en"
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultRedisTTL        = 5 * time.Minute
)

type OneSignalConfig struct {
	BaseURL string
	AppID   string
	APIKey  string
	Timeout time.Duration
}

type FirebaseConfig struct {
	ProjectID string
	// ServiceAccountJSON is the raw service account key. It is not validated
	// here: a bad key must not stop the process.
	ServiceAccountJSON string
	UsersCollection    string
	TokenField         string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type TracingConfig struct {
	Enabled  bool
	Endpoint string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ListenAddr  string
	MetricsAddr string
	Provider    string
	Locale      string

	OneSignal  OneSignalConfig
	Firebase   FirebaseConfig
	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Tracing    TracingConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	override := func(key string, apply func(string)) {
		if val := os.Getenv(key); val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			apply(val)
		}
	}

	// 1. Apply Environment Overrides
	override("PORT", func(v string) { cfg.ListenAddr = ":" + v })
	override("METRICS_PORT", func(v string) { cfg.MetricsAddr = ":" + v })
	override("DELIVERY_PROVIDER", func(v string) { cfg.Provider = v })
	override("NOTIFICATION_LOCALE", func(v string) { cfg.Locale = v })

	override("ONESIGNAL_BASE_URL", func(v string) { cfg.OneSignal.BaseURL = v })
	override("ONESIGNAL_APP_ID", func(v string) { cfg.OneSignal.AppID = v })
	override("ONESIGNAL_API_KEY", func(v string) { cfg.OneSignal.APIKey = v })
	if val := os.Getenv("DELIVERY_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid DELIVERY_TIMEOUT %q: %w", val, err)
		}
		cfg.OneSignal.Timeout = d
	}

	override("PROJECT_ID", func(v string) { cfg.Firebase.ProjectID = v })
	override("FIREBASE_SERVICE_ACCOUNT_KEY", func(v string) { cfg.Firebase.ServiceAccountJSON = v })
	override("USERS_COLLECTION", func(v string) { cfg.Firebase.UsersCollection = v })
	override("DEVICE_TOKEN_FIELD", func(v string) { cfg.Firebase.TokenField = v })

	override("CORS_ALLOWED_ORIGIN", func(v string) { cfg.CorsConfig.AllowedOrigin = v })

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}
	if val := os.Getenv("REDIS_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			cfg.Redis.TTL = ttl
		}
	}

	// Tracing Overrides
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
		cfg.Tracing.Enabled = true
	}
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Tracing.Enabled = enabled
	}

	// 2. Final Validation
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	if cfg.Locale == "" {
		cfg.Locale = DefaultLocale
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderOneSignal
	}
	if cfg.OneSignal.Timeout == 0 {
		cfg.OneSignal.Timeout = DefaultDeliveryTimeout
	}
	if cfg.OneSignal.Timeout < 0 {
		return nil, fmt.Errorf("delivery timeout must be positive, got %s", cfg.OneSignal.Timeout)
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = DefaultRedisTTL
	}

	switch cfg.Provider {
	case ProviderOneSignal:
		if cfg.OneSignal.AppID == "" {
			cfg.OneSignal.AppID = DefaultAppID
		}
		if cfg.OneSignal.APIKey == "" {
			logger.Warn("ONESIGNAL_API_KEY is not set; the provider will reject deliveries.")
		}
	case ProviderFCM:
	default:
		return nil, fmt.Errorf("unknown delivery provider %q (want %q or %q)", cfg.Provider, ProviderOneSignal, ProviderFCM)
	}

	if cfg.Firebase.ServiceAccountJSON == "" {
		logger.Warn("FIREBASE_SERVICE_ACCOUNT_KEY is not set; falling back to application default credentials.")
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
