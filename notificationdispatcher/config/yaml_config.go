package config

import (
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigin  string   `yaml:"allowed_origin"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
	TTL      string `yaml:"ttl"`
}

type YamlOneSignalConfig struct {
	BaseURL string `yaml:"base_url"`
	AppID   string `yaml:"app_id"`
	Timeout string `yaml:"timeout"`
}

type YamlFirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	UsersCollection string `yaml:"users_collection"`
	TokenField      string `yaml:"token_field"`
}

type YamlTracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// YamlConfig is the structure that mirrors the raw local.yaml file.
// Secrets (API key, service account) are only read from the environment.
type YamlConfig struct {
	ListenAddr  string              `yaml:"listen_addr"`
	MetricsAddr string              `yaml:"metrics_addr"`
	Provider    string              `yaml:"provider"`
	Locale      string              `yaml:"locale"`
	OneSignal   YamlOneSignalConfig `yaml:"onesignal"`
	Firebase    YamlFirebaseConfig  `yaml:"firebase"`
	CorsConfig  YamlCorsConfig      `yaml:"cors"`
	RedisConfig YamlRedisConfig     `yaml:"redis"`
	Tracing     YamlTracingConfig   `yaml:"tracing"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
// Unparseable durations are logged and left at zero so validation applies defaults.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ListenAddr:  baseCfg.ListenAddr,
		MetricsAddr: baseCfg.MetricsAddr,
		Provider:    baseCfg.Provider,
		Locale:      baseCfg.Locale,
		OneSignal: OneSignalConfig{
			BaseURL: baseCfg.OneSignal.BaseURL,
			AppID:   baseCfg.OneSignal.AppID,
			Timeout: parseDuration(baseCfg.OneSignal.Timeout, "onesignal.timeout", logger),
		},
		Firebase: FirebaseConfig{
			ProjectID:       baseCfg.Firebase.ProjectID,
			UsersCollection: baseCfg.Firebase.UsersCollection,
			TokenField:      baseCfg.Firebase.TokenField,
		},
		CorsConfig: middleware.CorsConfig{
			AllowedOrigin:  baseCfg.CorsConfig.AllowedOrigin,
			AllowedMethods: baseCfg.CorsConfig.AllowedMethods,
			AllowedHeaders: baseCfg.CorsConfig.AllowedHeaders,
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      parseDuration(baseCfg.RedisConfig.TTL, "redis.ttl", logger),
		},
		Tracing: TracingConfig{
			Enabled:  baseCfg.Tracing.Enabled,
			Endpoint: baseCfg.Tracing.Endpoint,
		},
	}

	logger.Debug("YAML config mapping complete",
		"listen_addr", cfg.ListenAddr,
		"provider", cfg.Provider,
		"project_id", cfg.Firebase.ProjectID,
	)

	return cfg, nil
}

func parseDuration(raw, key string, logger *slog.Logger) time.Duration {
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("Ignoring invalid duration in YAML config", "key", key, "value", raw, "err", err)
		return 0
	}
	return d
}
