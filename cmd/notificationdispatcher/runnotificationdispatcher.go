package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/fcm"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/firebaseapp"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/platform/onesignal"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-notification-dispatcher/internal/storage/firestore"
	"github.com/tinywideclouds/go-notification-dispatcher/internal/telemetry"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationdispatcher"
	"github.com/tinywideclouds/go-notification-dispatcher/notificationdispatcher/config"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/dispatch"
)

const serviceName = "go-notification-dispatcher"

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", serviceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, _ := config.NewConfigFromYaml(&yamlCfg, logger)
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	// --- Tracing ---
	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: serviceName,
	}, logger)
	if err != nil {
		logger.Error("Tracing setup failed", "err", err)
		os.Exit(1)
	}

	// --- Firebase ---
	// A credentials failure is logged, not fatal: the endpoint keeps serving
	// and every dispatch reports an internal error until the key is fixed.
	fbApp, fbErr := firebaseapp.NewApp(ctx, []byte(cfg.Firebase.ServiceAccountJSON), cfg.Firebase.ProjectID, true)
	if fbErr != nil {
		logger.Error("Failed to initialize Firebase App", "err", fbErr)
	}

	// --- User Directory (Decorated) ---
	directory, closeDirectory := newDirectory(ctx, cfg, fbApp, fbErr, logger)
	defer closeDirectory()

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		directory = cache.NewCachedDirectory(directory, redisClient, cfg.Redis.TTL, logger)
		logger.Info("UserDirectory upgraded", "type", "redis_cached_firestore", "ttl", cfg.Redis.TTL)
	}

	// --- Provider ---
	provider := newProvider(ctx, cfg, fbApp, fbErr, logger)
	logger.Info("Delivery provider selected", "provider", provider.Name())

	// --- Service ---
	service, err := notificationdispatcher.New(cfg, directory, provider, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...")
		errCh <- service.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Service stopped with error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown failed", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("Tracing shutdown failed", "err", err)
	}
}

func newDirectory(
	ctx context.Context,
	cfg *config.Config,
	app *firebase.App,
	appErr error,
	logger *slog.Logger,
) (dispatch.UserDirectory, func()) {
	if appErr != nil {
		return fsStore.Unavailable{Err: appErr}, func() {}
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		return fsStore.Unavailable{Err: err}, func() {}
	}
	logger.Info("UserDirectory initialized", "type", "firestore", "collection", cfg.Firebase.UsersCollection)
	return fsStore.NewUserStore(fsClient, cfg.Firebase.UsersCollection, cfg.Firebase.TokenField), func() {
		_ = fsClient.Close()
	}
}

func newProvider(
	ctx context.Context,
	cfg *config.Config,
	app *firebase.App,
	appErr error,
	logger *slog.Logger,
) dispatch.Provider {
	if cfg.Provider != config.ProviderFCM {
		return onesignal.NewClient(onesignal.Config{
			BaseURL: cfg.OneSignal.BaseURL,
			APIKey:  cfg.OneSignal.APIKey,
			Timeout: cfg.OneSignal.Timeout,
		}, telemetry.HTTPClient(), logger)
	}

	if appErr != nil {
		return fcm.Unavailable(appErr, logger)
	}
	messaging, err := app.Messaging(ctx)
	if err != nil {
		logger.Error("Failed to create FCM messaging client", "err", err)
		return fcm.Unavailable(err, logger)
	}
	return fcm.NewProvider(messaging, logger)
}
