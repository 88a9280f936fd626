package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"avatar-relay/internal/api"
	"avatar-relay/internal/config"
	"avatar-relay/internal/database"
	"avatar-relay/internal/dedup"
	"avatar-relay/internal/notify"
	"avatar-relay/internal/publisher"
	"avatar-relay/internal/repository"
	"avatar-relay/internal/service"
	"avatar-relay/internal/state"
	"avatar-relay/internal/upstream"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired dependencies of the relay server.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Redis    *redis.Client
	Bus      *notify.Bus
	Upstream upstream.Client
	Server   *http.Server

	Chats     *service.ChatService
	Settings  *service.SettingsService
	Providers *service.ProviderService
}

// NewApp opens storage and wires the services, handlers and HTTP server.
// It does not start listening.
func NewApp(cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Successfully connected to SQLite database.", "path", cfg.DatabasePath)

	a := &App{Config: cfg, DB: db}

	var repo repository.Repository
	switch cfg.StorageDriver {
	case config.StorageRedis:
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := a.Redis.Ping(context.Background()).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		slog.Info("Successfully connected to Redis.", "addr", cfg.RedisAddr)
		repo = repository.NewRedisRepository(a.Redis)
	default:
		repo = repository.NewSQLiteRepository(db)
	}

	a.Upstream = upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamToken)
	guard := dedup.New(cfg.DuplicateThreshold)
	store := state.NewStore(guard)
	a.Bus = notify.NewBus()
	pub := publisher.New(store, a.Bus, publisher.WithGrace(cfg.CompletionGrace))

	settingsService := service.NewSettingsService(db, a.Upstream, service.SettingsDefaults{
		Provider:      cfg.DefaultProvider,
		ReplyStrategy: cfg.DefaultReplyStrategy,
		SystemPrompt:  cfg.DefaultSystemPrompt,
	})
	groupSettings, err := settingsService.InitAndGet(context.Background())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize group settings: %w", err)
	}
	slog.Info("Loaded group settings", "providers", groupSettings.SelectedProviders, "strategy", groupSettings.ReplyStrategy)

	a.Settings = settingsService
	a.Chats = service.NewChatService(repo, a.Upstream, settingsService, pub, store, a.Bus,
		service.WithGuard(guard),
		service.WithDefaultProvider(cfg.DefaultProvider),
	)
	a.Providers = service.NewProviderService(a.Upstream)

	chatHandler := api.NewChatHandler(a.Chats, settingsService)
	providerHandler := api.NewProviderHandler(a.Providers)
	router := api.NewRouter(chatHandler, providerHandler)

	a.Server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.AppPort),
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		WriteTimeout:      0, // Disabled for streaming endpoints
		IdleTimeout:       120 * time.Second,
	}
	return a, nil
}

// Close releases the bus and the storage connections.
func (a *App) Close() {
	if a.Bus != nil {
		a.Bus.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			slog.Error("Failed to close redis connection", "error", err)
		}
	}
	if err := a.DB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}

func Run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		// slog is not yet configured, so use the default logger for this critical error.
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	logCloser, err := setupLogger(os.Stdout, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		return 1
	}
	defer func() { _ = logCloser.Close() }()

	logConfigSource(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitForUpstream(ctx, upstream.NewClient(cfg.UpstreamURL, cfg.UpstreamToken), cfg.UpstreamWait)

	a, err := NewApp(cfg)
	if err != nil {
		slog.Error("Failed to start application", "error", err)
		return 1
	}
	defer a.Close()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", cfg.AppPort, "upstream", cfg.UpstreamURL, "storage", cfg.StorageDriver)
		serveErr <- a.Server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Open SSE streams end when the bus closes.
		a.Bus.Close()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
			return 1
		}
	}

	return 0
}

func logConfigSource(cfg *config.Config) {
	if cfg.ConfigFile != "" {
		slog.Info("Successfully loaded configuration from file.", "file", cfg.ConfigFile)
	} else {
		slog.Info("Configuration file not found. Using environment variables and defaults.")
	}
}

// waitForUpstream polls the chat backend until it answers or wait elapses.
// A zero wait skips the check.
func waitForUpstream(ctx context.Context, client upstream.Client, wait time.Duration) bool {
	if wait <= 0 {
		return true
	}
	slog.Info("Waiting for the chat backend to be ready...", "timeout", wait)

	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx)
		pingCancel()
		if err == nil {
			slog.Info("Chat backend is ready.")
			return true
		}
		slog.Debug("Chat backend not ready yet, retrying...", "error", err)

		select {
		case <-ctx.Done():
			slog.Warn("Chat backend did not become ready in time, starting anyway.", "timeout", wait)
			return false
		case <-ticker.C:
		}
	}
}
