// Package main is the entry point for the Phantom Night game server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/phantom-night/server/internal/agents"
	"github.com/phantom-night/server/internal/engine"
	"github.com/phantom-night/server/internal/events"
	"github.com/phantom-night/server/internal/httpapi"
	"github.com/phantom-night/server/internal/infra/ai"
	"github.com/phantom-night/server/internal/infra/cache"
	"github.com/phantom-night/server/internal/infra/storage"
	"github.com/phantom-night/server/internal/network"
	"github.com/phantom-night/server/internal/platform/config"
	"github.com/phantom-night/server/internal/platform/logger"
)

func main() {
	appLogger := logger.NewLogger()
	cfg := config.Load()

	appLogger.Info("Initializing SQLite database '" + cfg.SQLitePath + "'...")
	db, err := storage.InitSQLite(cfg.SQLitePath)
	if err != nil {
		appLogger.Errorf("Failed to initialize SQLite: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	gameRepo := storage.NewSQLiteGameRepository(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventRepo, err := buildEventRepo(ctx, cfg, db, appLogger)
	if err != nil {
		appLogger.Errorf("Failed to initialize event ledger: %v", err)
		os.Exit(1)
	}

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(storage.NewEventPersisterAdapter(eventRepo))

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(appLogger, cfg.BroadcastBuffer)

	var notifier engine.Notifier = hub
	var mirror *cache.RefreshMirror
	if cfg.RedisAddr != "" {
		appLogger.Info("Bootstrapping Redis snapshot mirror at " + cfg.RedisAddr + "...")
		snapshots := cache.NewSnapshotCache(cache.NewGoRedisClient(cfg.RedisAddr))
		mirror = cache.NewRefreshMirror(hub, snapshots, appLogger)
		notifier = mirror
	}

	appLogger.Info("Bootstrapping Engine Subsystems...")
	gameEngine := engine.NewEngine(eventLog, appLogger, notifier, storage.NewEngineStore(gameRepo),
		engine.WithAllAIGames(cfg.AllowAllAIGames))
	hub.AttachAPI(gameEngine)
	if mirror != nil {
		mirror.AttachSource(gameEngine)
	}

	go hub.Run(ctx)
	gameEngine.StartScheduler(ctx)
	gameEngine.StartBackups(ctx, cfg.BackupInterval)

	appLogger.Info("Bootstrapping Agent Cognition...")
	llmProvider := buildLLMProvider(cfg, appLogger)
	pool := agents.NewPool(gameEngine, llmProvider, appLogger)
	pool.Start(ctx)

	timeline := network.NewTimelineHandler(eventLog, appLogger)
	recap := storage.NewReconstructor(eventRepo)
	api := httpapi.NewServer(gameEngine, hub, timeline, recap, appLogger, cfg.ClientSendBuffer)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Errorf("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	appLogger.Info("Server running. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf("Shutdown error: %v", err)
	}
}

// buildEventRepo picks the audit-ledger backend. The default is the local
// SQLite database; a Postgres DSN moves the ledger into a shared database
// so multiple server instances can feed one timeline.
func buildEventRepo(ctx context.Context, cfg *config.Config, sqliteDB *sqlx.DB, log *logger.Logger) (storage.EventRepository, error) {
	if cfg.PostgresDSN == "" {
		return storage.NewSQLiteEventRepository(sqliteDB), nil
	}
	log.Info("Event ledger: PostgreSQL")
	pg, err := sqlx.ConnectContext(ctx, "postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	repo := storage.NewPostgresEventRepository(pg)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// buildLLMProvider selects the decision provider for agent players.
// Without one, agents fall back to heuristics.
func buildLLMProvider(cfg *config.Config, log *logger.Logger) ai.LLMProvider {
	gate := ai.NewBudgetGate(cfg.LLMDailyBudget, cfg.LLMMonthlyBudget)
	switch cfg.LLMProvider {
	case "anthropic":
		log.Info("LLM provider: anthropic")
		return ai.NewAnthropicProvider(gate, cfg.LLMModel, cfg.LLMTimeout)
	case "openai":
		log.Info("LLM provider: openai")
		return ai.NewOpenAIProvider(gate, cfg.LLMModel, cfg.LLMTimeout)
	default:
		log.Info("No LLM provider configured; agents use heuristics only")
		return nil
	}
}
