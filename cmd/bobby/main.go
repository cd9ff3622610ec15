package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Stewart86/bobby/internal/bot"
	"github.com/Stewart86/bobby/internal/config"
	"github.com/Stewart86/bobby/internal/httpapi"
	"github.com/Stewart86/bobby/internal/memory"
	"github.com/Stewart86/bobby/internal/observability"
	"github.com/Stewart86/bobby/internal/platform"
	"github.com/Stewart86/bobby/internal/ratelimit"
	"github.com/Stewart86/bobby/internal/thread"
)

func main() {
	// Local development keeps credentials in a .env file; absence is fine.
	_ = godotenv.Load()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if cfg.AllowAllGuilds() {
		log.Warn("ALLOWED_GUILD_IDS is empty, serving every space the bot is invited to")
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	limitStore, err := ratelimit.NewStore(ctx, cfg.DatabaseURL, cfg.RateLimitDBPath)
	if err != nil {
		log.Error("rate limit store init failed", "error", err)
		os.Exit(1)
	}
	defer limitStore.Close()

	memories, err := memory.NewStore(cfg.MemoryDir)
	if err != nil {
		log.Error("memory store init failed", "error", err)
		os.Exit(1)
	}

	runner := bot.NewEngineRunner(cfg.EngineCLIPath, []string{
		"ENGINE_API_KEY=" + cfg.EngineAPIKey,
		"GITHUB_TOKEN=" + cfg.GitHubToken,
		"GITHUB_REPO=" + cfg.GitHubRepo,
	})

	client := platform.NewRESTClient(cfg.BotToken)
	orchestrator := bot.NewOrchestrator(bot.Deps{
		Client:          client,
		Runner:          runner,
		Limiter:         ratelimit.NewLimiter(limitStore),
		Memories:        memories,
		Registry:        thread.NewRegistry(),
		Metrics:         metrics,
		Log:             log,
		WakeWord:        cfg.WakeWord,
		AllowedGuildIDs: cfg.AllowedGuildIDs,
	})

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	gateway := platform.NewGateway(cfg.GatewayURL, cfg.BotToken, func(msg platform.InboundMessage) {
		orchestrator.HandleMessage(runCtx, msg)
	}, log)

	api := httpapi.New(gateway.Connected)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	go func() {
		log.Info("ops server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ops server failed", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		if err := gateway.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("gateway stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutdown signal received")

	runCancel()
	orchestrator.Drain(cfg.ShutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	log.Info("shutdown complete")
}
