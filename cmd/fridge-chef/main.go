package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zombor/fridge-chef/internal/chef"
	"github.com/zombor/fridge-chef/internal/config"
	"github.com/zombor/fridge-chef/internal/llm"
	"github.com/zombor/fridge-chef/internal/render"
	"github.com/zombor/fridge-chef/internal/scanning"
	"github.com/zombor/fridge-chef/internal/server"
	"github.com/zombor/fridge-chef/internal/session"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

const (
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("Starting fridge-chef", "version", version, "provider", cfg.Provider)

	model, err := newModel(cfg)
	if err != nil {
		slog.Error("Failed to initialize model", "provider", cfg.Provider, "error", err)
		os.Exit(1)
	}
	defer model.Close()

	store, err := newStore(cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	orch := session.NewOrchestrator(
		scanning.NewNormalizer(cfg.Limits()),
		scanning.NewExtractor(model),
		chef.NewGenerator(model),
		render.NewPDF(),
		cfg.MaxRecipes,
	)
	manager := session.NewManager(store, orch, cfg.Timeouts())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go manager.RunSweeper(ctx, sweepInterval, cfg.SessionTTL)

	basicAuth := server.BasicAuth{
		Username: cfg.AuthUser,
		Password: cfg.AuthPass,
	}
	srv := server.NewServer(manager, server.Options{
		MaxImages:  cfg.MaxImages,
		MaxRecipes: cfg.MaxRecipes,
	}, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.Port)
	go func() {
		if err := srv.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.AuthUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
	}
}

// newModel creates the client for the configured provider
func newModel(cfg *config.Config) (llm.Model, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		slog.Info("Initializing Gemini...", "model", cfg.GeminiModel)
		return llm.NewGemini(cfg.GeminiKey, cfg.GeminiModel)
	case config.ProviderOllama:
		slog.Info("Initializing Ollama...", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return llm.NewOllama(cfg.OllamaURL, cfg.OllamaModel)
	case config.ProviderOpenAI:
		slog.Info("Initializing OpenAI-compatible client...", "url", cfg.OpenAIURL, "model", cfg.OpenAIModel)
		return llm.NewOpenAI(cfg.OpenAIURL, cfg.OpenAIKey, cfg.OpenAIModel)
	}
	return nil, fmt.Errorf("invalid provider %q", cfg.Provider)
}

// newStore keeps sessions in memory unless a database path is configured
func newStore(cfg *config.Config) (session.Store, error) {
	if cfg.SessionDB == "" {
		return session.NewMemoryStore(), nil
	}
	slog.Info("Opening session database...", "path", cfg.SessionDB)
	return session.NewBoltStore(cfg.SessionDB, cfg.SessionTTL, time.Now())
}
