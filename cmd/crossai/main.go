// Command crossai is the entry point for the CrossAI emergency response
// server: capture, transcription, classification, logging, and spoken
// responses behind one HTTP surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/protect-ng/crossai/internal/audit"
	"github.com/protect-ng/crossai/internal/classify"
	"github.com/protect-ng/crossai/internal/config"
	"github.com/protect-ng/crossai/internal/health"
	"github.com/protect-ng/crossai/internal/observe"
	"github.com/protect-ng/crossai/internal/resilience"
	"github.com/protect-ng/crossai/internal/server"
	"github.com/protect-ng/crossai/pkg/provider/stt"
	"github.com/protect-ng/crossai/pkg/provider/tts"
)

const (
	serviceName    = "Protect.NG CrossAI Emergency Response"
	serviceVersion = "2.0.0"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "crossai: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "crossai: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("crossai starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"storage_backend", cfg.Storage.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	// Must run before the first observe.DefaultMetrics() call so instruments
	// bind to the real meter provider, not the global no-op.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "crossai",
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.DefaultRegistry()

	classifier, err := buildClassifier(cfg, reg, logger)
	if err != nil {
		slog.Error("failed to build classifier", "err", err)
		return 1
	}

	var transcriber stt.Provider
	if cfg.Providers.STT.Name != "" {
		transcriber, err = reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			slog.Error("failed to build transcription provider", "err", err)
			return 1
		}
	}

	var speaker tts.Provider
	if cfg.Providers.TTS.Name != "" {
		speaker, err = reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			slog.Error("failed to build speech provider", "err", err)
			return 1
		}
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	store, storeChecker, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise storage", "err", err)
		return 1
	}
	if closeStore != nil {
		defer closeStore()
	}

	var auditor *audit.Logger
	if store != nil {
		auditor = audit.NewLogger(store, logger)
	}

	// ── Health checkers ───────────────────────────────────────────────────────
	var checkers []health.Checker
	if storeChecker != nil {
		checkers = append(checkers, *storeChecker)
	}
	if speaker != nil {
		sp := speaker
		checkers = append(checkers, health.Checker{
			Name:  "tts",
			Check: func(ctx context.Context) error { return sp.Ping(ctx) },
		})
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(server.Config{
		Classifier:  classifier,
		Transcriber: transcriber,
		Speaker:     speaker,
		Auditor:     auditor,
		Language:    cfg.Session.Language,
		Health:      health.New(serviceName, serviceVersion, checkers...),
		Logger:      logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildClassifier constructs the classification engine. With fallbacks
// configured, the model backends are wrapped in a failover group so a dead
// primary never blocks triage.
func buildClassifier(cfg *config.Config, reg *config.Registry, logger *slog.Logger) (*classify.Engine, error) {
	if cfg.Providers.Classifier.Name == "" {
		// No provider configured. The engine reports a configuration error on
		// every classification request, but the server still boots so the
		// health and speech surfaces stay reachable.
		return classify.New(nil, logger), nil
	}

	primary, err := reg.CreateLLM(cfg.Providers.Classifier.ProviderEntry)
	if err != nil {
		return nil, err
	}

	provider := primary
	if len(cfg.Providers.Classifier.Fallbacks) > 0 {
		fb := resilience.NewClassifierFallback(primary, cfg.Providers.Classifier.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.Classifier.Fallbacks {
			p, err := reg.CreateLLM(entry)
			if err != nil {
				return nil, fmt.Errorf("fallback %q: %w", entry.Name, err)
			}
			fb.AddFallback(entry.Name, p)
		}
		provider = fb
	}

	return classify.New(provider, logger), nil
}

// buildStore initialises the configured audit store. The returned checker, if
// non-nil, probes the backing database for the readiness endpoint; the close
// function, if non-nil, releases the connection pool.
func buildStore(ctx context.Context, cfg *config.Config) (audit.Store, *health.Checker, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageSupabase:
		store, err := audit.NewSupabaseStore(cfg.Storage.Supabase.URL, cfg.Storage.Supabase.ServiceRoleKey)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, nil, nil, nil

	case config.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("postgres pool: %w", err)
		}
		store := audit.NewPostgresStore(pool)
		if err := store.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		checker := &health.Checker{
			Name:  "database",
			Check: pool.Ping,
		}
		return store, checker, pool.Close, nil

	default:
		slog.Warn("persistence disabled, emergencies will not be recorded")
		return nil, nil, nil, nil
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        CrossAI — startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("Classifier", cfg.Providers.Classifier.Name, cfg.Providers.Classifier.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Voice)
	fmt.Printf("║  Fallback models : %-19d ║\n", len(cfg.Providers.Classifier.Fallbacks))
	fmt.Printf("║  Storage         : %-19s ║\n", cfg.Storage.Backend)
	fmt.Printf("║  Language        : %-19s ║\n", cfg.Session.Language)
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, detail string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if detail != "" {
		value = name + " / " + detail
	}
	fmt.Printf("║  %-15s : %-19s ║\n", kind, value)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
