// blocklag watches block production on the configured network and
// reports per-block observation latency on the console, over HTTP, and
// optionally into Postgres.
// Usage: blocklag --config configs/blocklag.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"blocklag/internal/api"
	"blocklag/internal/config"
	"blocklag/internal/database"
	"blocklag/internal/model"
	"blocklag/internal/monitor"
	"blocklag/internal/poller"
	"blocklag/internal/recorder"
	"blocklag/internal/render"
	"blocklag/internal/series"
	"blocklag/internal/version"
	"blocklag/internal/web"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional, defaults apply)")
	modeFlag := flag.String("mode", "", "startup mode: final or optimistic")
	networkFlag := flag.String("network", "", "network: mainnet or testnet")
	listenFlag := flag.String("listen", "", "HTTP listen address (enables the server)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Bootstrap logger until the configured one is built.
	logger := newLogger(config.DefaultLogLevel, config.DefaultLogFormat)

	logger.Info("starting blocklag",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := loadConfig(*configPath, *modeFlag, *networkFlag, *listenFlag)
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger = newLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		"network", cfg.Network,
		"mode", cfg.Mode,
		"base_url", cfg.ResolvedBaseURL(),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client := api.NewClient(
		cfg.ResolvedBaseURL(),
		cfg.API.Token,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
	)

	console := render.New(os.Stdout, render.Config{})
	ring := series.NewRing(cfg.Series.Capacity, console.Redraw)

	var taps []monitor.SampleTap

	var hub *web.Hub
	if cfg.Server.Enabled {
		hub = web.NewHub(logger)
		taps = append(taps, hub)
	}

	var pool *pgxpool.Pool
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)
		pool, err = database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			logger.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		rec = recorder.New(recorder.Config{
			Network:       cfg.Network,
			BatchSize:     cfg.Recorder.BatchSize,
			FlushInterval: cfg.Recorder.FlushInterval,
			BufferSize:    cfg.Recorder.BufferSize,
		}, pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "err", err)
			os.Exit(1)
		}
		taps = append(taps, rec)
	}

	mon := monitor.New(monitor.Config{
		Mode: cfg.Mode,
		Poller: poller.Config{
			MaxBlocks: cfg.Poll.MaxBlocks,
			Retry: poller.RetryPolicy{
				Delay:       cfg.Poll.RetryDelay,
				Backoff:     cfg.Poll.RetryBackoff,
				MaxAttempts: cfg.Poll.RetryMaxAttempts,
			},
		},
		Taps: taps,
	}, client, ring, logger)

	if err := mon.Start(ctx); err != nil {
		logger.Error("failed to start monitor", "err", err)
		os.Exit(1)
	}

	var server *web.Server
	if cfg.Server.Enabled {
		handler := web.NewHandler(mon, ring, hub, cfg.Health.MaxLatency, logger)
		server = web.NewServer(web.Config{ListenAddr: cfg.Server.ListenAddr}, handler, logger)
		if err := server.Start(ctx); err != nil {
			logger.Error("failed to start http server", "err", err)
			os.Exit(1)
		}
	}

	logger.Info("blocklag running",
		"network", cfg.Network,
		"mode", cfg.Mode,
		"server_enabled", cfg.Server.Enabled,
		"recorder_enabled", cfg.Recorder.Enabled,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if server != nil {
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "err", err)
		}
	}
	if err := mon.Stop(shutdownCtx); err != nil {
		logger.Error("monitor shutdown failed", "err", err)
	}
	if rec != nil {
		if err := rec.Stop(shutdownCtx); err != nil {
			logger.Error("recorder shutdown failed", "err", err)
		}
	}

	logger.Info("blocklag stopped")
}

// loadConfig reads the file (or starts from defaults) and applies flag
// overrides before validating.
func loadConfig(path, modeFlag, networkFlag, listenFlag string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadWithDefaults(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if modeFlag != "" {
		mode, err := model.ParseMode(modeFlag)
		if err != nil {
			return nil, err
		}
		cfg.Mode = mode
	}
	if networkFlag != "" {
		cfg.Network = model.Network(networkFlag)
	}
	if listenFlag != "" {
		cfg.Server.Enabled = true
		cfg.Server.ListenAddr = listenFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
