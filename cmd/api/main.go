// Package main is the entry point for the vidfetch API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vidfetch/vidfetch/internal/config"
	"github.com/vidfetch/vidfetch/internal/infra/fs"
	"github.com/vidfetch/vidfetch/internal/infra/sqlite"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/pipeline"
	"github.com/vidfetch/vidfetch/internal/proxy"
	"github.com/vidfetch/vidfetch/internal/ratelimit"
	"github.com/vidfetch/vidfetch/internal/retrieval"
	"github.com/vidfetch/vidfetch/internal/storage"
	"github.com/vidfetch/vidfetch/internal/translate"
	transporthttp "github.com/vidfetch/vidfetch/internal/transport/http"
	"github.com/vidfetch/vidfetch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.Setup(&logger.Config{
		Level:  cfg.LogLevel,
		Format: logFormat(cfg),
	})

	if err := run(cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	for _, dir := range []string{cfg.TempDir, cfg.DownloadsDir, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	repo, err := sqlite.NewRepository(cfg.DataDir)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Proxy pool for the subprocess fallback. Refreshed in the
	// background so requests never wait on list fetches.
	poolCfg := proxy.DefaultConfig(filepath.Join(cfg.DataDir, "proxies.json"))
	if len(cfg.ProxySources) > 0 {
		poolCfg.Sources = cfg.ProxySources
	}
	poolCfg.UpdateInterval = cfg.ProxyUpdateInterval
	poolCfg.EvictAfter = uint(cfg.ProxyEvictAfter)
	poolCfg.QuarantineTTL = cfg.ProxyQuarantineTTL
	pool := proxy.New(poolCfg)

	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	go func() {
		pool.RefreshIfStale(refreshCtx)
		ticker := time.NewTicker(cfg.ProxyUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-refreshCtx.Done():
				return
			case <-ticker.C:
				pool.RefreshIfStale(refreshCtx)
			}
		}
	}()

	primary := retrieval.NewPrimary(cfg.PrimaryTimeout)
	tool := retrieval.NewExternalTool(retrieval.ToolConfig{
		Path:               cfg.YtDlpPath,
		CookiesFromBrowser: cfg.CookiesFromBrowser,
		StaticProxy:        cfg.StaticProxy,
		Timeout:            cfg.YtDlpTimeout,
	}, pool)
	if err := tool.Check(); err != nil {
		slog.Warn("yt-dlp not available, fallback retrieval disabled", "error", err)
	}
	engine := retrieval.NewEngine(primary, tool)

	processor := media.NewProcessor(cfg.FFmpegPath, cfg.FFmpegTimeout)
	if err := processor.Check(); err != nil {
		slog.Warn("ffmpeg not available, media processing will fail", "error", err)
	}

	translator := translate.NewClient(translate.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
	if !translator.Available() {
		slog.Info("Translation disabled, no OpenAI credential configured")
	}

	var store pipeline.Store = storage.NewLocal()
	var remote fs.RemotePruner
	if cfg.R2Configured() {
		r2, err := storage.NewR2(context.Background(), &storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		})
		if err != nil {
			slog.Warn("R2 not available, using local storage", "error", err)
		} else {
			store = r2
			remote = r2
		}
	}

	pipe := pipeline.New(pipeline.Config{
		TempDir:      cfg.TempDir,
		DownloadsDir: cfg.DownloadsDir,
	}, engine, processor, translator, store, repo)

	cleaner := fs.NewCleaner(fs.Config{
		Dirs:         []string{cfg.TempDir, cfg.DownloadsDir},
		MaxAge:       cfg.MaxFileAge,
		Interval:     cfg.CleanupInterval,
		Remote:       remote,
		RemoteMaxAge: cfg.R2MaxFileAge,
	})
	cleaner.Start(refreshCtx)
	defer cleaner.Stop()

	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax)
	handlers := transporthttp.NewHandlers(pipe, limiter, repo)
	router := transporthttp.NewRouter(cfg, handlers, limiter, cfg.DownloadsDir)
	server := transporthttp.NewServer(":"+cfg.Port, router)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("Shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func logFormat(cfg *config.Config) string {
	if cfg.IsProduction() {
		return "json"
	}
	return "text"
}
