package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/fieldstack/maximo-mcp/internal/audit"
	"github.com/fieldstack/maximo-mcp/internal/auth"
	"github.com/fieldstack/maximo-mcp/internal/cache"
	"github.com/fieldstack/maximo-mcp/internal/config"
	"github.com/fieldstack/maximo-mcp/internal/dispatch"
	"github.com/fieldstack/maximo-mcp/internal/gateway"
	"github.com/fieldstack/maximo-mcp/internal/maximo"
	"github.com/fieldstack/maximo-mcp/internal/ratelimit"
	"github.com/fieldstack/maximo-mcp/internal/secrets"
	"github.com/fieldstack/maximo-mcp/internal/store/sqlite"
)

func cmdServe(args []string) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM,
	)
	defer cancel()

	env := loadEnv()
	applyFlags(env, args)

	// Logs go to stderr so stdio mode keeps stdout clean for the
	// protocol stream.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: env.LogLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := loadFileConfig(env)
	if err != nil {
		return err
	}

	creds, err := loadCredentials(env)
	if err != nil {
		return err
	}

	client, err := maximo.NewClient(maximo.Config{
		BaseURL:     cfg.Upstream.BaseURL,
		APIKey:      creds.apiKey,
		MaxAuth:     creds.maxAuth,
		Timeout:     cfg.UpstreamTimeout(),
		MaxAttempts: cfg.Upstream.MaxAttempts,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	dbPath := cfg.Audit.DBPath
	if dbPath == "" {
		dbPath = defaultDataPath("audit.db")
	}
	db, err := sqlite.New(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	defer func() { _ = db.Close() }()

	cacheMgr := cache.NewManager(cache.NewMemory(cfg.Cache.MaxEntries))
	limiter := ratelimit.New(ratelimit.Config{
		GeneralPerMinute: cfg.RateLimits.GeneralPerMinute,
		SearchPerMinute:  cfg.RateLimits.SearchPerMinute,
		CreatePerMinute:  cfg.RateLimits.CreatePerMinute,
	})
	gate := auth.NewGate(creds.clientKey)
	auditor := audit.NewLogger(db, cfg.Audit.RedactionHints)

	dispatcher := dispatch.New(client, cacheMgr, limiter, gate, auditor, cfg)
	srv := gateway.NewServer(dispatcher, creds.clientKey)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runAuditPruner(ctx, db, cfg.Audit.RetentionDays)
	})

	// stdin EOF means the spawning client went away, so tear down the
	// whole process rather than leaving the pruner running.
	switch env.Mode {
	case "stdio":
		slog.Info("starting in stdio mode")
		g.Go(func() error {
			defer cancel()
			return srv.RunStdio(ctx)
		})
	case "http":
		g.Go(func() error {
			defer cancel()
			return runHTTP(ctx, env.HTTPAddr, gateway.HandlerDeps{
				Server:  srv,
				Checker: gateway.NewHealthChecker(cacheMgr, client),
				Gate:    gate,
				Audit:   db,
			})
		})
	case "both":
		slog.Info("starting in stdio mode with http listener")
		g.Go(func() error {
			defer cancel()
			return srv.RunStdio(ctx)
		})
		g.Go(func() error {
			defer cancel()
			return runHTTP(ctx, env.HTTPAddr, gateway.HandlerDeps{
				Server:  srv,
				Checker: gateway.NewHealthChecker(cacheMgr, client),
				Gate:    gate,
				Audit:   db,
			})
		})
	default:
		return fmt.Errorf("unknown mode %q (want stdio, http, or both)", env.Mode)
	}

	return g.Wait()
}

// loadFileConfig reads the YAML config, falling back to built-in
// defaults when the file does not exist.
func loadFileConfig(env *Env) (*config.FileConfig, error) {
	if _, err := os.Stat(env.ConfigFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("no config file, using defaults", "path", env.ConfigFile)
			return config.Default(), nil
		}
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	cfg, err := config.LoadFile(env.ConfigFile)
	if err != nil {
		return nil, err
	}
	slog.Info("loaded config", "file", env.ConfigFile)
	return cfg, nil
}

type credentials struct {
	apiKey    string
	maxAuth   string
	clientKey string
}

// loadCredentials resolves the upstream and client credentials, checking
// the encrypted secrets file first and plain environment variables
// second. The secrets file is optional; the environment fallback covers
// fresh installs and CI.
func loadCredentials(env *Env) (*credentials, error) {
	creds := &credentials{
		apiKey:    os.Getenv("MAXIMO_API_KEY"),
		maxAuth:   os.Getenv("MAXIMO_MAXAUTH"),
		clientKey: env.ClientKey,
	}

	if _, err := os.Stat(env.SecretsFile); err == nil {
		enc, err := secrets.LoadOrCreateIdentity(env.AgeKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load age identity: %w", err)
		}
		sm := secrets.NewManager(env.SecretsFile, enc)
		for key, dst := range map[string]*string{
			"apikey":     &creds.apiKey,
			"maxauth":    &creds.maxAuth,
			"client_key": &creds.clientKey,
		} {
			val, err := sm.Get(key)
			if errors.Is(err, secrets.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("read secret %q: %w", key, err)
			}
			*dst = string(val)
		}
	}

	if creds.apiKey == "" {
		return nil, errors.New("no upstream api key: set MAXIMO_API_KEY or run `maximo-mcp secret set apikey`")
	}
	if creds.clientKey == "" {
		return nil, errors.New("no client key: set MAXIMO_MCP_CLIENT_KEY or run `maximo-mcp secret set client_key`")
	}
	if creds.maxAuth == "" {
		// Health probes fall back to the api key when no basic-auth
		// credential is configured.
		creds.maxAuth = creds.apiKey
	}
	return creds, nil
}

// runHTTP serves the MCP, health, and audit endpoints until ctx is
// cancelled.
func runHTTP(ctx context.Context, addr string, deps gateway.HandlerDeps) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           gateway.NewHTTPHandler(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// runAuditPruner deletes audit records older than the retention window,
// once at startup and then hourly.
func runAuditPruner(ctx context.Context, db *sqlite.DB, retentionDays int) error {
	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -retentionDays)
		n, err := db.PruneAuditRecords(ctx, cutoff)
		if err != nil {
			slog.Warn("audit prune failed", "error", err)
			return
		}
		if n > 0 {
			slog.Info("pruned audit records", "removed", n, "cutoff", cutoff)
		}
	}

	prune()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}
