package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/motivate/internal/api"
	"github.com/kalambet/motivate/internal/config"
	"github.com/kalambet/motivate/internal/metrics"
	"github.com/kalambet/motivate/internal/motivation"
	"github.com/kalambet/motivate/internal/session"
	"github.com/kalambet/motivate/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and optionally the MCP stdio server) in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show motivate server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdin/stdout")
}

// services is everything serve wires together.
type services struct {
	store    *storage.Store // nil when the journal is disabled
	schema   []int          // applied journal migrations
	sessions *session.Manager
	metrics  *metrics.Metrics
	handler  http.Handler
	mcp      *server.MCPServer
}

func loadCatalog(path string) (*motivation.Catalog, error) {
	if path == "" {
		return motivation.DefaultCatalog(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	c, err := motivation.LoadCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", path, err)
	}
	return c, nil
}

func engineFactory(c *motivation.Catalog) session.Factory {
	return func(userID string, seed motivation.Seed) (*motivation.Engine, error) {
		return motivation.NewWithOptions(userID, seed, motivation.Options{Catalog: c})
	}
}

func newServices(cfg config.Config) (*services, error) {
	catalog, err := loadCatalog(cfg.Engine.CatalogPath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.MustNewMetrics(reg)

	svc := &services{metrics: m}

	sessCfg := session.Config{
		CacheSize: cfg.Engine.CacheSize,
		Observer:  m,
		Factory:   engineFactory(catalog),
	}
	if cfg.Journal.Enabled {
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		svc.store = store
		sessCfg.Journal = store

		versions, err := store.AppliedMigrations()
		if err != nil {
			svc.Close()
			return nil, fmt.Errorf("reading schema version: %w", err)
		}
		svc.schema = versions
		slog.Info("run journal ready", "data_dir", cfg.Storage.DataDir, "migrations", versions)
	}

	sessions, err := session.NewManager(sessCfg)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.sessions = sessions

	deps := api.AppDeps{
		Sessions: sessions,
		Metrics:  m.Handler(),
		Token:    cfg.Auth.APIToken,
	}
	if svc.store != nil {
		deps.Runs = svc.store
	}
	svc.handler = api.NewAppHandler(deps)
	svc.mcp = api.NewMCPServer(api.MCPDeps{Sessions: sessions, Version: version})

	return svc, nil
}

func (s *services) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "motivate version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		printWarning("motivate is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()
	if cfg.Auth.APIToken == "" {
		slog.Warn("no API token configured, user routes are unauthenticated", "env", "MOTIVATE_API_TOKEN")
	}
	if !cfg.Journal.Enabled {
		slog.Info("run journal disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("motivate listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if withMCP {
		g.Go(func() error {
			// The MCP client closing stdin ends the whole server.
			defer stop()
			slog.Info("MCP server started (stdio transport)")
			err := server.NewStdioServer(svc.mcp).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				return fmt.Errorf("mcp stdio server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	catalog := cfg.Engine.CatalogPath
	if catalog == "" {
		catalog = "built-in"
	}
	printStatus("Catalog", "%s", catalog)
	printStatus("Engine cache", "%d users", cfg.Engine.CacheSize)
	printStatus("Journal", "%s", enabledLabel(cfg.Journal.Enabled))
	printStatus("Auth", "%s", enabledLabel(cfg.Auth.APIToken != ""))
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	printStatus("Config file", "%s", config.ConfigFilePath())
	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
