package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"toolshed/internal/catalog"
	"toolshed/internal/feed"
	"toolshed/internal/reviews"
	"toolshed/internal/server"
	"toolshed/internal/telemetry"
	"toolshed/pkg/database"
	"toolshed/pkg/utils"
)

type serveOptions struct {
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := utils.NewViper()
	opts := serveOptions{}

	root := &cobra.Command{
		Use:           "api-server",
		Short:         "CLI tool catalog with visitor reviews",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional config file (yaml, json or toml)")

	serve := newServeCmd(v, &opts)
	root.AddCommand(serve)

	// running the binary bare starts the server
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func newServeCmd(v *viper.Viper, opts *serveOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog, the review form and the review feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := utils.LoadConfig(v, opts.configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.Int("port", 5000, "HTTP listen port")
	flags.String("db-path", "", "SQLite database file")
	flags.String("catalog-path", "", "tool catalog file (JSON or YAML)")
	flags.String("static-dir", "", "directory holding robots.txt and sitemap.xml")
	flags.String("metrics-addr", "", "listen address for /metrics, disabled when empty")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "json or console")

	for key, name := range map[string]string{
		"port":         "port",
		"db_path":      "db-path",
		"catalog_path": "catalog-path",
		"static_dir":   "static-dir",
		"metrics_addr": "metrics-addr",
		"log_level":    "log-level",
		"log_format":   "log-format",
	} {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
	return cmd
}

func serve(parent context.Context, cfg utils.Config) error {
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DefaultConfig(cfg.DBPath))
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err), zap.String("path", cfg.DBPath))
	}
	defer db.Close()

	repo := reviews.NewRepo(db)
	if err := repo.Init(ctx); err != nil {
		logger.Fatal("schema init failed", zap.Error(err))
	}

	gin.SetMode(gin.ReleaseMode)
	metrics := telemetry.NewMetrics()
	hub := feed.NewHub(logger)

	router, err := server.NewRouter(server.Deps{
		Config:  cfg,
		DB:      db,
		Reviews: repo,
		Catalog: catalog.NewLoader(cfg.CatalogPath, logger),
		Hub:     hub,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	errCh := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("HTTP server listening",
			zap.String("addr", httpSrv.Addr),
			zap.String("db", cfg.DBPath),
			zap.String("catalog", cfg.CatalogPath),
		)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if metricsSrv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("metrics listening", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	logger.Info("shutting down servers")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// websocket connections are hijacked, Shutdown does not wait for them
	hub.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", zap.Error(err))
		}
	}

	wg.Wait()
	logger.Info("servers stopped")
	return nil
}
