package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clipbot/internal/browser"
	"clipbot/internal/catalog"
	"clipbot/internal/pipeline"
	"clipbot/internal/progress"
	"clipbot/internal/registry"
	"clipbot/internal/server"
)

var serveEditors []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and job pipeline",
	Long: `Starts the HTTP layer: video intake, catalog and editor views, the
progress WebSocket, and the static dashboard. Uploads accepted over HTTP
run through the shared browser session until the process is stopped.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringSliceVar(&serveEditors, "editor", nil, "Editor URL to seed into the pool (repeatable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	reg, err := registry.Open(cfg.EditorsPath())
	if err != nil {
		return err
	}
	if err := reg.Seed(serveEditors); err != nil {
		return err
	}
	cat, err := catalog.Open(cfg.CatalogPath(), cfg.MarkersDir())
	if err != nil {
		return err
	}

	hub := progress.NewHub()
	manager := browser.NewManager(cfg.Browser, cfg.GetNavigationTimeout())
	driver := pipeline.NewDriver(cfg, reg, cat, manager, hub)
	srv := server.NewServer(cfg, reg, cat, hub, driver, ctx)

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	logger.Info("clipbot serving",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("editors", len(reg.List())),
		zap.Int("available", reg.AvailableCount()),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}
