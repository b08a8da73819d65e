package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clipbot/internal/browser"
	"clipbot/internal/catalog"
	"clipbot/internal/pipeline"
	"clipbot/internal/progress"
	"clipbot/internal/registry"
)

var processEditors []string

var processCmd = &cobra.Command{
	Use:   "process [video]",
	Short: "Run one video through the editor pipeline",
	Long: `Processes a single video file end to end: upload, timeline arrangement,
trim to the target length, background cutout, export, download. Progress
prints to stdout; the exported clip lands under the downloads directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringSliceVar(&processEditors, "editor", nil, "Editor URL to seed into the pool (repeatable)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	reg, err := registry.Open(cfg.EditorsPath())
	if err != nil {
		return err
	}
	if err := reg.Seed(processEditors); err != nil {
		return err
	}
	cat, err := catalog.Open(cfg.CatalogPath(), cfg.MarkersDir())
	if err != nil {
		return err
	}

	video := args[0]
	name := filepath.Base(video)
	if err := cat.Add(name, video, ""); err != nil {
		return err
	}

	manager := browser.NewManager(cfg.Browser, cfg.GetNavigationTimeout())
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			logger.Warn("browser shutdown", zap.Error(err))
		}
	}()

	driver := pipeline.NewDriver(cfg, reg, cat, manager, progress.WriterSink{W: os.Stdout})
	res, err := driver.Run(ctx, pipeline.Request{Name: name, VideoPath: video})
	if err != nil {
		return err
	}

	logger.Info("clip ready",
		zap.String("job_id", res.JobID),
		zap.String("output", res.Output),
		zap.Duration("elapsed", res.Elapsed),
	)
	fmt.Printf("Done: %s (took %s)\n", res.Output, res.Elapsed.Round(time.Second))
	return nil
}
