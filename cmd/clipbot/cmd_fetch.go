package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clipbot/internal/catalog"
	"clipbot/internal/fetch"
)

var (
	fetchQuality string
	fetchCookies string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Download a YouTube video into the videos directory",
	Long: `Fetches video and audio streams with yt-dlp and remuxes them into a
single MP4 with ffmpeg. The result is registered in the catalog, ready
for 'clipbot process' or a serve-mode run.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchQuality, "quality", "", "Quality tier: best, 1080p, 720p, 480p (default from config)")
	fetchCmd.Flags().StringVar(&fetchCookies, "cookies", "", "Netscape cookies file for gated videos")
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.EnsureDirs(); err != nil {
		return err
	}
	if err := fetch.CheckDependencies(cfg.Fetch.YtDlpPath, cfg.Fetch.FfmpegPath); err != nil {
		return err
	}

	quality := cfg.Fetch.Quality
	if fetchQuality != "" {
		quality = fetchQuality
	}
	cookies := cfg.Fetch.CookiesPath
	if fetchCookies != "" {
		cookies = fetchCookies
	}

	url := args[0]
	logger.Info("fetching", zap.String("url", url), zap.String("quality", quality))

	res, err := fetch.Fetch(ctx, fetch.Options{
		URL:         url,
		OutputDir:   cfg.Paths.VideosDir,
		Quality:     quality,
		Fragments:   cfg.Fetch.Fragments,
		CookiesPath: cookies,
		YtDlpBin:    cfg.Fetch.YtDlpPath,
		FfmpegBin:   cfg.Fetch.FfmpegPath,
		Progress: func(stream fetch.OutputStream, line string) {
			if verbose {
				fmt.Printf("[%s] %s\n", stream, line)
			}
		},
	})
	if err != nil {
		return err
	}

	cat, err := catalog.Open(cfg.CatalogPath(), cfg.MarkersDir())
	if err != nil {
		return err
	}
	name := filepath.Base(res.Output)
	if err := cat.Add(name, res.Output, url); err != nil {
		return err
	}

	fmt.Printf("Fetched: %s\n", res.Output)
	return nil
}
