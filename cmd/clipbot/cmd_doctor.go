package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"clipbot/internal/browser"
	"clipbot/internal/fetch"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external dependencies",
	Long: `Reports whether yt-dlp, ffmpeg, and a usable browser binary can be
found. 'clipbot fetch' needs the first two; everything else needs the
browser.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	healthy := true

	report := fetch.DependencyStatus(cfg.Fetch.YtDlpPath, cfg.Fetch.FfmpegPath)
	if report.YTDLPFound {
		fmt.Printf("yt-dlp   OK       %s\n", report.YTDLPPath)
	} else {
		fmt.Println("yt-dlp   MISSING  install it or put it on PATH")
		healthy = false
	}
	if report.FFmpegFound {
		fmt.Printf("ffmpeg   OK       %s\n", report.FFmpegPath)
	} else {
		fmt.Println("ffmpeg   MISSING  install it or put it on PATH")
		healthy = false
	}

	if bin, ok := browser.LookupBinary(cfg.Browser.Bin); ok {
		fmt.Printf("browser  OK       %s\n", bin)
	} else if bin != "" {
		fmt.Printf("browser  MISSING  configured binary %s does not exist\n", bin)
		healthy = false
	} else {
		fmt.Println("browser  MISSING  install chrome/chromium or set browser.bin")
		healthy = false
	}

	if !healthy {
		return errors.New("missing dependencies")
	}
	return nil
}
