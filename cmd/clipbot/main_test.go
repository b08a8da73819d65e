package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"clipbot/internal/config"
	"clipbot/internal/pipeline"
	"clipbot/internal/registry"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.DefaultConfig()
	root := t.TempDir()
	c.Paths.StateDir = filepath.Join(root, "state")
	c.Paths.VideosDir = filepath.Join(root, "videos")
	c.Paths.DownloadsDir = filepath.Join(root, "downloads")
	c.Paths.DebugDir = filepath.Join(root, "debug")
	c.Paths.WebDir = filepath.Join(root, "web")
	c.Logging.Dir = ""
	return c
}

func TestEditorsLifecycle(t *testing.T) {
	logger = zap.NewNop()
	cfg = testConfig(t)

	output := captureOutput(t, func() {
		if err := runEditorsAdd(&cobra.Command{}, []string{"https://editor.example/tab/1"}); err != nil {
			t.Fatalf("add returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Registered") {
		t.Fatalf("expected registration notice, got: %s", output)
	}

	output = captureOutput(t, func() {
		if err := runEditorsList(&cobra.Command{}, nil); err != nil {
			t.Fatalf("list returned error: %v", err)
		}
	})
	if !strings.Contains(output, "https://editor.example/tab/1") || !strings.Contains(output, registry.StatusAvailable) {
		t.Fatalf("expected the editor listed as available, got: %s", output)
	}

	reg, err := registry.Open(cfg.EditorsPath())
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.Lease("https://editor.example/tab/1"); err != nil {
		t.Fatal(err)
	}

	output = captureOutput(t, func() {
		if err := runEditorsRelease(&cobra.Command{}, []string{"https://editor.example/tab/1"}); err != nil {
			t.Fatalf("release returned error: %v", err)
		}
	})
	if !strings.Contains(output, "Released") {
		t.Fatalf("expected release notice, got: %s", output)
	}

	reg, err = registry.Open(cfg.EditorsPath())
	if err != nil {
		t.Fatal(err)
	}
	if got := reg.AvailableCount(); got != 1 {
		t.Fatalf("expected the editor available after release, got %d", got)
	}
}

func TestEditorsListEmpty(t *testing.T) {
	logger = zap.NewNop()
	cfg = testConfig(t)

	output := captureOutput(t, func() {
		if err := runEditorsList(&cobra.Command{}, nil); err != nil {
			t.Fatalf("list returned error: %v", err)
		}
	})
	if !strings.Contains(output, "No editors registered") {
		t.Fatalf("expected empty-pool notice, got: %s", output)
	}
}

func TestProcessMissingVideo(t *testing.T) {
	logger = zap.NewNop()
	cfg = testConfig(t)

	err := runProcess(&cobra.Command{}, []string{filepath.Join(t.TempDir(), "missing.mp4")})
	if !errors.Is(err, pipeline.ErrVideoFileNotFound) {
		t.Fatalf("expected ErrVideoFileNotFound, got %v", err)
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	origOut := os.Stdout
	origErr := os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout = wOut
	os.Stderr = wErr

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)
		_, _ = io.Copy(&buf, rErr)
		done <- buf.String()
	}()

	fn()

	_ = wOut.Close()
	_ = wErr.Close()
	os.Stdout = origOut
	os.Stderr = origErr
	return <-done
}
