package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "clipbot" {
		t.Errorf("expected Name=clipbot, got %s", cfg.Name)
	}
	if cfg.Workflow.PixelsPerSecond != 30 {
		t.Errorf("expected PixelsPerSecond=30, got %v", cfg.Workflow.PixelsPerSecond)
	}
	if cfg.Workflow.TargetSeconds != 30 {
		t.Errorf("expected TargetSeconds=30, got %v", cfg.Workflow.TargetSeconds)
	}
	if !cfg.Browser.Headless {
		t.Error("expected default browser to be headless")
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("CLIPBOT_STATE_DIR", "")
	t.Setenv("CLIPBOT_ADDR", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Server.Addr = ":9999"
	cfg.Browser.Bin = "/opt/chrome/chrome"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Server.Addr != ":9999" {
		t.Errorf("expected Addr=:9999, got %s", loaded.Server.Addr)
	}
	if loaded.Browser.Bin != "/opt/chrome/chrome" {
		t.Errorf("expected Bin=/opt/chrome/chrome, got %s", loaded.Browser.Bin)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("CLIPBOT_STATE_DIR", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workflow.PixelsPerSecond != 30 {
		t.Errorf("expected defaults, got PixelsPerSecond=%v", cfg.Workflow.PixelsPerSecond)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	os.Setenv("CLIPBOT_BROWSER_BIN", "/usr/bin/chromium")
	defer os.Unsetenv("CLIPBOT_BROWSER_BIN")

	os.Setenv("CLIPBOT_HEADLESS", "false")
	defer os.Unsetenv("CLIPBOT_HEADLESS")

	os.Setenv("CLIPBOT_ADDR", "127.0.0.1:7070")
	defer os.Unsetenv("CLIPBOT_ADDR")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Browser.Bin != "/usr/bin/chromium" {
		t.Errorf("expected Bin=/usr/bin/chromium, got %s", cfg.Browser.Bin)
	}
	if cfg.Browser.Headless {
		t.Error("expected CLIPBOT_HEADLESS=false to disable headless mode")
	}
	if cfg.Server.Addr != "127.0.0.1:7070" {
		t.Errorf("expected Addr=127.0.0.1:7070, got %s", cfg.Server.Addr)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid default config, got error: %v", err)
	}

	cfg.Workflow.PixelsPerSecond = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero pixels_per_second")
	}

	cfg = DefaultConfig()
	cfg.Fetch.Quality = "potato"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for invalid quality")
	}
}

func TestConfig_DurationHelpers(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.GetUploadTimeout(); got != 16*time.Minute {
		t.Errorf("GetUploadTimeout=%v, want 16m", got)
	}
	if got := cfg.GetCutoutPoll(); got != 5*time.Second {
		t.Errorf("GetCutoutPoll=%v, want 5s", got)
	}

	// Garbage duration strings fall back to the built-in default
	cfg.Workflow.UploadTimeout = "not-a-duration"
	if got := cfg.GetUploadTimeout(); got != 16*time.Minute {
		t.Errorf("GetUploadTimeout fallback=%v, want 16m", got)
	}
}

func TestConfig_EnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Paths.StateDir = filepath.Join(tmpDir, "state")
	cfg.Paths.VideosDir = filepath.Join(tmpDir, "videos")
	cfg.Paths.DownloadsDir = filepath.Join(tmpDir, "downloads")
	cfg.Paths.DebugDir = filepath.Join(tmpDir, "debug")
	cfg.Logging.Dir = filepath.Join(tmpDir, "logs")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs failed: %v", err)
	}

	for _, dir := range []string{cfg.MarkersDir(), cfg.Paths.VideosDir, cfg.Paths.DebugDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("expected %s to be a directory", dir)
		}
	}
}
