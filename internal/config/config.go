package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all clipbot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Directory layout
	Paths PathsConfig `yaml:"paths"`

	// Browser session settings
	Browser BrowserConfig `yaml:"browser"`

	// Editor workflow settings
	Workflow WorkflowConfig `yaml:"workflow"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// YouTube fetch settings
	Fetch FetchConfig `yaml:"fetch"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// PathsConfig configures the on-disk layout.
type PathsConfig struct {
	StateDir     string `yaml:"state_dir"`     // editors.json, videos.json, markers/
	VideosDir    string `yaml:"videos_dir"`    // source videos awaiting processing
	DownloadsDir string `yaml:"downloads_dir"` // exported clips, one subdir per job
	DebugDir     string `yaml:"debug_dir"`     // failure screenshots
	WebDir       string `yaml:"web_dir"`       // static files served by the HTTP layer
}

// BrowserConfig configures the shared browser session.
type BrowserConfig struct {
	Bin               string   `yaml:"bin"`          // empty = discover via launcher.LookPath
	DebuggerURL       string   `yaml:"debugger_url"` // attach to a running browser instead of launching
	Headless          bool     `yaml:"headless"`
	ProfileDir        string   `yaml:"profile_dir"`
	Flags             []string `yaml:"flags"` // extra launcher flags, "name=value" or "name"
	WindowWidth       int      `yaml:"window_width"`
	WindowHeight      int      `yaml:"window_height"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
}

// WorkflowConfig configures the editor workflow stages. Every wait is a
// {poll, timeout} pair so tests can shrink them and drive a virtual clock.
type WorkflowConfig struct {
	// Timeline calibration: how many horizontal pixels one second of
	// footage occupies at the zoom level the workflow establishes.
	PixelsPerSecond float64 `yaml:"pixels_per_second"`

	// Desired clip length after trimming.
	TargetSeconds float64 `yaml:"target_seconds"`

	SelectorTimeout string `yaml:"selector_timeout"` // per CSS attempt

	UploadTimeout string `yaml:"upload_timeout"` // upload + transcode overlay
	UploadPoll    string `yaml:"upload_poll"`

	CutoutTimeout string `yaml:"cutout_timeout"` // background removal
	CutoutPoll    string `yaml:"cutout_poll"`

	ExportTimeout   string `yaml:"export_timeout"`   // outer export loop
	DownloadTimeout string `yaml:"download_timeout"` // inner file wait
	DownloadPoll    string `yaml:"download_poll"`

	RenderWait     string `yaml:"render_wait"`      // UI settle after actions
	CursorProbeGap string `yaml:"cursor_probe_gap"` // pause between handle-scan probes
}

// ServerConfig configures the HTTP layer.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	MaxUploadMB     int64    `yaml:"max_upload_mb"`
}

// FetchConfig configures the yt-dlp/ffmpeg companion.
type FetchConfig struct {
	YtDlpPath   string `yaml:"ytdlp_path"`  // empty = resolve from PATH
	FfmpegPath  string `yaml:"ffmpeg_path"` // empty = resolve from PATH
	Quality     string `yaml:"quality"`     // best, 1080p, 720p, 480p
	Fragments   int    `yaml:"fragments"`   // concurrent fragment downloads
	CookiesPath string `yaml:"cookies_path"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	Level     string `yaml:"level"` // debug, info, warn, error
	Dir       string `yaml:"dir"`
	DebugMode bool   `yaml:"debug_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "clipbot",
		Version: "0.3.0",

		Paths: PathsConfig{
			StateDir:     ".clipbot",
			VideosDir:    "videos",
			DownloadsDir: "downloads",
			DebugDir:     "debug",
			WebDir:       "web",
		},

		Browser: BrowserConfig{
			Headless:          true,
			ProfileDir:        ".clipbot/profile",
			WindowWidth:       1920,
			WindowHeight:      1080,
			NavigationTimeout: "60s",
		},

		Workflow: WorkflowConfig{
			PixelsPerSecond: 30,
			TargetSeconds:   30,
			SelectorTimeout: "3s",
			UploadTimeout:   "16m",
			UploadPoll:      "1s",
			CutoutTimeout:   "7m",
			CutoutPoll:      "5s",
			ExportTimeout:   "10m",
			DownloadTimeout: "15m",
			DownloadPoll:    "2s",
			RenderWait:      "15s",
			CursorProbeGap:  "10ms",
		},

		Server: ServerConfig{
			Addr:            ":8090",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: "10s",
			MaxUploadMB:     2048,
		},

		Fetch: FetchConfig{
			Quality:   "1080p",
			Fragments: 4,
		},

		Logging: LoggingConfig{
			Level: "info",
			Dir:   ".clipbot/logs",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if dir := os.Getenv("CLIPBOT_STATE_DIR"); dir != "" {
		c.Paths.StateDir = dir
	}
	if dir := os.Getenv("CLIPBOT_VIDEOS_DIR"); dir != "" {
		c.Paths.VideosDir = dir
	}
	if dir := os.Getenv("CLIPBOT_DOWNLOADS_DIR"); dir != "" {
		c.Paths.DownloadsDir = dir
	}
	if bin := os.Getenv("CLIPBOT_BROWSER_BIN"); bin != "" {
		c.Browser.Bin = bin
	}
	if url := os.Getenv("CLIPBOT_DEBUGGER_URL"); url != "" {
		c.Browser.DebuggerURL = url
	}
	if v := os.Getenv("CLIPBOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if addr := os.Getenv("CLIPBOT_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if bin := os.Getenv("CLIPBOT_YTDLP"); bin != "" {
		c.Fetch.YtDlpPath = bin
	}
	if bin := os.Getenv("CLIPBOT_FFMPEG"); bin != "" {
		c.Fetch.FfmpegPath = bin
	}
	if v := os.Getenv("CLIPBOT_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = b
		}
	}
}

// EnsureDirs creates every directory the pipeline writes into.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.Paths.StateDir,
		filepath.Join(c.Paths.StateDir, "markers"),
		c.Paths.VideosDir,
		c.Paths.DownloadsDir,
		c.Paths.DebugDir,
		c.Logging.Dir,
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// EditorsPath returns the path of the editor registry file.
func (c *Config) EditorsPath() string {
	return filepath.Join(c.Paths.StateDir, "editors.json")
}

// CatalogPath returns the path of the video catalog file.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "videos.json")
}

// MarkersDir returns the directory holding per-video status markers.
func (c *Config) MarkersDir() string {
	return filepath.Join(c.Paths.StateDir, "markers")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetNavigationTimeout returns the page navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 60*time.Second)
}

// GetSelectorTimeout returns the per-selector attempt timeout as a duration.
func (c *Config) GetSelectorTimeout() time.Duration {
	return parseDuration(c.Workflow.SelectorTimeout, 3*time.Second)
}

// GetUploadTimeout returns the upload/transcode wait bound as a duration.
func (c *Config) GetUploadTimeout() time.Duration {
	return parseDuration(c.Workflow.UploadTimeout, 16*time.Minute)
}

// GetUploadPoll returns the upload/transcode poll interval as a duration.
func (c *Config) GetUploadPoll() time.Duration {
	return parseDuration(c.Workflow.UploadPoll, time.Second)
}

// GetCutoutTimeout returns the background-removal wait bound as a duration.
func (c *Config) GetCutoutTimeout() time.Duration {
	return parseDuration(c.Workflow.CutoutTimeout, 7*time.Minute)
}

// GetCutoutPoll returns the background-removal poll interval as a duration.
func (c *Config) GetCutoutPoll() time.Duration {
	return parseDuration(c.Workflow.CutoutPoll, 5*time.Second)
}

// GetExportTimeout returns the outer export loop bound as a duration.
func (c *Config) GetExportTimeout() time.Duration {
	return parseDuration(c.Workflow.ExportTimeout, 10*time.Minute)
}

// GetDownloadTimeout returns the inner download wait bound as a duration.
func (c *Config) GetDownloadTimeout() time.Duration {
	return parseDuration(c.Workflow.DownloadTimeout, 15*time.Minute)
}

// GetDownloadPoll returns the download poll interval as a duration.
func (c *Config) GetDownloadPoll() time.Duration {
	return parseDuration(c.Workflow.DownloadPoll, 2*time.Second)
}

// GetRenderWait returns the UI settle bound as a duration.
func (c *Config) GetRenderWait() time.Duration {
	return parseDuration(c.Workflow.RenderWait, 15*time.Second)
}

// GetCursorProbeGap returns the pause between handle-scan probes.
func (c *Config) GetCursorProbeGap() time.Duration {
	return parseDuration(c.Workflow.CursorProbeGap, 10*time.Millisecond)
}

// GetShutdownTimeout returns the HTTP drain bound as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	return parseDuration(c.Server.ShutdownTimeout, 10*time.Second)
}

// ValidQualities lists the fetch quality tiers.
var ValidQualities = []string{"best", "1080p", "720p", "480p"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workflow.PixelsPerSecond <= 0 {
		return fmt.Errorf("workflow.pixels_per_second must be positive, got %v", c.Workflow.PixelsPerSecond)
	}
	if c.Workflow.TargetSeconds <= 0 {
		return fmt.Errorf("workflow.target_seconds must be positive, got %v", c.Workflow.TargetSeconds)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr not configured")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser window %dx%d is not a usable viewport", c.Browser.WindowWidth, c.Browser.WindowHeight)
	}

	validQuality := false
	for _, q := range ValidQualities {
		if c.Fetch.Quality == q {
			validQuality = true
			break
		}
	}
	if !validQuality {
		return fmt.Errorf("invalid fetch quality: %s (valid: %v)", c.Fetch.Quality, ValidQualities)
	}

	return nil
}
