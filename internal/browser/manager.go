// Package browser owns the long-lived automation browser. One Manager serves
// every job: it launches (or attaches to) a single Chrome, health-checks it on
// each acquire, and hands out isolated incognito pages whose downloads land in
// a caller-chosen directory.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"clipbot/internal/config"
	"clipbot/internal/logging"
)

// ErrNavigationFailed means the editor page did not load within the bound.
var ErrNavigationFailed = errors.New("navigation failed")

type pageRecord struct {
	contextID   proto.BrowserBrowserContextID
	downloadDir string
}

// Manager owns the shared browser instance. It is passed explicitly to every
// consumer; there is no package-level handle.
type Manager struct {
	cfg        config.BrowserConfig
	navTimeout time.Duration

	mu         sync.RWMutex
	browser    *rod.Browser
	launch     *launcher.Launcher
	controlURL string
	pages      map[proto.TargetTargetID]pageRecord
}

// NewManager creates a manager from browser settings.
func NewManager(cfg config.BrowserConfig, navTimeout time.Duration) *Manager {
	if navTimeout <= 0 {
		navTimeout = 60 * time.Second
	}
	return &Manager{
		cfg:        cfg,
		navTimeout: navTimeout,
		pages:      make(map[proto.TargetTargetID]pageRecord),
	}
}

// Start connects to an existing browser or launches a new one. When a browser
// is already attached it is probed first; a stale connection is discarded and
// replaced. Launch failures are returned to the caller, never retried here.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		if _, err := m.browser.Version(); err == nil {
			return nil // Browser is healthy
		}
		logging.SessionWarn("stale browser connection detected, relaunching")
		_ = m.browser.Close()
		m.cleanupLauncherLocked()
		m.browser = nil
		m.controlURL = ""
		m.pages = make(map[proto.TargetTargetID]pageRecord)
	}

	controlURL := m.cfg.DebuggerURL
	if controlURL == "" {
		l, err := m.newLauncher()
		if err != nil {
			return err
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		m.launch = l
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		m.cleanupLauncherLocked()
		return fmt.Errorf("connect to browser: %w", err)
	}

	m.browser = browser
	m.controlURL = controlURL
	logging.Session("browser connected (headless=%v)", m.cfg.Headless)
	return nil
}

func (m *Manager) newLauncher() (*launcher.Launcher, error) {
	bin := m.cfg.Bin
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			return nil, errors.New("no browser binary found; set browser.bin or install chrome/chromium")
		}
		bin = found
	}

	l := launcher.New().Bin(bin).Headless(m.cfg.Headless)
	if m.cfg.ProfileDir != "" {
		l = l.UserDataDir(m.cfg.ProfileDir)
	}
	for _, rawFlag := range m.cfg.Flags {
		flagStr := strings.TrimLeft(rawFlag, "-")
		name, val, hasVal := strings.Cut(flagStr, "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l, nil
}

// ControlURL returns the WebSocket debugger URL.
func (m *Manager) ControlURL() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.controlURL
}

// IsConnected returns whether a browser is attached.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser != nil
}

// OpenPage opens an isolated incognito page, points its downloads at
// downloadDir, and navigates to url within the navigation bound. Start is
// called first, so a dead browser is replaced before the page opens.
func (m *Manager) OpenPage(ctx context.Context, url, downloadDir string) (*rod.Page, error) {
	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	browser := m.browser
	m.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	absDownloads := ""
	if downloadDir != "" {
		if err := os.MkdirAll(downloadDir, 0755); err != nil {
			return nil, fmt.Errorf("create download dir: %w", err)
		}
		absDownloads, err = filepath.Abs(downloadDir)
		if err != nil {
			return nil, fmt.Errorf("resolve download dir: %w", err)
		}
		if err := (proto.BrowserSetDownloadBehavior{
			Behavior:         proto.BrowserSetDownloadBehaviorBehaviorAllow,
			BrowserContextID: incognito.BrowserContextID,
			DownloadPath:     absDownloads,
		}).Call(incognito); err != nil {
			logging.SessionWarn("failed to set download dir %s: %v", absDownloads, err)
		}
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.WindowWidth,
		Height:            m.cfg.WindowHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.SessionWarn("failed to set viewport: %v", err)
	}

	if err := page.Context(ctx).Timeout(m.navTimeout).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigationFailed, url, err)
	}
	if err := page.Context(ctx).Timeout(m.navTimeout).WaitLoad(); err != nil {
		// SPAs keep loading long after the load event; locate retries cover it
		logging.SessionDebug("initial load wait: %v", err)
	}

	m.mu.Lock()
	m.pages[page.TargetID] = pageRecord{contextID: incognito.BrowserContextID, downloadDir: absDownloads}
	m.mu.Unlock()

	logging.Session("opened page %s (downloads -> %s)", url, absDownloads)
	return page, nil
}

// ClosePage closes the page and disposes its incognito context. Closing a
// page twice, or one the manager never opened, is harmless.
func (m *Manager) ClosePage(page *rod.Page) {
	if page == nil {
		return
	}

	m.mu.Lock()
	rec, tracked := m.pages[page.TargetID]
	delete(m.pages, page.TargetID)
	browser := m.browser
	m.mu.Unlock()

	if err := page.Close(); err != nil {
		logging.SessionDebug("page close: %v", err)
	}
	if tracked && rec.contextID != "" && browser != nil {
		if err := (proto.TargetDisposeBrowserContext{
			BrowserContextID: rec.contextID,
		}).Call(browser); err != nil {
			logging.SessionDebug("dispose context: %v", err)
		}
	}
}

// OpenPages returns how many pages the manager is tracking.
func (m *Manager) OpenPages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}

// Screenshot captures the full page into path, creating parent directories.
func (m *Manager) Screenshot(page *rod.Page, path string) error {
	if page == nil {
		return errors.New("no page to capture")
	}
	data, err := page.Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	logging.Session("diagnostic screenshot written to %s", path)
	return nil
}

// Shutdown closes every tracked page, the browser, and the launched process.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil {
		for targetID, rec := range m.pages {
			if rec.contextID != "" {
				_ = (proto.TargetDisposeBrowserContext{
					BrowserContextID: rec.contextID,
				}).Call(m.browser)
			}
			delete(m.pages, targetID)
		}
	}

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.cleanupLauncherLocked()
	m.controlURL = ""
	logging.Session("browser shut down")
	return err
}

func (m *Manager) cleanupLauncherLocked() {
	if m.launch != nil {
		m.launch.Cleanup()
		m.launch = nil
	}
}

// LookupBinary reports the browser binary that would be used, for doctor.
func LookupBinary(configured string) (string, bool) {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, true
		}
		return configured, false
	}
	return launcher.LookPath()
}
