//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clipbot/internal/browser"
	"clipbot/internal/config"
)

func testManager(t *testing.T) *browser.Manager {
	t.Helper()
	cfg := config.DefaultConfig().Browser
	cfg.Headless = true
	cfg.ProfileDir = filepath.Join(t.TempDir(), "profile")
	return browser.NewManager(cfg, 10*time.Second)
}

func TestManager_OpenPage_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "<html><body><h1>editor stub</h1></body></html>")
	}))
	defer ts.Close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	defer func() {
		if err := m.Shutdown(context.Background()); err != nil {
			t.Logf("Shutdown error: %v", err)
		}
	}()

	require.NoError(t, m.Start(ctx), "Failed to start browser")
	require.True(t, m.IsConnected())

	downloads := filepath.Join(t.TempDir(), "job-1")
	page, err := m.OpenPage(ctx, ts.URL, downloads)
	require.NoError(t, err, "Failed to open page")
	require.Equal(t, 1, m.OpenPages())

	el, err := page.Context(ctx).Element("h1")
	require.NoError(t, err)
	text, err := el.Text()
	require.NoError(t, err)
	require.Equal(t, "editor stub", text)

	// Download dir must exist even before anything downloads into it
	info, err := os.Stat(downloads)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// ClosePage is idempotent
	m.ClosePage(page)
	m.ClosePage(page)
	require.Equal(t, 0, m.OpenPages())
}

func TestManager_NavigationTimeout_Integration(t *testing.T) {
	// A server that never responds forces the navigation bound to fire.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Second)
	}))
	defer ts.Close()

	cfg := config.DefaultConfig().Browser
	cfg.Headless = true
	cfg.ProfileDir = filepath.Join(t.TempDir(), "profile")
	m := browser.NewManager(cfg, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	defer m.Shutdown(context.Background())

	require.NoError(t, m.Start(ctx))

	_, err := m.OpenPage(ctx, ts.URL, "")
	require.ErrorIs(t, err, browser.ErrNavigationFailed)
}

func TestManager_StartReprobes_Integration(t *testing.T) {
	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	defer m.Shutdown(context.Background())

	require.NoError(t, m.Start(ctx))
	// Second Start must detect the healthy browser and keep it
	url := m.ControlURL()
	require.NoError(t, m.Start(ctx))
	require.Equal(t, url, m.ControlURL())
}

func TestManager_Screenshot_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "<html><body><p>diagnostic</p></body></html>")
	}))
	defer ts.Close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	defer m.Shutdown(context.Background())

	require.NoError(t, m.Start(ctx))
	page, err := m.OpenPage(ctx, ts.URL, "")
	require.NoError(t, err)
	defer m.ClosePage(page)

	path := filepath.Join(t.TempDir(), "debug", "failure.png")
	require.NoError(t, m.Screenshot(page, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
