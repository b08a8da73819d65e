package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestCatalog(t *testing.T) (*Catalog, string) {
	t.Helper()
	dir := t.TempDir()
	markers := filepath.Join(dir, "markers")
	if err := os.MkdirAll(markers, 0755); err != nil {
		t.Fatalf("mkdir markers: %v", err)
	}
	c, err := Open(filepath.Join(dir, "videos.json"), markers)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return c, markers
}

func readMarker(t *testing.T, markersDir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(markersDir, name+".status"))
	if err != nil {
		t.Fatalf("read marker: %v", err)
	}
	return strings.TrimSpace(string(data))
}

func TestAddAndStatusTransitions(t *testing.T) {
	c, markers := newTestCatalog(t)

	if err := c.Add("intro", "videos/intro.mp4", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if got := readMarker(t, markers, "intro"); got != StatusQueued {
		t.Errorf("marker=%s, want %s", got, StatusQueued)
	}

	for _, status := range []string{StatusProcessing, StatusCutout, StatusExported, StatusDownloaded} {
		if err := c.SetStatus("intro", status); err != nil {
			t.Fatalf("SetStatus(%s) failed: %v", status, err)
		}
		if got := readMarker(t, markers, "intro"); got != status {
			t.Errorf("marker=%s, want %s", got, status)
		}
	}

	entry, err := c.Get("intro")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != StatusDownloaded {
		t.Errorf("status=%s, want %s", entry.Status, StatusDownloaded)
	}
}

func TestSetFailedRecordsReason(t *testing.T) {
	c, markers := newTestCatalog(t)

	if err := c.Add("broken", "videos/broken.mp4", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.SetFailed("broken", "upload overlay never cleared"); err != nil {
		t.Fatalf("SetFailed failed: %v", err)
	}

	entry, err := c.Get("broken")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != StatusFailed {
		t.Errorf("status=%s, want %s", entry.Status, StatusFailed)
	}
	if entry.Error != "upload overlay never cleared" {
		t.Errorf("error=%q, want the failure reason", entry.Error)
	}
	if got := readMarker(t, markers, "broken"); got != StatusFailed {
		t.Errorf("marker=%s, want %s", got, StatusFailed)
	}
}

func TestReAddRequeues(t *testing.T) {
	c, _ := newTestCatalog(t)

	if err := c.Add("retry", "videos/retry.mp4", ""); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.SetFailed("retry", "boom"); err != nil {
		t.Fatalf("SetFailed failed: %v", err)
	}
	if err := c.Add("retry", "videos/retry.mp4", ""); err != nil {
		t.Fatalf("re-Add failed: %v", err)
	}

	entry, err := c.Get("retry")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != StatusQueued || entry.Error != "" {
		t.Errorf("expected a clean re-queue, got status=%s error=%q", entry.Status, entry.Error)
	}

	if got := len(c.List()); got != 1 {
		t.Errorf("expected upsert to keep a single entry, got %d", got)
	}
}

func TestUnknownName(t *testing.T) {
	c, _ := newTestCatalog(t)

	if err := c.SetStatus("ghost", StatusProcessing); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := c.Get("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "videos.json")

	c, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Add("keep", "videos/keep.mp4", "https://youtu.be/x"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := c.SetStatus("keep", StatusExported); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	reopened, err := Open(path, "")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}

	if diff := cmp.Diff(c.List(), reopened.List()); diff != "" {
		t.Errorf("persisted state mismatch (-want +got):\n%s", diff)
	}
}
