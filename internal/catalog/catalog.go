// Package catalog records every video the pipeline has seen and where it got
// to. The catalog itself is one JSON file; each entry additionally mirrors its
// current status into a small marker file so shell tooling can poll a single
// path instead of parsing JSON.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"clipbot/internal/logging"
	"clipbot/internal/statefile"
)

// Entry statuses, in the order the pipeline reaches them.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCutout     = "cutout_applied"
	StatusExported   = "exported"
	StatusDownloaded = "downloaded"
	StatusFailed     = "failed"
)

// ErrNotFound means the named video is not in the catalog.
var ErrNotFound = errors.New("video not in catalog")

// Entry is one tracked video.
type Entry struct {
	Name      string    `json:"name"`
	File      string    `json:"file"`
	Source    string    `json:"source,omitempty"` // origin URL when fetched
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Output    string    `json:"output,omitempty"` // exported clip path
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Catalog is the JSON-backed video index.
type Catalog struct {
	mu         sync.Mutex
	path       string
	markersDir string
	entries    []Entry // insertion order
}

// Open loads the catalog from path, or starts empty when the file is absent.
// markersDir may be empty to disable marker files.
func Open(path, markersDir string) (*Catalog, error) {
	c := &Catalog{path: path, markersDir: markersDir}

	var entries []Entry
	if err := statefile.ReadJSON(path, &entries); err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	c.entries = entries

	return c, nil
}

// Add upserts an entry in queued state. Re-adding a known name re-queues it
// and clears any previous error.
func (c *Catalog) Add(name, file, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	if i := c.indexLocked(name); i >= 0 {
		c.entries[i].File = file
		if source != "" {
			c.entries[i].Source = source
		}
		c.entries[i].Status = StatusQueued
		c.entries[i].Error = ""
		c.entries[i].Output = ""
		c.entries[i].UpdatedAt = now
	} else {
		c.entries = append(c.entries, Entry{
			Name:      name,
			File:      file,
			Source:    source,
			Status:    StatusQueued,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	logging.Catalog("queued %s (%s)", name, file)
	return c.persistLocked(name, StatusQueued)
}

// SetStatus moves the named entry to status.
func (c *Catalog) SetStatus(name, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	c.entries[i].Status = status
	c.entries[i].UpdatedAt = time.Now().UTC()

	logging.Catalog("%s -> %s", name, status)
	return c.persistLocked(name, status)
}

// SetFailed marks the entry failed with the given reason.
func (c *Catalog) SetFailed(name, reason string) error {
	return c.SetFailure(name, StatusFailed, reason)
}

// SetFailure records a failure reason while moving the entry to status.
// Jobs that die after remote work has already been applied keep their last
// milestone status instead of dropping to plain failed.
func (c *Catalog) SetFailure(name, status, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	c.entries[i].Status = status
	c.entries[i].Error = reason
	c.entries[i].UpdatedAt = time.Now().UTC()

	logging.CatalogError("%s failed (%s): %s", name, status, reason)
	return c.persistLocked(name, status)
}

// SetOutput records the exported clip path for the named entry.
func (c *Catalog) SetOutput(name, output string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	c.entries[i].Output = output
	c.entries[i].UpdatedAt = time.Now().UTC()

	return c.persistLocked(name, c.entries[i].Status)
}

// Get returns the entry for name.
func (c *Catalog) Get(name string) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(name)
	if i < 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return c.entries[i], nil
}

// List returns every entry in insertion order.
func (c *Catalog) List() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) indexLocked(name string) int {
	for i, e := range c.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

func (c *Catalog) persistLocked(name, status string) error {
	if c.path != "" {
		if err := statefile.WriteJSON(c.path, c.entries); err != nil {
			return fmt.Errorf("failed to persist catalog: %w", err)
		}
	}
	if c.markersDir != "" {
		marker := filepath.Join(c.markersDir, markerName(name))
		if err := statefile.WriteBytes(marker, []byte(status+"\n")); err != nil {
			return fmt.Errorf("failed to write status marker: %w", err)
		}
	}
	return nil
}

// markerName flattens a catalog name into a safe marker filename.
func markerName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", string(os.PathSeparator), "_")
	return r.Replace(name) + ".status"
}
