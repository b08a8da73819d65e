// Package registry tracks the pool of editor workspaces. Each editor is a
// project URL that tolerates exactly one job at a time, so admission is a
// lease: a job takes the first available editor, runs, and gives it back.
// State lives in a JSON file that is rewritten on every transition.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"clipbot/internal/logging"
	"clipbot/internal/statefile"
)

// Editor statuses
const (
	StatusAvailable = "available"
	StatusInUse     = "in-use"
)

var (
	// ErrNoEditorAvailable means every editor in the pool is leased.
	ErrNoEditorAvailable = errors.New("no editor available")

	// ErrEditorBusy means the requested editor is already leased.
	ErrEditorBusy = errors.New("editor already in use")

	// ErrUnknownEditor means the URL is not in the pool.
	ErrUnknownEditor = errors.New("unknown editor")
)

// Editor is one workspace in the pool.
type Editor struct {
	URL    string `json:"url"`
	Status string `json:"status"`
}

// Registry is the single arbiter for editor leases. All transitions take the
// mutex, so two concurrent admissions can never lease the same editor.
type Registry struct {
	mu      sync.Mutex
	path    string
	editors []Editor // registration order
}

// Open loads the registry from path, or starts empty when the file is absent.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path}

	var editors []Editor
	if err := statefile.ReadJSON(path, &editors); err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("failed to load editor registry: %w", err)
	}
	r.editors = editors

	return r, nil
}

// Seed adds any URLs not already registered, keeping existing statuses.
func (r *Registry) Seed(urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, url := range urls {
		if url == "" || r.indexLocked(url) >= 0 {
			continue
		}
		r.editors = append(r.editors, Editor{URL: url, Status: StatusAvailable})
		added++
	}
	if added == 0 {
		return nil
	}

	logging.Registry("seeded %d editor(s), pool size %d", added, len(r.editors))
	return r.persistLocked()
}

// Add registers a single editor URL.
func (r *Registry) Add(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(url) >= 0 {
		return fmt.Errorf("editor %s already registered", url)
	}
	r.editors = append(r.editors, Editor{URL: url, Status: StatusAvailable})

	logging.Registry("registered editor %s", url)
	return r.persistLocked()
}

// List returns every editor in registration order.
func (r *Registry) List() []Editor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Editor, len(r.editors))
	copy(out, r.editors)
	return out
}

// ListAvailable returns the editors currently free, in registration order.
func (r *Registry) ListAvailable() []Editor {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Editor
	for _, e := range r.editors {
		if e.Status == StatusAvailable {
			out = append(out, e)
		}
	}
	return out
}

// AvailableCount returns how many editors are currently free.
func (r *Registry) AvailableCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, e := range r.editors {
		if e.Status == StatusAvailable {
			n++
		}
	}
	return n
}

// Lease marks the given editor in-use. Fails with ErrEditorBusy when it is
// already leased.
func (r *Registry) Lease(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaseLocked(url)
}

// Acquire leases the first available editor. The check and the transition
// happen under one lock so concurrent callers can never win the same editor.
func (r *Registry) Acquire() (Editor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.editors {
		if e.Status == StatusAvailable {
			if err := r.leaseLocked(e.URL); err != nil {
				return Editor{}, err
			}
			e.Status = StatusInUse
			return e, nil
		}
	}
	return Editor{}, ErrNoEditorAvailable
}

// Release marks the given editor available again. Releasing an editor that is
// already available is a no-op, so cleanup paths can call it unconditionally.
func (r *Registry) Release(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(url)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEditor, url)
	}
	if r.editors[i].Status == StatusAvailable {
		logging.RegistryDebug("release of %s ignored, already available", url)
		return nil
	}
	r.editors[i].Status = StatusAvailable

	logging.Registry("released editor %s", url)
	return r.persistLocked()
}

func (r *Registry) leaseLocked(url string) error {
	i := r.indexLocked(url)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEditor, url)
	}
	if r.editors[i].Status != StatusAvailable {
		return fmt.Errorf("%w: %s", ErrEditorBusy, url)
	}
	r.editors[i].Status = StatusInUse

	logging.Registry("leased editor %s", url)
	return r.persistLocked()
}

func (r *Registry) indexLocked(url string) int {
	for i, e := range r.editors {
		if e.URL == url {
			return i
		}
	}
	return -1
}

func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}
	if err := statefile.WriteJSON(r.path, r.editors); err != nil {
		return fmt.Errorf("failed to persist editor registry: %w", err)
	}
	return nil
}
