package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"clipbot/internal/logging"
)

// tempDownloadSuffixes are in-flight browser download artifacts; a file only
// counts once the browser has renamed it to its final name.
var tempDownloadSuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// DownloadWatcher notices new files in a job's download directory by diffing
// against a baseline snapshot taken before the export was confirmed. A file
// is done once its size has held still across enough spaced samples.
// fsnotify only wakes the caller's poll early; correctness comes from the
// polling itself.
type DownloadWatcher struct {
	dir      string
	clock    Clock
	baseline map[string]struct{}

	sizes   map[string]int64
	streaks map[string]int
	lastAt  map[string]time.Time

	// stableSamples and minSampleGap gate the stability decision; tests
	// shrink them.
	stableSamples int
	minSampleGap  time.Duration

	fsw *fsnotify.Watcher
}

// NewDownloadWatcher snapshots dir and starts watching it. Call before
// triggering the download so the baseline predates the new file.
func NewDownloadWatcher(dir string, clock Clock) (*DownloadWatcher, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot download dir: %w", err)
	}
	baseline := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		baseline[e.Name()] = struct{}{}
	}

	dw := &DownloadWatcher{
		dir:           dir,
		clock:         clock,
		baseline:      baseline,
		sizes:         make(map[string]int64),
		streaks:       make(map[string]int),
		lastAt:        make(map[string]time.Time),
		stableSamples: 3,
		minSampleGap:  500 * time.Millisecond,
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		logging.DetectDebug("fsnotify unavailable, polling only: %v", err)
		return dw, nil
	}
	if err := fsw.Add(dir); err != nil {
		logging.DetectDebug("fsnotify watch %s failed, polling only: %v", dir, err)
		fsw.Close()
		return dw, nil
	}
	dw.fsw = fsw
	return dw, nil
}

// Events exposes the filesystem event channel, nil when fsnotify is not
// active. Receiving from a nil channel blocks, which is exactly the
// polling-only behavior.
func (dw *DownloadWatcher) Events() <-chan fsnotify.Event {
	if dw.fsw == nil {
		return nil
	}
	return dw.fsw.Events
}

// Close releases the filesystem watch.
func (dw *DownloadWatcher) Close() error {
	if dw.fsw == nil {
		return nil
	}
	return dw.fsw.Close()
}

// Scan takes one sample of the directory and returns a finished new file
// matching expected. An empty expected accepts any new file. The bool
// reports whether a match was found.
func (dw *DownloadWatcher) Scan(expected string) (string, bool, error) {
	entries, err := os.ReadDir(dw.dir)
	if err != nil {
		return "", false, fmt.Errorf("scan download dir: %w", err)
	}
	now := dw.clock.Now()

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if _, old := dw.baseline[name]; old {
			continue
		}
		if isTempDownload(name) {
			continue
		}
		if expected != "" && !NameMatches(expected, name) {
			logging.DetectDebug("new file %s does not match %q", name, expected)
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}
		size := info.Size()

		prev, seen := dw.sizes[name]
		if !seen || size != prev {
			dw.sizes[name] = size
			dw.streaks[name] = 1
			dw.lastAt[name] = now
			continue
		}
		// Same size again. Only spaced samples count, or a burst of
		// fsnotify wakeups would declare a mid-write file stable.
		if now.Sub(dw.lastAt[name]) < dw.minSampleGap {
			continue
		}
		dw.streaks[name]++
		dw.lastAt[name] = now
		if dw.streaks[name] >= dw.stableSamples && size > 0 {
			return filepath.Join(dw.dir, name), true, nil
		}
	}
	return "", false, nil
}

func isTempDownload(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range tempDownloadSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
