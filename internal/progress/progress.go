// Package progress fans pipeline milestones out to observers. The driver
// publishes plain human-readable strings; the hub stamps them and pushes them
// to every connected WebSocket client.
package progress

import (
	"fmt"
	"io"
	"time"
)

// Event is one progress milestone. Events carry no job identity; with a
// single browser session the stream is effectively serialized per job.
type Event struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Sink receives progress milestones.
type Sink interface {
	Publish(message string)
}

// WriterSink prints milestones to an io.Writer, used by the CLI runner.
type WriterSink struct {
	W io.Writer
}

// Publish writes one timestamped line.
func (s WriterSink) Publish(message string) {
	fmt.Fprintf(s.W, "[%s] %s\n", time.Now().Format("15:04:05"), message)
}

// NopSink discards milestones.
type NopSink struct{}

// Publish does nothing.
func (NopSink) Publish(string) {}
