package pipeline

import (
	"context"
	"fmt"
	"time"

	"clipbot/internal/config"
)

// Clock abstracts time for the polling loops so tests can run the long
// detector bounds on virtual time.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock { return systemClock{} }

// Timings collects every stage-local {poll, bound} pair. Nothing here is a
// global deadline; a slow upload spends none of the export budget.
type Timings struct {
	SelectorTimeout time.Duration

	UploadPoll    time.Duration
	UploadTimeout time.Duration

	CutoutPoll    time.Duration
	CutoutTimeout time.Duration

	ExportTimeout   time.Duration
	DownloadPoll    time.Duration
	DownloadTimeout time.Duration

	RenderWait     time.Duration
	CursorProbeGap time.Duration
}

// TimingsFromConfig resolves the configured duration strings.
func TimingsFromConfig(cfg *config.Config) Timings {
	return Timings{
		SelectorTimeout: cfg.GetSelectorTimeout(),
		UploadPoll:      cfg.GetUploadPoll(),
		UploadTimeout:   cfg.GetUploadTimeout(),
		CutoutPoll:      cfg.GetCutoutPoll(),
		CutoutTimeout:   cfg.GetCutoutTimeout(),
		ExportTimeout:   cfg.GetExportTimeout(),
		DownloadPoll:    cfg.GetDownloadPoll(),
		DownloadTimeout: cfg.GetDownloadTimeout(),
		RenderWait:      cfg.GetRenderWait(),
		CursorProbeGap:  cfg.GetCursorProbeGap(),
	}
}

// pollUntil runs check every interval until it reports done, the bound
// elapses on the clock, or ctx dies. check errors are returned as-is.
func pollUntil(ctx context.Context, clock Clock, interval, bound time.Duration, what string, check func() (bool, error)) error {
	deadline := clock.Now().Add(bound)
	for {
		done, err := check()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !clock.Now().Before(deadline) {
			return fmt.Errorf("%w: %s not done within %s", ErrStageTimeout, what, bound)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(interval):
		}
	}
}
