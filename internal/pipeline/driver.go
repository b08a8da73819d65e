// Package pipeline drives one video through the remote editor: upload,
// timeline arrangement, trim and split to the target duration, background
// cutout, export, and download. The driver leases an editor for the whole
// run and gives it back on every exit path.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/google/uuid"

	"clipbot/internal/catalog"
	"clipbot/internal/config"
	"clipbot/internal/locate"
	"clipbot/internal/logging"
	"clipbot/internal/progress"
	"clipbot/internal/registry"
)

// Sessions is the slice of the browser manager the driver needs. Tests
// substitute a fake so no browser is involved.
type Sessions interface {
	OpenPage(ctx context.Context, url, downloadDir string) (*rod.Page, error)
	ClosePage(page *rod.Page)
	Screenshot(page *rod.Page, path string) error
}

// Request names one job.
type Request struct {
	// Name is the catalog entry; defaults to the video's base name.
	Name      string
	VideoPath string

	// JobID lets callers that respond before the run finishes hand out the
	// id up front. Empty means the driver mints one.
	JobID string
}

// Result reports a finished job.
type Result struct {
	JobID   string
	Editor  string
	Output  string
	Elapsed time.Duration
}

// Driver runs jobs end to end.
type Driver struct {
	cfg      *config.Config
	reg      *registry.Registry
	cat      *catalog.Catalog
	sessions Sessions
	sink     progress.Sink
	resolver *locate.Resolver
	clock    Clock

	// runWorkflow is the browser conversation; tests stub it out.
	runWorkflow func(ctx context.Context, page *rod.Page, req Request, downloadDir string, onStage func(Stage)) (string, error)
}

// NewDriver wires a driver against live collaborators.
func NewDriver(cfg *config.Config, reg *registry.Registry, cat *catalog.Catalog, sessions Sessions, sink progress.Sink) *Driver {
	if sink == nil {
		sink = progress.NopSink{}
	}
	d := &Driver{
		cfg:      cfg,
		reg:      reg,
		cat:      cat,
		sessions: sessions,
		sink:     sink,
		resolver: locate.DefaultResolver(cfg.GetSelectorTimeout()),
		clock:    SystemClock(),
	}
	d.runWorkflow = d.defaultWorkflow
	return d
}

func (d *Driver) defaultWorkflow(ctx context.Context, page *rod.Page, req Request, downloadDir string, onStage func(Stage)) (string, error) {
	w := NewWorkflow(WorkflowParams{
		Page:            page,
		Resolver:        d.resolver,
		Clock:           d.clock,
		Timings:         TimingsFromConfig(d.cfg),
		Sink:            d.sink,
		PixelsPerSecond: d.cfg.Workflow.PixelsPerSecond,
		TargetSeconds:   d.cfg.Workflow.TargetSeconds,
		VideoPath:       req.VideoPath,
		ProjectName:     projectName(req),
		DownloadDir:     downloadDir,
		OnStage:         onStage,
	})
	return w.Run(ctx)
}

// Run executes one job. The editor lease is taken before any browser work
// and released on every exit path; failures leave a screenshot in the debug
// dir and a stage-classified status in the catalog.
func (d *Driver) Run(ctx context.Context, req Request) (*Result, error) {
	started := d.clock.Now()
	if req.Name == "" {
		req.Name = filepath.Base(req.VideoPath)
	}

	if _, err := os.Stat(req.VideoPath); err != nil {
		wrapped := fmt.Errorf("%w: %s", ErrVideoFileNotFound, req.VideoPath)
		d.markFailed(req.Name, StageIdle, wrapped)
		return nil, wrapped
	}

	editor, err := d.reg.Acquire()
	if err != nil {
		return nil, err
	}
	jobID := req.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	logging.Workflow("job %s: leased %s for %s", jobID, editor.URL, req.Name)
	d.sink.Publish(fmt.Sprintf("job admitted on %s", editor.URL))

	var page *rod.Page
	defer func() {
		if page != nil {
			d.sessions.ClosePage(page)
		}
		if err := d.reg.Release(editor.URL); err != nil {
			logging.WorkflowError("job %s: release %s: %v", jobID, editor.URL, err)
		}
	}()

	downloadDir := filepath.Join(d.cfg.Paths.DownloadsDir, jobID)
	if err := os.MkdirAll(downloadDir, 0755); err != nil {
		wrapped := fmt.Errorf("create download dir: %w", err)
		d.markFailed(req.Name, StageIdle, wrapped)
		return nil, wrapped
	}

	if err := d.cat.SetStatus(req.Name, catalog.StatusProcessing); err != nil {
		logging.WorkflowWarn("job %s: catalog: %v", jobID, err)
	}

	page, err = d.sessions.OpenPage(ctx, editor.URL, downloadDir)
	if err != nil {
		d.markFailed(req.Name, StageIdle, err)
		d.sink.Publish(fmt.Sprintf("job failed: %v", err))
		return nil, err
	}

	onStage := func(stage Stage) {
		switch stage {
		case StageWaitCutoutComplete:
			if err := d.cat.SetStatus(req.Name, catalog.StatusCutout); err != nil {
				logging.WorkflowWarn("job %s: catalog: %v", jobID, err)
			}
		case StageExportConfirmed:
			if err := d.cat.SetStatus(req.Name, catalog.StatusExported); err != nil {
				logging.WorkflowWarn("job %s: catalog: %v", jobID, err)
			}
		}
	}

	output, err := d.runWorkflow(ctx, page, req, downloadDir, onStage)
	if err != nil {
		stage := StageIdle
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		d.snapshot(jobID, page)
		d.markFailed(req.Name, stage, err)
		d.sink.Publish(fmt.Sprintf("job failed at %s: %v", stage, err))
		return nil, err
	}

	if err := d.cat.SetOutput(req.Name, output); err != nil {
		logging.WorkflowWarn("job %s: catalog: %v", jobID, err)
	}
	if err := d.cat.SetStatus(req.Name, catalog.StatusDownloaded); err != nil {
		logging.WorkflowWarn("job %s: catalog: %v", jobID, err)
	}

	elapsed := d.clock.Now().Sub(started)
	d.sink.Publish(fmt.Sprintf("job done in %s: %s", elapsed.Round(time.Second), filepath.Base(output)))
	logging.Workflow("job %s: done in %s, output %s", jobID, elapsed, output)
	return &Result{JobID: jobID, Editor: editor.URL, Output: output, Elapsed: elapsed}, nil
}

// snapshot renders a failure screenshot into the debug dir, best effort.
func (d *Driver) snapshot(jobID string, page *rod.Page) {
	if page == nil {
		return
	}
	shot := filepath.Join(d.cfg.Paths.DebugDir, jobID+".png")
	if err := d.sessions.Screenshot(page, shot); err != nil {
		logging.WorkflowWarn("job %s: screenshot: %v", jobID, err)
		return
	}
	logging.Workflow("job %s: failure screenshot at %s", jobID, shot)
}

// markFailed classifies the failure by stage position and records it. A job
// missing from the catalog (direct CLI runs) is not an error here.
func (d *Driver) markFailed(name string, stage Stage, cause error) {
	err := d.cat.SetFailure(name, FailureStatus(stage), cause.Error())
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		logging.WorkflowError("catalog failure for %s: %v", name, err)
	}
}

// projectName is the title typed into the editor, which in turn becomes the
// export's default filename.
func projectName(req Request) string {
	base := filepath.Base(req.VideoPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if name == "" {
		return req.Name
	}
	return name
}
