package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"clipbot/internal/locate"
	"clipbot/internal/logging"
	"clipbot/internal/progress"
)

// rightSegmentInset is how far left of the timeline's right edge the click
// lands when selecting the segment a split just created.
const rightSegmentInset = 16

// track2Gap is the vertical gap left between tracks when lifting the clip
// onto the second track.
const track2Gap = 8

// clipSelectors locate a clip body on the timeline. Class names on the
// remote UI are generated, so these go wide and the first hit wins.
var clipSelectors = []string{
	"[data-testid='timeline-clip']",
	"[class*='timeline'] [class*='clip']",
	"[class*='track'] [class*='segment']",
	"[class*='track'] [class*='clip']",
}

// exportNameInputs cover the filename field of the export dialog.
const exportNameInputs = "[class*='export'] input, [class*='modal'] input, [class*='dialog'] input"

// tileOverlayGone runs on the media tile and reports whether its own
// processing overlay has detached or collapsed to zero area. The overlay is
// scoped to the tile: a global spinner elsewhere must not end this wait.
const tileOverlayGone = `() => {
	const overlay = this.querySelector("[class*='processing'], [class*='progress'], [class*='loading'], [class*='uploading'], [class*='mask']");
	if (!overlay) return true;
	const rect = overlay.getBoundingClientRect();
	return rect.width === 0 || rect.height === 0;
}`

// switchChecked reads the cutout toggle's on state across the attribute
// spellings the remote UI has used.
const switchChecked = `() => {
	if (this.checked === true) return true;
	if (this.getAttribute('aria-checked') === 'true') return true;
	const cls = this.className;
	return typeof cls === 'string' && cls.includes('checked');
}`

// hasVisibleLoadingIndicator reports whether any loading element is actually
// rendered on the page.
const hasVisibleLoadingIndicator = `() => {
	const nodes = document.querySelectorAll("[class*='loading'], [class*='spinner'], [class*='generating']");
	for (const el of nodes) {
		const rect = el.getBoundingClientRect();
		if (rect.width > 0 && rect.height > 0) return true;
	}
	return false;
}`

// WorkflowParams wires one job's workflow run.
type WorkflowParams struct {
	Page     *rod.Page
	Resolver *locate.Resolver
	Clock    Clock
	Timings  Timings
	Sink     progress.Sink

	PixelsPerSecond float64
	TargetSeconds   float64

	VideoPath   string
	ProjectName string
	DownloadDir string

	// OnStage is called after each stage completes; the driver hooks
	// catalog milestones here. May be nil.
	OnStage func(Stage)
}

// Workflow drives one video through the editor page, stage by stage.
type Workflow struct {
	page     *rod.Page
	resolver *locate.Resolver
	clock    Clock
	t        Timings
	sink     progress.Sink

	pxPerSec      float64
	targetSeconds float64

	videoPath   string
	projectName string
	downloadDir string
	onStage     func(Stage)

	// learned as stages progress
	exportName string
	outputPath string
	watcher    *DownloadWatcher
}

// NewWorkflow builds a workflow for one job.
func NewWorkflow(p WorkflowParams) *Workflow {
	clock := p.Clock
	if clock == nil {
		clock = SystemClock()
	}
	sink := p.Sink
	if sink == nil {
		sink = progress.NopSink{}
	}
	return &Workflow{
		page:          p.Page,
		resolver:      p.Resolver,
		clock:         clock,
		t:             p.Timings,
		sink:          sink,
		pxPerSec:      p.PixelsPerSecond,
		targetSeconds: p.TargetSeconds,
		videoPath:     p.VideoPath,
		projectName:   p.ProjectName,
		downloadDir:   p.DownloadDir,
		onStage:       p.OnStage,
	}
}

// Run executes every stage in order and returns the downloaded file's path.
// A failure is always a *StageError naming where the pipeline died.
func (w *Workflow) Run(ctx context.Context) (string, error) {
	defer func() {
		if w.watcher != nil {
			w.watcher.Close()
		}
	}()

	steps := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageUploading, w.upload},
		{StageWaitUploadTranscode, w.waitUploadTranscode},
		{StagePlacedOnTimeline, w.placeOnTimeline},
		{StageProjectRenamed, w.renameProject},
		{StageZoomedIn, w.zoomIn},
		{StagePositionedOnTrack2, w.positionOnTrack2},
		{StagePlayheadReset, w.resetPlayhead},
		{StageZoomedOut, w.zoomOut},
		{StageDurationTrimmed, w.trimToTarget},
		{StageSplit, w.split},
		{StageRightSegmentSelected, w.selectRightSegment},
		{StageRightSegmentDeleted, w.deleteRightSegment},
		{StageRegionSelected, w.selectRegion},
		{StageCutoutInvoked, w.openCutoutPanel},
		{StageCutoutEnabled, w.enableCutout},
		{StageWaitCutoutComplete, w.waitCutoutComplete},
		{StageExportInvoked, w.invokeExport},
		{StageDownloadInvoked, w.invokeDownload},
		{StageExportConfirmed, w.confirmExport},
		{StageWaitDownloadReady, w.waitDownloadReady},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return "", &StageError{Stage: step.stage, Err: err}
		}
		started := w.clock.Now()
		w.sink.Publish(fmt.Sprintf("%s started", step.stage))
		logging.Workflow("%s: %s started", w.projectName, step.stage)

		if err := step.fn(ctx); err != nil {
			logging.WorkflowError("%s: %s failed: %v", w.projectName, step.stage, err)
			return "", &StageError{Stage: step.stage, Err: err}
		}

		elapsed := w.clock.Now().Sub(started)
		w.sink.Publish(fmt.Sprintf("%s done in %s", step.stage, elapsed.Round(100*time.Millisecond)))
		logging.Workflow("%s: %s done in %s", w.projectName, step.stage, elapsed)
		if w.onStage != nil {
			w.onStage(step.stage)
		}
	}
	return w.outputPath, nil
}

func (w *Workflow) resolve(ctx context.Context, action locate.Action) (*locate.Target, error) {
	return w.resolver.Resolve(ctx, w.page, action)
}

func (w *Workflow) act(ctx context.Context, action locate.Action) error {
	target, err := w.resolve(ctx, action)
	if err != nil {
		return err
	}
	return target.Act(w.page)
}

func (w *Workflow) upload(ctx context.Context) error {
	target, err := w.resolve(ctx, locate.ActionUploadInput)
	if err != nil {
		return err
	}
	if target.El == nil {
		return fmt.Errorf("upload input resolved without an element")
	}
	if err := target.El.SetFiles([]string{w.videoPath}); err != nil {
		return fmt.Errorf("set upload file: %w", err)
	}
	return nil
}

// waitUploadTranscode re-locates the media tile on every poll because the
// panel re-renders while the remote transcodes, then checks the tile's own
// overlay. Misses keep the poll alive; only the bound ends it.
func (w *Workflow) waitUploadTranscode(ctx context.Context) error {
	return pollUntil(ctx, w.clock, w.t.UploadPoll, w.t.UploadTimeout, "upload transcode", func() (bool, error) {
		tile, err := w.resolve(ctx, locate.ActionMediaTile)
		if err != nil || tile.El == nil {
			return false, nil
		}
		res, err := tile.El.Eval(tileOverlayGone)
		if err != nil {
			logging.DetectDebug("tile overlay check: %v", err)
			return false, nil
		}
		return res.Value.Bool(), nil
	})
}

func (w *Workflow) placeOnTimeline(ctx context.Context) error {
	if err := w.act(ctx, locate.ActionMediaTile); err != nil {
		return err
	}
	clipQuery := strings.Join(clipSelectors, ", ")
	return pollUntil(ctx, w.clock, time.Second, w.t.RenderWait, "clip on timeline", func() (bool, error) {
		has, _, err := w.page.Has(clipQuery)
		if err != nil {
			return false, nil
		}
		return has, nil
	})
}

func (w *Workflow) renameProject(ctx context.Context) error {
	target, err := w.resolve(ctx, locate.ActionProjectName)
	if err != nil {
		return err
	}
	if target.El == nil {
		return fmt.Errorf("project name resolved without an element")
	}
	if err := target.Act(w.page); err != nil {
		return err
	}
	if err := target.El.SelectAllText(); err != nil {
		return fmt.Errorf("select project name: %w", err)
	}
	if err := target.El.Input(w.projectName); err != nil {
		return fmt.Errorf("type project name: %w", err)
	}
	return w.page.Keyboard.Press(input.Enter)
}

func (w *Workflow) zoomIn(ctx context.Context) error {
	return w.act(ctx, locate.ActionZoomIn)
}

// positionOnTrack2 lifts the clip one track up so the cutout result renders
// above the base track.
func (w *Workflow) positionOnTrack2(ctx context.Context) error {
	box, _, err := w.clipBox(ctx)
	if err != nil {
		return err
	}
	from := proto.Point{X: box.CenterX(), Y: box.CenterY()}
	lift := box.Height + track2Gap
	return w.drag(from, 0, -lift, int(lift/dragStepPx)+1)
}

func (w *Workflow) resetPlayhead(ctx context.Context) error {
	return w.act(ctx, locate.ActionPlayheadHome)
}

func (w *Workflow) zoomOut(ctx context.Context) error {
	return w.act(ctx, locate.ActionZoomOut)
}

// trimToTarget discovers the clip's right resize handle by cursor scan and,
// when the clip is short of the target width, drags the handle out to it.
// A clip already at or past target length is left alone; the split stage
// discards the excess.
func (w *Workflow) trimToTarget(ctx context.Context) error {
	box, _, err := w.clipBox(ctx)
	if err != nil {
		return err
	}

	stepY := box.Height / 4
	if stepY < 2 {
		stepY = 2
	}
	region := locate.Region{
		X0:    box.Right() - 30,
		X1:    box.Right() + 10,
		Y0:    box.Y + 2,
		Y1:    box.Y + box.Height - 2,
		StepX: 2,
		StepY: stepY,
	}
	hit, err := locate.ScanForHandle(ctx, w.page, region, w.t.CursorProbeGap)
	if err != nil {
		return fmt.Errorf("resize handle: %w", err)
	}

	currentWidth := hit.EdgeX - box.X
	plan := PlanTrim(currentWidth, w.pxPerSec, w.targetSeconds)
	logging.Workflow("%s: trim plan current=%.0fpx target=%.0fpx drag=%.0fpx",
		w.projectName, plan.CurrentWidth, plan.TargetWidth, plan.DragDistance)
	if !plan.NeedsDrag() {
		return nil
	}
	return w.drag(hit.Point, plan.DragDistance, 0, plan.Steps)
}

// split parks the playhead at the target-duration pixel inside the clip and
// invokes the split action.
func (w *Workflow) split(ctx context.Context) error {
	box, _, err := w.clipBox(ctx)
	if err != nil {
		return err
	}
	splitX := box.X + w.pxPerSec*w.targetSeconds
	if err := w.clickAt(proto.Point{X: splitX, Y: box.CenterY()}); err != nil {
		return fmt.Errorf("park playhead: %w", err)
	}
	return w.act(ctx, locate.ActionSplit)
}

// selectRightSegment clicks near the timeline's right edge. A split yields
// exactly two segments with the new one on the right, so that click can only
// land on it.
func (w *Workflow) selectRightSegment(ctx context.Context) error {
	timeline, err := w.resolve(ctx, locate.ActionTimeline)
	if err != nil {
		return err
	}
	if timeline.El == nil {
		return fmt.Errorf("timeline resolved without an element")
	}
	tlBox, err := locate.ElementBox(timeline.El)
	if err != nil {
		return err
	}
	clip, _, err := w.clipBox(ctx)
	if err != nil {
		return err
	}
	return w.clickAt(proto.Point{X: tlBox.Right() - rightSegmentInset, Y: clip.CenterY()})
}

func (w *Workflow) deleteRightSegment(ctx context.Context) error {
	return w.act(ctx, locate.ActionDelete)
}

func (w *Workflow) selectRegion(ctx context.Context) error {
	box, _, err := w.clipBox(ctx)
	if err != nil {
		return err
	}
	return w.clickAt(proto.Point{X: box.CenterX(), Y: box.CenterY()})
}

func (w *Workflow) openCutoutPanel(ctx context.Context) error {
	return w.act(ctx, locate.ActionCutoutPanel)
}

func (w *Workflow) enableCutout(ctx context.Context) error {
	return w.act(ctx, locate.ActionCutoutSwitch)
}

// waitCutoutComplete waits for the toggle to report checked while no loading
// indicator is rendered. Coarse polling; the remote is doing real work.
func (w *Workflow) waitCutoutComplete(ctx context.Context) error {
	return pollUntil(ctx, w.clock, w.t.CutoutPoll, w.t.CutoutTimeout, "cutout", func() (bool, error) {
		sw, err := w.resolve(ctx, locate.ActionCutoutSwitch)
		if err != nil || sw.El == nil {
			return false, nil
		}
		res, err := sw.El.Eval(switchChecked)
		if err != nil || !res.Value.Bool() {
			return false, nil
		}
		loading, err := w.page.Eval(hasVisibleLoadingIndicator)
		if err != nil {
			return false, nil
		}
		return !loading.Value.Bool(), nil
	})
}

func (w *Workflow) invokeExport(ctx context.Context) error {
	if err := w.act(ctx, locate.ActionExport); err != nil {
		return err
	}
	// The dialog's filename field is the most precise source for the
	// eventual download name; grab it while the dialog is up. Absence is
	// fine, later sources cover it.
	_ = pollUntil(ctx, w.clock, 500*time.Millisecond, 2*w.t.SelectorTimeout, "export dialog", func() (bool, error) {
		if name := w.probeExportName(); name != "" {
			w.exportName = name
			return true, nil
		}
		return false, nil
	})
	if w.exportName != "" {
		logging.Detect("export dialog names the file %q", w.exportName)
	}
	return nil
}

func (w *Workflow) invokeDownload(ctx context.Context) error {
	target, err := w.resolve(ctx, locate.ActionDownload)
	if err != nil {
		return err
	}
	if w.exportName == "" {
		if name := downloadLinkName(target.El); name != "" {
			w.exportName = name
			logging.Detect("download link names the file %q", w.exportName)
		}
	}
	return target.Act(w.page)
}

// confirmExport snapshots the download directory first so the baseline
// predates the file the confirm click triggers.
func (w *Workflow) confirmExport(ctx context.Context) error {
	watcher, err := NewDownloadWatcher(w.downloadDir, w.clock)
	if err != nil {
		return err
	}
	w.watcher = watcher
	return w.act(ctx, locate.ActionExportConfirm)
}

// waitDownloadReady resolves the output file. Known names come from the
// export dialog or the download link; failing those, the directory diff
// decides, matching on normalized names. With no name ever learned, the
// first stable new file wins.
func (w *Workflow) waitDownloadReady(ctx context.Context) error {
	if w.watcher == nil {
		watcher, err := NewDownloadWatcher(w.downloadDir, w.clock)
		if err != nil {
			return err
		}
		w.watcher = watcher
	}

	expected := w.exportName
	if expected == "" {
		expected = w.projectName
	}

	deadline := w.clock.Now().Add(w.t.DownloadTimeout)
	nameDeadline := w.clock.Now().Add(w.t.ExportTimeout)
	lastProbe := w.clock.Now()

	for {
		if w.exportName == "" && w.clock.Now().Before(nameDeadline) &&
			w.clock.Now().Sub(lastProbe) >= w.t.RenderWait {
			lastProbe = w.clock.Now()
			if name := w.probeExportName(); name != "" {
				w.exportName = name
				expected = name
				logging.Detect("late export dialog names the file %q", name)
			}
		}

		found, ok, err := w.watcher.Scan(expected)
		if err != nil {
			return err
		}
		if ok {
			w.outputPath = found
			logging.Detect("download landed at %s", found)
			return nil
		}

		if !w.clock.Now().Before(deadline) {
			return fmt.Errorf("%w: nothing stable in %s within %s",
				ErrDownloadNotFound, w.downloadDir, w.t.DownloadTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.clock.After(w.t.DownloadPoll):
		case ev := <-w.watcher.Events():
			logging.DetectDebug("download dir event: %s", ev)
		}
	}
}

// clipBox measures the first clip on the timeline.
func (w *Workflow) clipBox(ctx context.Context) (locate.Box, *rod.Element, error) {
	css := locate.CSS{Label: "timeline clip", Selectors: clipSelectors, Timeout: w.t.SelectorTimeout}
	target, err := css.Find(ctx, w.page)
	if err != nil {
		return locate.Box{}, nil, fmt.Errorf("timeline clip: %w", err)
	}
	box, err := locate.ElementBox(target.El)
	if err != nil {
		return locate.Box{}, nil, err
	}
	return box, target.El, nil
}

func (w *Workflow) clickAt(p proto.Point) error {
	if err := w.page.Mouse.MoveTo(p); err != nil {
		return err
	}
	return w.page.Mouse.Click(proto.InputMouseButtonLeft, 1)
}

// drag presses at from and walks the pointer to the offset through discrete
// steps before releasing, so drag recognition sees motion rather than a
// teleport.
func (w *Workflow) drag(from proto.Point, dx, dy float64, steps int) error {
	if steps < 1 {
		steps = 1
	}
	mouse := w.page.Mouse
	if err := mouse.MoveTo(from); err != nil {
		return err
	}
	if err := mouse.Down(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	to := proto.Point{X: from.X + dx, Y: from.Y + dy}
	if err := mouse.MoveLinear(to, steps); err != nil {
		_ = mouse.Up(proto.InputMouseButtonLeft, 1)
		return fmt.Errorf("drag move: %w", err)
	}
	return mouse.Up(proto.InputMouseButtonLeft, 1)
}

func (w *Workflow) probeExportName() string {
	has, el, err := w.page.Has(exportNameInputs)
	if err != nil || !has || el == nil {
		return ""
	}
	res, err := el.Eval(`() => this.value || ''`)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(res.Value.Str())
}

// downloadLinkName extracts a filename hint from a download control.
func downloadLinkName(el *rod.Element) string {
	if el == nil {
		return ""
	}
	if v, err := el.Attribute("download"); err == nil && v != nil && strings.TrimSpace(*v) != "" {
		return strings.TrimSpace(*v)
	}
	if v, err := el.Attribute("href"); err == nil && v != nil {
		base := path.Base(strings.TrimSpace(*v))
		if base != "" && base != "." && base != "/" && path.Ext(base) != "" {
			return base
		}
	}
	if txt, err := el.Text(); err == nil {
		txt = strings.TrimSpace(txt)
		if txt != "" && len(txt) <= 80 && path.Ext(txt) != "" {
			return txt
		}
	}
	return ""
}
