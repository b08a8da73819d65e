package locate

import (
	"time"

	"github.com/go-rod/rod/lib/input"
)

// DefaultResolver builds the strategy table for the editor UI. Each action
// tries its CSS selectors first, then a keyword scan over visible controls,
// and for actions the editor also binds to a shortcut, a keyboard fallback.
func DefaultResolver(selectorTimeout time.Duration) *Resolver {
	r := NewResolver()

	r.Register(ActionUploadInput,
		CSS{
			Label: "file input",
			Selectors: []string{
				"input[type='file']",
			},
			Timeout:     selectorTimeout,
			AllowHidden: true,
		},
	)

	r.Register(ActionMediaTile,
		CSS{
			Label: "media tile",
			Selectors: []string{
				"[data-testid='media-item']",
				"[class*='media-item']",
				"[class*='material-item']",
				"[class*='upload-item']",
				"[class*='media-card']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "media tile text", Keywords: []string{".mp4", ".mov", ".webm"}},
	)

	r.Register(ActionProjectName,
		CSS{
			Label: "project name",
			Selectors: []string{
				"[data-testid='project-name']",
				"input[class*='project-name']",
				"[class*='project-name'] input",
				"[class*='title-input']",
				"[contenteditable='true'][class*='title']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "project name text", Keywords: []string{"untitled"}},
	)

	r.Register(ActionTimeline,
		CSS{
			Label: "timeline",
			Selectors: []string{
				"[data-testid='timeline']",
				"[class*='timeline-container']",
				"[class*='track-container']",
				"[class*='timeline']",
			},
			Timeout: selectorTimeout,
		},
	)

	r.Register(ActionZoomIn,
		CSS{
			Label: "zoom in",
			Selectors: []string{
				"[data-testid='zoom-in']",
				"button[aria-label*='zoom in' i]",
				"[class*='zoom-in']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "zoom in text", Keywords: []string{"zoom in"}},
	)

	r.Register(ActionZoomOut,
		CSS{
			Label: "zoom out",
			Selectors: []string{
				"[data-testid='zoom-out']",
				"button[aria-label*='zoom out' i]",
				"[class*='zoom-out']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "zoom out text", Keywords: []string{"zoom out"}},
	)

	r.Register(ActionPlayheadHome,
		CSS{
			Label: "playhead home",
			Selectors: []string{
				"[data-testid='seek-start']",
				"button[aria-label*='beginning' i]",
				"button[aria-label*='start' i][class*='player']",
			},
			Timeout: selectorTimeout,
		},
		Keys{Label: "home key", Seq: []input.Key{input.Home}},
	)

	r.Register(ActionSplit,
		CSS{
			Label: "split",
			Selectors: []string{
				"[data-testid='split']",
				"button[aria-label*='split' i]",
				"[class*='toolbar'] [class*='split']",
				"[class*='split-btn']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "split text", Keywords: []string{"split"}},
		Keys{Label: "split shortcut", Seq: []input.Key{input.Key('s')}},
	)

	r.Register(ActionDelete,
		CSS{
			Label: "delete",
			Selectors: []string{
				"[data-testid='delete']",
				"button[aria-label*='delete' i]",
				"[class*='toolbar'] [class*='delete']",
				"[class*='delete-btn']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "delete text", Keywords: []string{"delete"}},
		Keys{Label: "delete key", Seq: []input.Key{input.Delete}},
	)

	r.Register(ActionCutoutPanel,
		CSS{
			Label: "cutout panel",
			Selectors: []string{
				"[data-testid='cutout']",
				"[class*='cutout-entry']",
				"[class*='menu'] [class*='cutout']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "cutout panel text", Keywords: []string{"cutout", "remove background"}},
	)

	r.Register(ActionCutoutSwitch,
		CSS{
			Label: "cutout switch",
			Selectors: []string{
				"[data-testid='auto-cutout-switch']",
				"[class*='cutout'] [role='switch']",
				"[class*='cutout'] input[type='checkbox']",
			},
			Timeout: selectorTimeout,
		},
		ToggleNearText{Label: "cutout toggle near text", Keywords: []string{"auto cutout", "remove background"}},
	)

	r.Register(ActionExport,
		CSS{
			Label: "export",
			Selectors: []string{
				"[data-testid='export']",
				"button[aria-label*='export' i]",
				"[class*='export-btn']",
				"[class*='header'] [class*='export']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "export text", Keywords: []string{"export"}},
	)

	r.Register(ActionExportConfirm,
		CSS{
			Label: "export confirm",
			Selectors: []string{
				"[data-testid='export-confirm']",
				"[class*='modal'] button[class*='primary']",
				"[class*='dialog'] button[class*='confirm']",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "export confirm text", Keywords: []string{"export", "confirm"}},
		Keys{Label: "confirm enter", Seq: []input.Key{input.Enter}},
	)

	r.Register(ActionDownload,
		CSS{
			Label: "download",
			Selectors: []string{
				"[data-testid='download']",
				"button[aria-label*='download' i]",
				"[class*='download-btn']",
				"a[download]",
			},
			Timeout: selectorTimeout,
		},
		Text{Label: "download text", Keywords: []string{"download"}},
	)

	return r
}
