// Package locate finds editor controls without trusting any single selector.
// Editor frontends ship obfuscated, rotating class names, so every logical
// action carries an ordered list of strategies: structural CSS first, then
// text scanning, then a keyboard shortcut where one exists. The resolver
// walks the list, logs every attempt, and only reports failure once the
// whole chain is exhausted.
package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"clipbot/internal/logging"
)

// ErrActionNotLocatable means every strategy for an action failed.
var ErrActionNotLocatable = errors.New("action not locatable")

// Action identifies a logical editor control.
type Action string

const (
	ActionUploadInput    Action = "upload_input"
	ActionMediaTile      Action = "media_tile"
	ActionProjectName    Action = "project_name"
	ActionTimeline       Action = "timeline"
	ActionZoomIn         Action = "zoom_in"
	ActionZoomOut        Action = "zoom_out"
	ActionPlayheadHome   Action = "playhead_home"
	ActionSplit          Action = "split"
	ActionDelete         Action = "delete"
	ActionCutoutPanel    Action = "cutout_panel"
	ActionCutoutSwitch   Action = "cutout_switch"
	ActionExport         Action = "export"
	ActionExportConfirm  Action = "export_confirm"
	ActionDownload       Action = "download"
)

// Target is a resolved control: either a live element or, for the terminal
// keyboard fallback, the keys that trigger the action without one.
type Target struct {
	Strategy string
	El       *rod.Element
	Keys     []input.Key
}

// Act performs the target's default interaction: a left click for elements,
// key presses for keyboard targets.
func (t *Target) Act(page *rod.Page) error {
	if t.El != nil {
		if err := t.El.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("click via %s: %w", t.Strategy, err)
		}
		return nil
	}
	for _, k := range t.Keys {
		if err := page.Keyboard.Press(k); err != nil {
			return fmt.Errorf("press key via %s: %w", t.Strategy, err)
		}
	}
	return nil
}

// Strategy is one way of finding an action's target.
type Strategy interface {
	Name() string
	Find(ctx context.Context, page *rod.Page) (*Target, error)
}

// Resolver maps actions to their strategy chains.
type Resolver struct {
	strategies map[Action][]Strategy
}

// NewResolver returns an empty resolver. Most callers want DefaultResolver.
func NewResolver() *Resolver {
	return &Resolver{strategies: make(map[Action][]Strategy)}
}

// Register sets the strategy chain for an action, replacing any existing one.
func (r *Resolver) Register(action Action, strategies ...Strategy) {
	r.strategies[action] = strategies
}

// Resolve walks the action's strategy chain and returns the first hit.
// Every attempt is logged; the error names the action only after the whole
// chain has been tried.
func (r *Resolver) Resolve(ctx context.Context, page *rod.Page, action Action) (*Target, error) {
	chain, ok := r.strategies[action]
	if !ok || len(chain) == 0 {
		return nil, fmt.Errorf("%w: %s has no strategies", ErrActionNotLocatable, action)
	}

	for i, s := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logging.LocateDebug("action=%s trying strategy %d/%d (%s)", action, i+1, len(chain), s.Name())

		target, err := s.Find(ctx, page)
		if err != nil {
			logging.LocateDebug("action=%s strategy %s missed: %v", action, s.Name(), err)
			continue
		}
		target.Strategy = s.Name()
		logging.Locate("action=%s resolved via %s", action, s.Name())
		return target, nil
	}

	logging.LocateWarn("action=%s exhausted %d strategies", action, len(chain))
	return nil, fmt.Errorf("%w: %s", ErrActionNotLocatable, action)
}
