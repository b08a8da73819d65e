package locate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"clipbot/internal/logging"
)

// Box is an element's on-screen rectangle.
type Box struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// CenterX returns the horizontal midpoint.
func (b Box) CenterX() float64 { return b.X + b.Width/2 }

// CenterY returns the vertical midpoint.
func (b Box) CenterY() float64 { return b.Y + b.Height/2 }

// Right returns the x of the right edge.
func (b Box) Right() float64 { return b.X + b.Width }

// ElementBox measures an element from its first layout quad.
func ElementBox(el *rod.Element) (Box, error) {
	shape, err := el.Shape()
	if err != nil {
		return Box{}, fmt.Errorf("element shape: %w", err)
	}
	if shape == nil || len(shape.Quads) == 0 {
		return Box{}, errors.New("element has no layout quads")
	}
	quad := shape.Quads[0]
	return Box{
		X:      quad[0],
		Y:      quad[1],
		Width:  quad[2] - quad[0],
		Height: quad[5] - quad[1],
	}, nil
}

// Region bounds a cursor sweep.
type Region struct {
	X0, Y0 float64
	X1, Y1 float64
	StepX  float64
	StepY  float64
}

// HandleHit is a located trim handle: the point where the resize cursor first
// appeared and the x where it stops, i.e. the clip's edge.
type HandleHit struct {
	Point proto.Point
	EdgeX float64
}

// cursorAt reports the computed cursor style under a viewport point.
func cursorAt(ctx context.Context, page *rod.Page, x, y float64) (string, error) {
	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `(x, y) => {
			const el = document.elementFromPoint(x, y);
			if (!el) return '';
			return window.getComputedStyle(el).cursor;
		}`,
		JSArgs:  []interface{}{x, y},
		ByValue: true,
	})
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func isResizeCursor(cursor string) bool {
	return strings.Contains(cursor, "ew-resize") || strings.Contains(cursor, "col-resize")
}

// ScanForHandle sweeps the region until it finds a point whose computed
// cursor is a horizontal resize cursor, then probes rightward to the exact
// pixel where the cursor changes back. pause throttles the probes so the
// page's own hover handlers keep up.
func ScanForHandle(ctx context.Context, page *rod.Page, region Region, pause time.Duration) (*HandleHit, error) {
	if region.StepX <= 0 {
		region.StepX = 4
	}
	if region.StepY <= 0 {
		region.StepY = 4
	}
	if pause <= 0 {
		pause = 10 * time.Millisecond
	}

	timer := logging.StartTimer(logging.CategoryLocate, "handle scan")
	defer timer.Stop()

	for y := region.Y0; y <= region.Y1; y += region.StepY {
		for x := region.X0; x <= region.X1; x += region.StepX {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			cursor, err := cursorAt(ctx, page, x, y)
			if err != nil {
				return nil, fmt.Errorf("cursor probe at (%.0f, %.0f): %w", x, y, err)
			}
			if !isResizeCursor(cursor) {
				continue
			}

			logging.LocateDebug("resize cursor at (%.0f, %.0f), probing edge", x, y)
			edge, err := probeEdge(ctx, page, x, y, region.X1, pause)
			if err != nil {
				return nil, err
			}
			return &HandleHit{
				Point: proto.Point{X: x, Y: y},
				EdgeX: edge,
			}, nil
		}
	}
	return nil, errors.New("no resize handle within region")
}

// probeEdge walks right one pixel at a time until the resize cursor ends.
func probeEdge(ctx context.Context, page *rod.Page, x, y, limit float64, pause time.Duration) (float64, error) {
	edge := x
	for px := x; px <= limit; px++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		cursor, err := cursorAt(ctx, page, px, y)
		if err != nil {
			return 0, fmt.Errorf("edge probe at (%.0f, %.0f): %w", px, y, err)
		}
		if !isResizeCursor(cursor) {
			break
		}
		edge = px
		time.Sleep(pause)
	}
	return edge, nil
}
