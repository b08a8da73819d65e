package pipeline

import "math"

// dragStepPx is how far the pointer travels between synthetic move events
// during a trim drag. Small steps keep the editor's drag recognition firing
// continuously instead of seeing one teleport.
const dragStepPx = 20

// TrimPlan is the pointer interaction, if any, that brings a clip to the
// target duration.
type TrimPlan struct {
	TargetWidth  float64
	CurrentWidth float64
	DragDistance float64
	Steps        int
}

// PlanTrim computes the drag from the clip's current pixel width to the
// width implied by the pixels-per-second calibration. A non-positive
// distance means the clip is already at least target length and no pointer
// interaction happens; the later split discards the excess.
func PlanTrim(currentWidth, pixelsPerSecond, targetSeconds float64) TrimPlan {
	targetWidth := pixelsPerSecond * targetSeconds
	distance := targetWidth - currentWidth

	steps := 0
	if distance > 0 {
		steps = int(math.Ceil(distance / dragStepPx))
		if steps < 1 {
			steps = 1
		}
	}
	return TrimPlan{
		TargetWidth:  targetWidth,
		CurrentWidth: currentWidth,
		DragDistance: distance,
		Steps:        steps,
	}
}

// NeedsDrag reports whether the plan involves any pointer movement.
func (p TrimPlan) NeedsDrag() bool { return p.DragDistance > 0 }
