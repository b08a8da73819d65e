package pipeline

import (
	"context"
	"errors"
	"testing"
)

// A cancelled context must stop the workflow before any page interaction,
// and the failure must name the stage it was about to enter.
func TestWorkflowRunHonorsCancelledContext(t *testing.T) {
	w := NewWorkflow(WorkflowParams{
		PixelsPerSecond: 30,
		TargetSeconds:   30,
		ProjectName:     "clip",
		DownloadDir:     t.TempDir(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("expected a *StageError")
	}
	if se.Stage != StageUploading {
		t.Errorf("expected the first stage, got %s", se.Stage)
	}
}

func TestNewWorkflowDefaults(t *testing.T) {
	w := NewWorkflow(WorkflowParams{})
	if w.clock == nil {
		t.Error("expected a default clock")
	}
	if w.sink == nil {
		t.Error("expected a default sink")
	}
}

func TestDownloadLinkNameNilElement(t *testing.T) {
	if got := downloadLinkName(nil); got != "" {
		t.Errorf("expected empty name for nil element, got %q", got)
	}
}
