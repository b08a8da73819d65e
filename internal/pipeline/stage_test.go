package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"clipbot/internal/catalog"
)

func TestFailureStatusBoundary(t *testing.T) {
	cases := []struct {
		stage Stage
		want  string
	}{
		{StageIdle, catalog.StatusFailed},
		{StageUploading, catalog.StatusFailed},
		{StageSplit, catalog.StatusFailed},
		{StageCutoutInvoked, catalog.StatusFailed},
		{StageCutoutEnabled, catalog.StatusExported},
		{StageWaitCutoutComplete, catalog.StatusExported},
		{StageExportInvoked, catalog.StatusExported},
		{StageWaitDownloadReady, catalog.StatusExported},
		{StageDone, catalog.StatusExported},
	}
	for _, tc := range cases {
		if got := FailureStatus(tc.stage); got != tc.want {
			t.Errorf("FailureStatus(%s) = %q, want %q", tc.stage, got, tc.want)
		}
	}
}

func TestStageErrorUnwraps(t *testing.T) {
	err := &StageError{Stage: StageWaitUploadTranscode, Err: fmt.Errorf("poll: %w", ErrStageTimeout)}
	if !errors.Is(err, ErrStageTimeout) {
		t.Error("expected StageError to unwrap to the timeout sentinel")
	}

	var se *StageError
	if !errors.As(error(err), &se) {
		t.Fatal("errors.As failed on a StageError")
	}
	if se.Stage != StageWaitUploadTranscode {
		t.Errorf("unexpected stage %s", se.Stage)
	}
}

func TestStageString(t *testing.T) {
	cases := map[Stage]string{
		StageIdle:          "Idle",
		StageSplit:         "Split",
		StageDone:          "Done",
		Stage(99):          "Stage(99)",
		StageCutoutEnabled: "CutoutEnabled",
	}
	for stage, want := range cases {
		if got := stage.String(); got != want {
			t.Errorf("Stage(%d).String() = %q, want %q", int(stage), got, want)
		}
	}
}
