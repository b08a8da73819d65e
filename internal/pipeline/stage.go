package pipeline

import (
	"errors"
	"fmt"

	"clipbot/internal/catalog"
)

// Stage is one step of the editor workflow. Stages are strictly ordered;
// a job either walks them all to StageDone or dies at one of them.
type Stage int

const (
	StageIdle Stage = iota
	StageUploading
	StageWaitUploadTranscode
	StagePlacedOnTimeline
	StageProjectRenamed
	StageZoomedIn
	StagePositionedOnTrack2
	StagePlayheadReset
	StageZoomedOut
	StageDurationTrimmed
	StageSplit
	StageRightSegmentSelected
	StageRightSegmentDeleted
	StageRegionSelected
	StageCutoutInvoked
	StageCutoutEnabled
	StageWaitCutoutComplete
	StageExportInvoked
	StageDownloadInvoked
	StageExportConfirmed
	StageWaitDownloadReady
	StageDone
)

var stageNames = map[Stage]string{
	StageIdle:                 "Idle",
	StageUploading:            "Uploading",
	StageWaitUploadTranscode:  "WaitUploadTranscode",
	StagePlacedOnTimeline:     "PlacedOnTimeline",
	StageProjectRenamed:       "ProjectRenamed",
	StageZoomedIn:             "ZoomedIn",
	StagePositionedOnTrack2:   "PositionedOnTrack2",
	StagePlayheadReset:        "PlayheadReset",
	StageZoomedOut:            "ZoomedOut",
	StageDurationTrimmed:      "DurationTrimmed",
	StageSplit:                "Split",
	StageRightSegmentSelected: "RightSegmentSelected",
	StageRightSegmentDeleted:  "RightSegmentDeleted",
	StageRegionSelected:       "RegionSelected",
	StageCutoutInvoked:        "CutoutInvoked",
	StageCutoutEnabled:        "CutoutEnabled",
	StageWaitCutoutComplete:   "WaitCutoutComplete",
	StageExportInvoked:        "ExportInvoked",
	StageDownloadInvoked:      "DownloadInvoked",
	StageExportConfirmed:      "ExportConfirmed",
	StageWaitDownloadReady:    "WaitDownloadReady",
	StageDone:                 "Done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

var (
	// ErrVideoFileNotFound means the input video does not exist on disk.
	ErrVideoFileNotFound = errors.New("video file not found")

	// ErrStageTimeout means a completion detector's bound elapsed.
	ErrStageTimeout = errors.New("stage timed out")

	// ErrDownloadNotFound means no matching output file appeared within the
	// final wait window.
	ErrDownloadNotFound = errors.New("download not found")
)

// StageError tags a failure with the stage it happened in, so callers
// classify by position instead of sniffing message text.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailureStatus picks the catalog status for a job that died at stage. Once
// the cutout toggle has been flipped the remote project already carries real
// work, so those failures keep the exported class instead of plain failed.
func FailureStatus(stage Stage) string {
	if stage >= StageCutoutEnabled {
		return catalog.StatusExported
	}
	return catalog.StatusFailed
}
