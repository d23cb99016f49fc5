// Package taskstate persists the durable record of pipeline jobs.
//
// Each pipeline-stage execution attempt owns one task row, keyed by the
// job identifier assigned by the task-queue transport. Row creation is
// idempotent (a uniqueness constraint on the job id, insert-or-ignore),
// status transitions are forward-only, and terminal rows never move.
package taskstate

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending Status = "PENDING" // implicit: row absent
	StatusRunning Status = "RUNNING"
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Stage enumerates the pipeline stages sharing the tracking conventions.
type Stage string

const (
	StageDownload     Stage = "DOWNLOAD"
	StageExtractAudio Stage = "EXTRACT_AUDIO"
	StageSplitAudio   Stage = "SPLIT_AUDIO"
	StageGenerateSRT  Stage = "GENERATE_SRT"
	StageThumbnail    Stage = "THUMBNAIL"
	StageSlice        Stage = "SLICE"
)

// Task is one pipeline-stage execution record.
type Task struct {
	ID          int64          `json:"id"`
	VideoID     int64          `json:"video_id"`
	Stage       Stage          `json:"stage"`
	JobID       string         `json:"job_id"` // external task-queue identity, unique
	Status      Status         `json:"status"`
	Progress    float64        `json:"progress"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	InputData   map[string]any `json:"input_data,omitempty"`
	OutputData  map[string]any `json:"output_data,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Error describes a failed state store operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("taskstate: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
