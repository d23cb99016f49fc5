package tasks

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sliceflow/pipeline/taskstate"
)

// Reporter is the task-queue transport's native state channel. The
// transport and the task state store are dual reporting targets:
// consumers may observe either.
type Reporter interface {
	Progress(ctx context.Context, jobID string, progress float64, stage taskstate.Stage, message string)
	Succeeded(ctx context.Context, jobID string, result map[string]any)
	Failed(ctx context.Context, jobID string, errMsg string)
}

// NopReporter discards all reports. Used when a job runs outside the
// queue transport.
type NopReporter struct{}

func (NopReporter) Progress(context.Context, string, float64, taskstate.Stage, string) {}
func (NopReporter) Succeeded(context.Context, string, map[string]any)                  {}
func (NopReporter) Failed(context.Context, string, string)                             {}

// tracker performs the best-effort status writes for one job. Every
// write is "try, log, continue": a bookkeeping failure must never mask
// or replace the job's own outcome.
type tracker struct {
	store   StateStore
	logger  logrus.FieldLogger
	jobID   string
	videoID int64
	stage   taskstate.Stage
	subTask bool
	input   map[string]any
}

func (o *Orchestrator) newTracker(job *Job, stage taskstate.Stage, input map[string]any) *tracker {
	return &tracker{
		store:   o.store,
		logger:  o.logger.WithFields(logrus.Fields{"job_id": job.jobID(), "video_id": job.VideoID, "stage": stage}),
		jobID:   job.jobID(),
		videoID: job.VideoID,
		stage:   stage,
		subTask: job.SubTask,
		input:   input,
	}
}

// update records status and progress on the job's task row. Sub-task
// jobs skip the write entirely; otherwise the row is self-healed via
// EnsureTask before the update.
func (t *tracker) update(ctx context.Context, status taskstate.Status, progress float64, message, errMsg string) {
	if t.subTask {
		t.logger.Debug("skipping status update for sub-task")
		return
	}

	if _, err := t.store.EnsureTask(ctx, t.jobID, t.videoID, t.stage, t.input); err != nil {
		t.logger.WithError(err).Warn("failed to ensure processing task")
		return
	}
	if err := t.store.UpdateStatus(ctx, t.jobID, status, progress, message, errMsg); err != nil {
		t.logger.WithError(err).Warn("failed to update task status")
	}
}

// complete records the terminal SUCCESS outcome with its structured
// output. Best-effort like update: the computed result is never
// discarded because bookkeeping failed.
func (t *tracker) complete(ctx context.Context, message string, output map[string]any) {
	if t.subTask {
		t.logger.Debug("skipping completion for sub-task")
		return
	}

	task, err := t.store.TaskByJobID(ctx, t.jobID)
	if err != nil {
		t.logger.WithError(err).Warn("failed to load task for completion")
		return
	}
	if task == nil {
		t.logger.Warn("no task row found for completion")
		return
	}
	if err := t.store.Complete(ctx, task.ID, taskstate.StatusSuccess, 100, message, output, t.stage); err != nil {
		t.logger.WithError(err).Warn("failed to record task completion")
	}
}
