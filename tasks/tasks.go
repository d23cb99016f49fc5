// Package tasks contains the job orchestrators driving the pipeline
// stages end to end: resolve the input artifact, fetch it into a scratch
// area, invoke the external processing collaborator, persist the output,
// and report terminal state.
//
// Orchestrators are single-threaded within one job; concurrency comes
// from the task-queue transport running jobs on separate workers. All
// collaborators are injected at construction.
package tasks

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sliceflow/pipeline/engine"
	"github.com/sliceflow/pipeline/taskstate"
)

// signedURLTTL bounds how long a job's download link stays valid.
const signedURLTTL = time.Hour

// placeholderJobID keeps status calls well-formed when a job runs
// outside the queue transport (e.g. direct invocation in tests).
const placeholderJobID = "unknown"

// StateStore is the subset of the task state store the orchestrators
// depend on.
type StateStore interface {
	EnsureTask(ctx context.Context, jobID string, videoID int64, stage taskstate.Stage, input map[string]any) (bool, error)
	UpdateStatus(ctx context.Context, jobID string, status taskstate.Status, progress float64, message, errMsg string) error
	Complete(ctx context.Context, taskID int64, status taskstate.Status, progress float64, message string, output map[string]any, stage taskstate.Stage) error
	TaskByJobID(ctx context.Context, jobID string) (*taskstate.Task, error)
	LatestCompleted(ctx context.Context, videoID int64, stage taskstate.Stage) (*taskstate.Task, error)
	VideoAudioPath(ctx context.Context, videoID int64) (string, error)
	SetVideoAudioPath(ctx context.Context, videoID int64, path string) error
}

// ObjectStore is the subset of the storage gateway the orchestrators
// depend on.
type ObjectStore interface {
	Bucket() string
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	PutFile(ctx context.Context, localPath, key, contentType string) (string, error)
}

// Job identifies one pipeline-stage execution handed over by the
// task-queue transport.
type Job struct {
	ID        string // external job id; empty outside the transport
	VideoID   int64
	ProjectID int64
	UserID    int64
	// SubTask marks a job running only as an internal step of a larger
	// job. Sub-tasks opt out of task-record visibility so they do not
	// pollute the primary job's record.
	SubTask bool
}

func (j *Job) jobID() string {
	if j.ID == "" {
		return placeholderJobID
	}
	return j.ID
}

// Orchestrator drives pipeline-stage jobs end to end.
type Orchestrator struct {
	store    StateStore
	objects  ObjectStore
	engine   engine.Engine
	reporter Reporter
	logger   logrus.FieldLogger
	client   *http.Client
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHTTPClient overrides the client used to download resolved
// artifacts.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Orchestrator) { o.client = c }
}

// NewOrchestrator wires an orchestrator with its collaborators. Pass a
// NopReporter when no queue transport state channel is available.
func NewOrchestrator(store StateStore, objects ObjectStore, eng engine.Engine, reporter Reporter, logger logrus.FieldLogger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		objects:  objects,
		engine:   eng,
		reporter: reporter,
		logger:   logger,
		client:   &http.Client{Timeout: 5 * time.Minute},
	}
	if o.reporter == nil {
		o.reporter = NopReporter{}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
