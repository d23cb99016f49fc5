package tasks

import (
	"errors"
	"fmt"

	"github.com/sliceflow/pipeline/engine"
	"github.com/sliceflow/pipeline/storage"
	"github.com/sliceflow/pipeline/taskstate"
)

// ResolutionError means no usable input artifact location was found
// after exhausting every fallback tier. Always fatal to the job.
type ResolutionError struct {
	VideoID int64
	Artifact string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("no %s available for video %d: run the %s extraction stage first", e.Artifact, e.VideoID, e.Artifact)
}

// TransientIOError is a network failure while downloading a resolved
// artifact. Not retried here; the task-queue's redelivery policy owns
// retries.
type TransientIOError struct {
	Key string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.Key, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// classify maps an error to its kind name for the persisted
// "<kind>: <message>" failure string.
func classify(err error) string {
	var (
		resolution *ResolutionError
		transient  *TransientIOError
		storageErr *storage.Error
		stateErr   *taskstate.Error
		engineErr  *engine.Error
	)
	switch {
	case errors.As(err, &resolution):
		return "ResolutionError"
	case errors.As(err, &transient):
		return "TransientIOError"
	case errors.As(err, &storageErr):
		return "StorageError"
	case errors.As(err, &stateErr):
		return "StateError"
	case errors.As(err, &engineErr):
		return "EngineError"
	default:
		return "TaskError"
	}
}

// classified wraps err so callers up the stack (the queue transport's
// observability layer) see "<kind>: <message>" while errors.As still
// reaches the original error.
func classified(err error) error {
	return fmt.Errorf("%s: %w", classify(err), err)
}
