package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sliceflow/pipeline/engine"
	"github.com/sliceflow/pipeline/taskstate"
)

// fakeStore is an in-memory StateStore recording every mutation.
type fakeStore struct {
	tasks      map[string]*taskstate.Task
	nextID     int64
	audioPaths map[int64]string
	updates    []string // "status/progress" in call order

	failComplete bool
	failAll      bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[string]*taskstate.Task{}, audioPaths: map[int64]string{}}
}

func (s *fakeStore) EnsureTask(_ context.Context, jobID string, videoID int64, stage taskstate.Stage, input map[string]any) (bool, error) {
	if s.failAll {
		return false, &taskstate.Error{Op: "ensure_task", Err: errors.New("db down")}
	}
	if _, ok := s.tasks[jobID]; ok {
		return false, nil
	}
	s.nextID++
	s.tasks[jobID] = &taskstate.Task{
		ID: s.nextID, VideoID: videoID, Stage: stage, JobID: jobID,
		Status: taskstate.StatusRunning, InputData: input, StartedAt: time.Now(),
	}
	return true, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, jobID string, status taskstate.Status, progress float64, message, errMsg string) error {
	if s.failAll {
		return &taskstate.Error{Op: "update_status", Err: errors.New("db down")}
	}
	t, ok := s.tasks[jobID]
	if !ok || t.Status.Terminal() {
		return nil
	}
	t.Status, t.Progress, t.Message, t.Error = status, progress, message, errMsg
	s.updates = append(s.updates, fmt.Sprintf("%s/%v", status, progress))
	return nil
}

func (s *fakeStore) Complete(_ context.Context, taskID int64, status taskstate.Status, progress float64, message string, output map[string]any, stage taskstate.Stage) error {
	if s.failComplete || s.failAll {
		return &taskstate.Error{Op: "complete", Err: errors.New("db down")}
	}
	for _, t := range s.tasks {
		if t.ID == taskID && !t.Status.Terminal() {
			t.Status, t.Progress, t.Message, t.OutputData = status, progress, message, output
			now := time.Now()
			t.CompletedAt = &now
			s.updates = append(s.updates, fmt.Sprintf("%s/%v", status, progress))
		}
	}
	return nil
}

func (s *fakeStore) TaskByJobID(_ context.Context, jobID string) (*taskstate.Task, error) {
	return s.tasks[jobID], nil
}

func (s *fakeStore) LatestCompleted(_ context.Context, videoID int64, stage taskstate.Stage) (*taskstate.Task, error) {
	var latest *taskstate.Task
	for _, t := range s.tasks {
		if t.VideoID != videoID || t.Stage != stage || t.Status != taskstate.StatusSuccess {
			continue
		}
		if latest == nil || (t.CompletedAt != nil && latest.CompletedAt != nil && t.CompletedAt.After(*latest.CompletedAt)) {
			latest = t
		}
	}
	return latest, nil
}

func (s *fakeStore) VideoAudioPath(_ context.Context, videoID int64) (string, error) {
	return s.audioPaths[videoID], nil
}

func (s *fakeStore) SetVideoAudioPath(_ context.Context, videoID int64, path string) error {
	s.audioPaths[videoID] = path
	return nil
}

// seedExtractTask adds a completed audio-extraction task.
func (s *fakeStore) seedExtractTask(videoID int64, key string) {
	s.nextID++
	now := time.Now()
	s.tasks["extract-"+key] = &taskstate.Task{
		ID: s.nextID, VideoID: videoID, Stage: taskstate.StageExtractAudio,
		JobID: "extract-" + key, Status: taskstate.StatusSuccess,
		OutputData:  map[string]any{"minio_path": key},
		CompletedAt: &now,
	}
}

// fakeObjects serves signed URLs from an httptest server.
type fakeObjects struct {
	bucket    string
	serverURL string
	signed    []string
	uploads   map[string]string // key -> local path
	signErr   error
}

func (f *fakeObjects) Bucket() string { return f.bucket }

func (f *fakeObjects) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	f.signed = append(f.signed, key)
	return f.serverURL + "/" + f.bucket + "/" + key + "?X-Amz-Signature=test", nil
}

func (f *fakeObjects) PutFile(_ context.Context, localPath, key, _ string) (string, error) {
	if f.uploads == nil {
		f.uploads = map[string]string{}
	}
	f.uploads[key] = localPath
	return key, nil
}

// fakeEngine returns a canned result or error and captures the request.
type fakeEngine struct {
	result *engine.Result
	err    error
	req    *engine.Request
}

func (e *fakeEngine) GenerateSubtitles(_ context.Context, req *engine.Request) (*engine.Result, error) {
	e.req = req
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// recordReporter captures transport-channel reports.
type recordReporter struct {
	progress []float64
	success  map[string]any
	failure  string
}

func (r *recordReporter) Progress(_ context.Context, _ string, p float64, _ taskstate.Stage, _ string) {
	r.progress = append(r.progress, p)
}
func (r *recordReporter) Succeeded(_ context.Context, _ string, result map[string]any) {
	r.success = result
}
func (r *recordReporter) Failed(_ context.Context, _ string, msg string) { r.failure = msg }

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestHarness(t *testing.T, store *fakeStore, eng engine.Engine) (*Orchestrator, *fakeObjects, *recordReporter) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("RIFFfake-wav-bytes"))
	}))
	t.Cleanup(srv.Close)

	objects := &fakeObjects{bucket: "media", serverURL: srv.URL}
	reporter := &recordReporter{}
	o := NewOrchestrator(store, objects, eng, reporter, testLogger())
	return o, objects, reporter
}

func TestGenerateSubtitlesNoAudioAvailable(t *testing.T) {
	store := newFakeStore()
	o, _, reporter := newTestHarness(t, store, &fakeEngine{})

	_, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-1", VideoID: 42, ProjectID: 3, UserID: 7})
	if err == nil {
		t.Fatal("expected error for video without audio")
	}
	if !strings.Contains(err.Error(), "ResolutionError") {
		t.Errorf("error = %q, want ResolutionError classification", err)
	}
	if !strings.Contains(err.Error(), "no audio available") {
		t.Errorf("error = %q, want no-audio message", err)
	}

	task := store.tasks["job-1"]
	if task == nil {
		t.Fatal("no task row recorded")
	}
	if task.Status != taskstate.StatusFailure {
		t.Errorf("status = %v, want %v", task.Status, taskstate.StatusFailure)
	}
	if task.Progress != 0 {
		t.Errorf("progress = %v, want 0", task.Progress)
	}
	if reporter.failure == "" {
		t.Error("failure not reported to the transport channel")
	}
}

func TestGenerateSubtitlesFromExtractTask(t *testing.T) {
	store := newFakeStore()
	store.seedExtractTask(42, "users/7/projects/3/audio/42.wav")

	eng := &fakeEngine{result: &engine.Result{
		SubtitleFilename: "42.srt",
		ObjectKey:        "users/7/projects/3/subtitles/42.srt",
		StoragePath:      "users/7/projects/3/subtitles/42.srt",
		TotalSegments:    12,
	}}
	o, objects, reporter := newTestHarness(t, store, eng)

	result, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-2", VideoID: 42, ProjectID: 3, UserID: 7})
	if err != nil {
		t.Fatalf("GenerateSubtitles() error: %v", err)
	}

	if got, want := objects.signed, []string{"users/7/projects/3/audio/42.wav"}; len(got) != 1 || got[0] != want[0] {
		t.Errorf("signed keys = %v, want %v", got, want)
	}
	if eng.req == nil {
		t.Fatal("engine not invoked")
	}
	if eng.req.VideoID != "42" {
		t.Errorf("engine video_id = %q, want %q", eng.req.VideoID, "42")
	}
	if _, err := os.Stat(eng.req.AudioPath); !os.IsNotExist(err) {
		t.Errorf("scratch file %s not cleaned up", eng.req.AudioPath)
	}

	task := store.tasks["job-2"]
	if task.Status != taskstate.StatusSuccess {
		t.Errorf("status = %v, want %v", task.Status, taskstate.StatusSuccess)
	}
	if task.Progress != 100 {
		t.Errorf("progress = %v, want 100", task.Progress)
	}
	if got := task.OutputData["object_name"]; got != "users/7/projects/3/subtitles/42.srt" {
		t.Errorf("output object_name = %v, want engine's subtitle key", got)
	}
	if result["srt_filename"] != "42.srt" {
		t.Errorf("result srt_filename = %v, want 42.srt", result["srt_filename"])
	}
	if reporter.success == nil {
		t.Error("success not reported to the transport channel")
	}
	if want := []float64{10, 30, 70, 100}; len(reporter.progress) != len(want) {
		t.Errorf("progress ladder = %v, want %v", reporter.progress, want)
	} else {
		for i := range want {
			if reporter.progress[i] != want[i] {
				t.Errorf("progress[%d] = %v, want %v", i, reporter.progress[i], want[i])
			}
		}
	}
}

func TestGenerateSubtitlesPrefersMetadataPath(t *testing.T) {
	store := newFakeStore()
	store.audioPaths[42] = "media/users/7/projects/3/audio/explicit.wav"
	store.seedExtractTask(42, "users/7/projects/3/audio/from-task.wav")

	eng := &fakeEngine{result: &engine.Result{SubtitleFilename: "42.srt"}}
	o, objects, _ := newTestHarness(t, store, eng)

	if _, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-3", VideoID: 42, ProjectID: 3, UserID: 7}); err != nil {
		t.Fatalf("GenerateSubtitles() error: %v", err)
	}
	// Bucket prefix stripped, metadata path wins over the task output.
	if got := objects.signed[0]; got != "users/7/projects/3/audio/explicit.wav" {
		t.Errorf("resolved key = %q, want the metadata path", got)
	}
}

func TestGenerateSubtitlesEngineFailure(t *testing.T) {
	store := newFakeStore()
	store.seedExtractTask(42, "users/7/projects/3/audio/42.wav")

	eng := &fakeEngine{err: &engine.Error{Message: "timeout"}}
	o, _, reporter := newTestHarness(t, store, eng)

	_, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-4", VideoID: 42, ProjectID: 3, UserID: 7})
	if err == nil {
		t.Fatal("expected engine failure to propagate")
	}
	if !strings.Contains(err.Error(), "EngineError") || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("error = %q, want EngineError with engine message", err)
	}

	task := store.tasks["job-4"]
	if task.Status != taskstate.StatusFailure {
		t.Errorf("status = %v, want %v", task.Status, taskstate.StatusFailure)
	}
	if !strings.Contains(task.Error, "timeout") {
		t.Errorf("task error = %q, want engine message", task.Error)
	}
	if len(task.OutputData) != 0 {
		t.Errorf("output_data = %v, want empty after failure", task.OutputData)
	}
	if !strings.Contains(reporter.failure, "timeout") {
		t.Errorf("transport failure = %q, want engine message", reporter.failure)
	}
}

func TestGenerateSubtitlesSubTaskSkipsTracking(t *testing.T) {
	store := newFakeStore()
	store.seedExtractTask(42, "users/7/projects/3/audio/42.wav")

	eng := &fakeEngine{result: &engine.Result{SubtitleFilename: "42.srt"}}
	o, _, _ := newTestHarness(t, store, eng)

	before := len(store.tasks)
	if _, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-5", VideoID: 42, ProjectID: 3, UserID: 7, SubTask: true}); err != nil {
		t.Fatalf("GenerateSubtitles() error: %v", err)
	}
	if len(store.tasks) != before {
		t.Errorf("task rows = %d, want unchanged %d for a sub-task run", len(store.tasks), before)
	}
	if len(store.updates) != 0 {
		t.Errorf("status updates = %v, want none for a sub-task run", store.updates)
	}
}

func TestGenerateSubtitlesBookkeepingFailureDoesNotMaskResult(t *testing.T) {
	store := newFakeStore()
	store.seedExtractTask(42, "users/7/projects/3/audio/42.wav")
	store.failComplete = true

	eng := &fakeEngine{result: &engine.Result{SubtitleFilename: "42.srt"}}
	o, _, _ := newTestHarness(t, store, eng)

	result, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-6", VideoID: 42, ProjectID: 3, UserID: 7})
	if err != nil {
		t.Fatalf("GenerateSubtitles() error: %v, want success despite bookkeeping failure", err)
	}
	if result["srt_filename"] != "42.srt" {
		t.Errorf("result = %v, want the computed engine result", result)
	}
}

func TestGenerateSubtitlesStateStoreDownStillRaisesPrimaryError(t *testing.T) {
	store := newFakeStore()
	store.failAll = true

	o, _, _ := newTestHarness(t, store, &fakeEngine{})

	_, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-7", VideoID: 42, ProjectID: 3, UserID: 7})
	if err == nil {
		t.Fatal("expected error")
	}
	// The unreachable store is a bookkeeping concern; the job's own
	// failure (no audio) must be the one surfaced.
	if !strings.Contains(err.Error(), "ResolutionError") {
		t.Errorf("error = %q, want the primary ResolutionError, not a StateError", err)
	}
}

func TestGenerateSubtitlesPlaceholderJobID(t *testing.T) {
	store := newFakeStore()
	store.seedExtractTask(42, "users/7/projects/3/audio/42.wav")

	eng := &fakeEngine{result: &engine.Result{SubtitleFilename: "42.srt"}}
	o, _, _ := newTestHarness(t, store, eng)

	if _, err := o.GenerateSubtitles(context.Background(), &Job{VideoID: 42, ProjectID: 3, UserID: 7}); err != nil {
		t.Fatalf("GenerateSubtitles() error: %v", err)
	}
	if store.tasks[placeholderJobID] == nil {
		t.Errorf("no task row under the placeholder job id; rows: %v", len(store.tasks))
	}
}

func TestDownloadArtifactMissingObject(t *testing.T) {
	store := newFakeStore()
	store.seedExtractTask(42, "users/7/projects/3/audio/missing.wav")

	o, _, _ := newTestHarness(t, store, &fakeEngine{})

	_, err := o.GenerateSubtitles(context.Background(), &Job{ID: "job-8", VideoID: 42, ProjectID: 3, UserID: 7})
	if err == nil {
		t.Fatal("expected download failure")
	}
	if !strings.Contains(err.Error(), "TransientIOError") {
		t.Errorf("error = %q, want TransientIOError classification", err)
	}
	var transient *TransientIOError
	if !errors.As(err, &transient) {
		t.Errorf("error chain lacks *TransientIOError: %v", err)
	}
}
