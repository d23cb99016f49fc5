package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sliceflow/pipeline/engine"
	"github.com/sliceflow/pipeline/taskstate"
)

// GenerateSubtitles executes one subtitle-generation job end to end:
// resolve the extracted audio, download it to a scratch file, invoke the
// transcription engine, and persist the structured outcome. On success
// it returns the result payload for the queue transport's result
// channel; on failure it records FAILURE best-effort and returns the
// classified error for the transport's retry and alerting layer.
func (o *Orchestrator) GenerateSubtitles(ctx context.Context, job *Job) (result map[string]any, err error) {
	track := o.newTracker(job, taskstate.StageGenerateSRT, map[string]any{"direct_audio": true})

	defer func() {
		if err == nil {
			return
		}
		msg := fmt.Sprintf("%s: %s", classify(err), err.Error())
		track.update(ctx, taskstate.StatusFailure, 0, msg, msg)
		o.reporter.Failed(ctx, job.jobID(), msg)
		err = classified(err)
	}()

	track.update(ctx, taskstate.StatusRunning, 10, "starting subtitle generation", "")
	o.reporter.Progress(ctx, job.jobID(), 10, taskstate.StageGenerateSRT, "starting subtitle generation")

	location, err := o.resolveAudioLocation(ctx, job.VideoID)
	if err != nil {
		return nil, err
	}
	key := ParseLocation(location, o.objects.Bucket()).Key

	scratch, err := os.MkdirTemp("", "generate-srt-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	track.update(ctx, taskstate.StatusRunning, 30, "downloading audio", "")
	o.reporter.Progress(ctx, job.jobID(), 30, taskstate.StageGenerateSRT, "downloading audio")

	audioPath := filepath.Join(scratch, strconv.FormatInt(job.VideoID, 10)+".wav")
	if err := o.downloadArtifact(ctx, key, audioPath); err != nil {
		return nil, err
	}

	track.update(ctx, taskstate.StatusRunning, 70, "transcribing audio", "")
	o.reporter.Progress(ctx, job.jobID(), 70, taskstate.StageGenerateSRT, "transcribing audio")

	engineResult, err := o.engine.GenerateSubtitles(ctx, &engine.Request{
		AudioPath: audioPath,
		VideoID:   strconv.FormatInt(job.VideoID, 10),
		ProjectID: job.ProjectID,
		UserID:    job.UserID,
	})
	if err != nil {
		return nil, err
	}

	output := map[string]any{
		"srt_filename":     engineResult.SubtitleFilename,
		"minio_path":       engineResult.StoragePath,
		"object_name":      engineResult.ObjectKey,
		"total_segments":   engineResult.TotalSegments,
		"processing_stats": engineResult.ProcessingStats,
		"asr_params":       engineResult.Params,
	}

	// The computed result is in hand; bookkeeping failures from here on
	// are logged, never returned.
	track.complete(ctx, "subtitle generation complete", output)
	track.update(ctx, taskstate.StatusSuccess, 100, "subtitle generation complete", "")
	o.reporter.Progress(ctx, job.jobID(), 100, taskstate.StageGenerateSRT, "subtitle generation complete")

	result = map[string]any{
		"status":   "completed",
		"video_id": job.VideoID,
	}
	for k, v := range output {
		result[k] = v
	}
	o.reporter.Succeeded(ctx, job.jobID(), result)
	return result, nil
}
