package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sliceflow/pipeline/objectkey"
	"github.com/sliceflow/pipeline/taskstate"
)

// Extractor extracts the audio track of a local video file into a WAV
// file at destPath. The extraction codec pipeline is an external
// collaborator.
type Extractor interface {
	ExtractAudio(ctx context.Context, videoPath, destPath string) (*ExtractStats, error)
}

// ExtractStats describes an extracted audio track.
type ExtractStats struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
}

// ExtractAudio executes one audio-extraction job: download the source
// video, run the extractor, upload the audio under the deterministic
// audio key, and record the location both on the task row and on the
// video's processing metadata so later stages resolve it without
// scanning task history.
func (o *Orchestrator) ExtractAudio(ctx context.Context, job *Job, extractor Extractor, videoLocation string) (result map[string]any, err error) {
	track := o.newTracker(job, taskstate.StageExtractAudio, map[string]any{"video_minio_path": videoLocation})

	defer func() {
		if err == nil {
			return
		}
		msg := fmt.Sprintf("%s: %s", classify(err), err.Error())
		track.update(ctx, taskstate.StatusFailure, 0, msg, msg)
		o.reporter.Failed(ctx, job.jobID(), msg)
		err = classified(err)
	}()

	track.update(ctx, taskstate.StatusRunning, 10, "starting audio extraction", "")
	o.reporter.Progress(ctx, job.jobID(), 10, taskstate.StageExtractAudio, "starting audio extraction")

	key := ParseLocation(videoLocation, o.objects.Bucket()).Key

	scratch, err := os.MkdirTemp("", "extract-audio-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	track.update(ctx, taskstate.StatusRunning, 30, "downloading video", "")
	o.reporter.Progress(ctx, job.jobID(), 30, taskstate.StageExtractAudio, "downloading video")

	videoID := strconv.FormatInt(job.VideoID, 10)
	videoPath := filepath.Join(scratch, videoID+filepath.Ext(key))
	if err := o.downloadArtifact(ctx, key, videoPath); err != nil {
		return nil, err
	}

	track.update(ctx, taskstate.StatusRunning, 70, "extracting audio", "")
	o.reporter.Progress(ctx, job.jobID(), 70, taskstate.StageExtractAudio, "extracting audio")

	audioPath := filepath.Join(scratch, videoID+".wav")
	stats, err := extractor.ExtractAudio(ctx, videoPath, audioPath)
	if err != nil {
		return nil, err
	}

	audioKey := objectkey.AudioKey(job.UserID, job.ProjectID, videoID, "wav")
	if _, err := o.objects.PutFile(ctx, audioPath, audioKey, ""); err != nil {
		return nil, err
	}

	output := map[string]any{
		"minio_path":  audioKey,
		"object_name": audioKey,
	}
	if stats != nil {
		output["duration_seconds"] = stats.DurationSeconds
		output["sample_rate"] = stats.SampleRate
		output["channels"] = stats.Channels
	}

	// Best-effort from here: the audio object is uploaded, bookkeeping
	// failures must not undo that.
	if err := o.store.SetVideoAudioPath(ctx, job.VideoID, audioKey); err != nil {
		o.logger.WithError(err).Warn("failed to record audio path on video metadata")
	}
	track.complete(ctx, "audio extraction complete", output)
	track.update(ctx, taskstate.StatusSuccess, 100, "audio extraction complete", "")
	o.reporter.Progress(ctx, job.jobID(), 100, taskstate.StageExtractAudio, "audio extraction complete")

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
