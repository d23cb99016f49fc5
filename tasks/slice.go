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

// SliceRange is one requested cut of the source video.
type SliceRange struct {
	Title string `json:"title"`
	Start string `json:"start"` // HH:MM:SS,mmm
	End   string `json:"end"`
}

// SliceFile is one cut produced by the slicer in the scratch area.
type SliceFile struct {
	Title string
	Path  string
}

// Slicer cuts a local video file into the requested ranges. The cutting
// codec pipeline is an external collaborator.
type Slicer interface {
	Slice(ctx context.Context, videoPath, scratchDir string, ranges []SliceRange) ([]SliceFile, error)
}

// SliceVideo executes one video-slicing job: download the source video,
// run the slicer, and upload every cut under a randomized slice key so
// repeated slicing runs never collide.
func (o *Orchestrator) SliceVideo(ctx context.Context, job *Job, slicer Slicer, videoLocation string, ranges []SliceRange) (result map[string]any, err error) {
	track := o.newTracker(job, taskstate.StageSlice, map[string]any{
		"video_minio_path": videoLocation,
		"slice_count":      len(ranges),
	})

	defer func() {
		if err == nil {
			return
		}
		msg := fmt.Sprintf("%s: %s", classify(err), err.Error())
		track.update(ctx, taskstate.StatusFailure, 0, msg, msg)
		o.reporter.Failed(ctx, job.jobID(), msg)
		err = classified(err)
	}()

	track.update(ctx, taskstate.StatusRunning, 10, "starting video slicing", "")
	o.reporter.Progress(ctx, job.jobID(), 10, taskstate.StageSlice, "starting video slicing")

	key := ParseLocation(videoLocation, o.objects.Bucket()).Key

	scratch, err := os.MkdirTemp("", "slice-video-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	track.update(ctx, taskstate.StatusRunning, 30, "downloading video", "")
	o.reporter.Progress(ctx, job.jobID(), 30, taskstate.StageSlice, "downloading video")

	videoID := strconv.FormatInt(job.VideoID, 10)
	videoPath := filepath.Join(scratch, videoID+filepath.Ext(key))
	if err := o.downloadArtifact(ctx, key, videoPath); err != nil {
		return nil, err
	}

	track.update(ctx, taskstate.StatusRunning, 70, "cutting slices", "")
	o.reporter.Progress(ctx, job.jobID(), 70, taskstate.StageSlice, "cutting slices")

	files, err := slicer.Slice(ctx, videoPath, scratch, ranges)
	if err != nil {
		return nil, err
	}

	slices := make([]map[string]any, 0, len(files))
	for _, f := range files {
		sliceKey := objectkey.SliceKey(job.UserID, job.ProjectID, filepath.Base(f.Path))
		if _, err := o.objects.PutFile(ctx, f.Path, sliceKey, ""); err != nil {
			return nil, err
		}
		slices = append(slices, map[string]any{
			"title":       f.Title,
			"object_name": sliceKey,
		})
	}

	output := map[string]any{
		"slice_count": len(slices),
		"slices":      slices,
	}
	track.complete(ctx, "video slicing complete", output)
	track.update(ctx, taskstate.StatusSuccess, 100, "video slicing complete", "")
	o.reporter.Progress(ctx, job.jobID(), 100, taskstate.StageSlice, "video slicing complete")

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
