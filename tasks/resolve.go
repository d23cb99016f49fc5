package tasks

import (
	"context"

	"github.com/sliceflow/pipeline/taskstate"
)

// outputKeyField is the output_data field extraction stages record
// their artifact location under.
const outputKeyField = "minio_path"

// resolveAudioLocation finds the audio artifact for a video through a
// tiered fallback, first match wins:
//
//  1. the explicit path on the video's processing metadata,
//  2. the most recently completed SUCCESS audio-extraction task's
//     recorded output location,
//  3. nothing: ResolutionError, a hard stop.
func (o *Orchestrator) resolveAudioLocation(ctx context.Context, videoID int64) (string, error) {
	path, err := o.store.VideoAudioPath(ctx, videoID)
	if err != nil {
		return "", err
	}
	if path != "" {
		return path, nil
	}

	task, err := o.store.LatestCompleted(ctx, videoID, taskstate.StageExtractAudio)
	if err != nil {
		return "", err
	}
	if task != nil {
		if loc, _ := task.OutputData[outputKeyField].(string); loc != "" {
			return loc, nil
		}
	}

	return "", &ResolutionError{VideoID: videoID, Artifact: "audio"}
}
