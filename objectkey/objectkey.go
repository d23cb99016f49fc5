// Package objectkey maps artifact identities to hierarchical object
// storage keys.
//
// Every key is a deterministic function of its inputs, so the same
// artifact always resolves to the same location regardless of which
// pipeline stage asks. The single exception is SliceKey, which mixes in
// a random discriminator so repeated slicing runs on the same video
// never overwrite each other.
//
// Keys follow the layout:
//
//	users/{user}/projects/{project}/{category}/{name}
package objectkey

import (
	"fmt"

	"github.com/google/uuid"
)

// VideoKey returns the key for an uploaded or downloaded source video.
func VideoKey(userID, projectID int64, filename string) string {
	return fmt.Sprintf("users/%d/projects/%d/videos/%s", userID, projectID, filename)
}

// AudioKey returns the key for the audio track extracted from a video.
// Format defaults to "wav" when empty.
func AudioKey(userID, projectID int64, videoID string, format string) string {
	if format == "" {
		format = "wav"
	}
	return fmt.Sprintf("users/%d/projects/%d/audio/%s.%s", userID, projectID, videoID, format)
}

// ThumbnailKey returns the key for a video's thumbnail image.
func ThumbnailKey(userID, projectID int64, videoID string) string {
	return fmt.Sprintf("users/%d/projects/%d/thumbnails/%s.jpg", userID, projectID, videoID)
}

// SegmentKey returns the key for one segment of a split audio track.
// Segment indices are zero-padded to keep lexical and numeric order
// aligned when listing.
func SegmentKey(userID, projectID int64, videoID string, index int) string {
	return fmt.Sprintf("users/%d/projects/%d/splits/%s/segment_%03d.wav", userID, projectID, videoID, index)
}

// SubtitleKey returns the key for a video's generated subtitle track.
func SubtitleKey(userID, projectID int64, videoID string) string {
	return fmt.Sprintf("users/%d/projects/%d/subtitles/%s.srt", userID, projectID, videoID)
}

// TranscriptKey returns the key for the raw transcription result
// produced alongside the subtitle track.
func TranscriptKey(userID, projectID int64, videoID string) string {
	return fmt.Sprintf("users/%d/projects/%d/asr_results/%s_asr_result.json", userID, projectID, videoID)
}

// SliceKey returns a key for a video slice. Unlike the other
// categories the key is intentionally non-deterministic: each call
// allocates a fresh UUID directory so repeated slicing of the same
// video cannot collide.
func SliceKey(userID, projectID int64, filename string) string {
	return fmt.Sprintf("users/%d/projects/%d/slices/%s/%s", userID, projectID, uuid.NewString(), filename)
}
