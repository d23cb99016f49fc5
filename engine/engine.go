// Package engine defines the external transcription engine collaborator.
//
// The pipeline hands the engine a local audio file and receives back a
// structured result describing the generated subtitle track. The
// transcription algorithm itself lives outside this subsystem.
package engine

import "context"

// Request identifies the audio artifact to transcribe and its owners.
type Request struct {
	AudioPath string `json:"audio_path"` // local scratch file
	VideoID   string `json:"video_id"`
	ProjectID int64  `json:"project_id"`
	UserID    int64  `json:"user_id"`
}

// Result is the engine's structured success payload.
type Result struct {
	SubtitleFilename string         `json:"srt_filename"`
	ObjectKey        string         `json:"object_name"`
	StoragePath      string         `json:"minio_path"`
	TotalSegments    int            `json:"total_segments"`
	ProcessingStats  map[string]any `json:"processing_stats,omitempty"`
	Params           map[string]any `json:"asr_params,omitempty"`
}

// Error is a failure reported by the engine, propagated as the job's
// terminal error with the engine's own message.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Engine transcribes an audio file into a subtitle track.
type Engine interface {
	GenerateSubtitles(ctx context.Context, req *Request) (*Result, error)
}
