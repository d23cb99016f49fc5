// Package storage provides the object storage gateway for the media
// pipeline.
//
// The gateway wraps an S3-compatible backend (MinIO) and exposes the
// operations the pipeline stages need: uploads by path or byte buffer,
// existence probes, idempotent deletes, time-limited presigned GET URLs,
// and idempotent bucket provisioning. All blocking SDK calls are
// dispatched through a bounded executor so one shared gateway instance
// can serve concurrent jobs without unbounded threads.
package storage

import (
	"fmt"
	"path/filepath"
)

// Config holds the object storage backend settings.
type Config struct {
	Endpoint   string `json:"endpoint" yaml:"endpoint"`       // host:port of the backend
	AccessKey  string `json:"access_key" yaml:"access_key"`   // access key ID
	SecretKey  string `json:"secret_key" yaml:"secret_key"`   // secret access key
	Bucket     string `json:"bucket" yaml:"bucket"`           // bucket name
	UseSSL     bool   `json:"use_ssl" yaml:"use_ssl"`         // TLS to the backend
	PublicHost string `json:"public_host" yaml:"public_host"` // externally visible host[:port], empty = no rewrite
}

// Error describes a failed storage operation.
type Error struct {
	Op  string // operation, e.g. "put", "signed_url"
	Key string // object key, may be empty
	Err error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

var contentTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".flac": "audio/flac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".srt":  "application/x-subrip",
	".json": "application/json",
}

// ContentTypeFor returns the content type for a key based on its
// extension, falling back to application/octet-stream.
func ContentTypeFor(key string) string {
	if ct, ok := contentTypes[filepath.Ext(key)]; ok {
		return ct
	}
	return "application/octet-stream"
}
