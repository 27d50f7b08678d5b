// Package storage publishes finished artifacts and returns the URL
// clients download them from.
package storage

import (
	"context"
	"path/filepath"
	"strings"
)

// Store publishes a finished artifact file.
type Store interface {
	Publish(ctx context.Context, filePath string) (string, error)
}

// Local keeps artifacts where the pipeline wrote them and serves them
// from the downloads route.
type Local struct{}

// NewLocal creates a Local store.
func NewLocal() *Local {
	return &Local{}
}

// Publish returns the serving path for a file already in the downloads
// directory.
func (l *Local) Publish(ctx context.Context, filePath string) (string, error) {
	return "/downloads/" + filepath.Base(filePath), nil
}

// contentType maps artifact extensions onto MIME types.
func contentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".webm":
		return "video/webm"
	case ".srt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
