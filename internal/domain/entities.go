// Package domain contains the core business entities and types.
package domain

import (
	"time"
)

// RetrievalMethod identifies which retrieval strategy produced the media.
type RetrievalMethod string

const (
	// MethodPrimary is the in-process client strategy.
	MethodPrimary RetrievalMethod = "primary"
	// MethodExternalTool is the yt-dlp subprocess fallback strategy.
	MethodExternalTool RetrievalMethod = "external-tool"
)

// MediaKind selects between video and audio-only retrieval.
type MediaKind string

const (
	KindVideo MediaKind = "video"
	KindAudio MediaKind = "audio"
)

// VideoIdentity is derived once from the input URL and used as a
// correlation key for temp-file naming. Immutable after creation.
type VideoIdentity struct {
	VideoID   string `json:"videoId"`
	SourceURL string `json:"sourceUrl"`
}

// MediaFormat represents one selectable encoding of a video.
type MediaFormat struct {
	Identifier string `json:"identifier"`
	Quality    string `json:"quality"`
	Container  string `json:"container"`
	HasAudio   bool   `json:"hasAudio"`
	HasVideo   bool   `json:"hasVideo"`
	SourceURL  string `json:"url"`
}

// VideoMetadata contains metadata about a video, fetched fresh per request.
type VideoMetadata struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Duration  int           `json:"duration"` // seconds
	Thumbnail string        `json:"thumbnail"`
	Formats   []MediaFormat `json:"formats"`
}

// DownloadArtifact is one finished, downloadable output file produced by
// the pipeline. Never mutated after creation.
type DownloadArtifact struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	Format      string `json:"format"`
	Quality     string `json:"quality"`
	Translated  bool   `json:"translated"`
	DownloadURL string `json:"downloadUrl"`
}

// TranslationOutcome is the ephemeral result of the translation augmenter,
// consumed immediately to burn subtitles and then discarded.
type TranslationOutcome struct {
	TranslatedText string
	SubtitlePath   string
}

// DownloadRequest is the expected JSON body for POST /api/download.
type DownloadRequest struct {
	URL         string `json:"url"`
	Format      string `json:"format"`  // "mp4" or "mp3"
	Quality     string `json:"quality"` // "highest" or a resolution label
	TranslateTo string `json:"translateTo,omitempty"`
}

// DownloadResponse is the JSON response for a successful download.
type DownloadResponse struct {
	Success           bool               `json:"success"`
	Files             []DownloadArtifact `json:"files"`
	Method            RetrievalMethod    `json:"method"`
	RemainingRequests int                `json:"remainingRequests"`
}

// ExtractRequest is the expected JSON body for POST /api/extract.
type ExtractRequest struct {
	URL string `json:"url"`
}

// ExtractResponse is the JSON response for a metadata extraction.
type ExtractResponse struct {
	Success           bool           `json:"success"`
	Data              *VideoMetadata `json:"data"`
	RemainingRequests int            `json:"remainingRequests"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error             string `json:"error"`
	RemainingRequests *int   `json:"remainingRequests,omitempty"`
	ResetTime         *int64 `json:"resetTime,omitempty"`
}

// DownloadStatus tracks the lifecycle of a recorded download.
type DownloadStatus string

const (
	DownloadStatusProcessing DownloadStatus = "processing"
	DownloadStatusDone       DownloadStatus = "done"
	DownloadStatusError      DownloadStatus = "error"
)

// DownloadRecord is one row of the download history.
type DownloadRecord struct {
	ID          string          `json:"id"`
	VideoID     string          `json:"video_id"`
	URL         string          `json:"url"`
	Title       string          `json:"title,omitempty"`
	Format      string          `json:"format"`
	Quality     string          `json:"quality"`
	Method      RetrievalMethod `json:"method,omitempty"`
	Status      DownloadStatus  `json:"status"`
	Translated  bool            `json:"translated"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewDownloadRecord creates a history record in the processing state.
func NewDownloadRecord(id, videoID, url, format, quality string) *DownloadRecord {
	return &DownloadRecord{
		ID:        id,
		VideoID:   videoID,
		URL:       url,
		Format:    format,
		Quality:   quality,
		Status:    DownloadStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
}

// MarkDone marks the record completed with the winning retrieval method.
func (r *DownloadRecord) MarkDone(method RetrievalMethod, translated bool) {
	r.Status = DownloadStatusDone
	r.Method = method
	r.Translated = translated
	now := time.Now().UTC()
	r.CompletedAt = &now
}

// MarkError marks the record failed with the error message.
func (r *DownloadRecord) MarkError(errMsg string) {
	r.Status = DownloadStatusError
	r.Error = errMsg
	now := time.Now().UTC()
	r.CompletedAt = &now
}
