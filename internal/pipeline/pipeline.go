// Package pipeline orchestrates one download request end to end:
// metadata, retrieval, processing, optional translation, publishing
// and cleanup.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/media"
)

// Engine retrieves metadata and media, reporting which strategy served
// the request.
type Engine interface {
	FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, domain.RetrievalMethod, error)
	FetchMediaToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, destPath string) (string, domain.RetrievalMethod, error)
}

// Media is the codec-tool surface the pipeline needs.
type Media interface {
	TranscodeAudio(ctx context.Context, inputPath, outputPath string) error
	TranscodeVideo(ctx context.Context, inputPath, outputPath, quality string) error
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
	BurnSubtitles(ctx context.Context, videoPath, subtitlePath, outputPath string) error
}

// Translator produces subtitle artifacts; Available gates the whole
// translation step.
type Translator interface {
	Available() bool
	TranscribeAndTranslate(ctx context.Context, audioPath, targetLanguage, sourceLanguage string) (*domain.TranslationOutcome, error)
}

// Store publishes a finished artifact and returns its download URL.
type Store interface {
	Publish(ctx context.Context, filePath string) (string, error)
}

// History records pipeline runs for the history endpoint.
type History interface {
	Create(ctx context.Context, rec *domain.DownloadRecord) error
	Update(ctx context.Context, rec *domain.DownloadRecord) error
}

// Config holds the pipeline's filesystem layout.
type Config struct {
	TempDir      string
	DownloadsDir string
}

// Pipeline wires the collaborators together. history may be nil.
type Pipeline struct {
	cfg        Config
	engine     Engine
	media      Media
	translator Translator
	store      Store
	history    History
}

// New creates a Pipeline.
func New(cfg Config, engine Engine, proc Media, translator Translator, store Store, history History) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		engine:     engine,
		media:      proc,
		translator: translator,
		store:      store,
		history:    history,
	}
}

// Metadata resolves video metadata for the extract endpoint.
func (p *Pipeline) Metadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, domain.RetrievalMethod, error) {
	return p.engine.FetchMetadata(ctx, rawURL)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)

// sanitizeTitle turns a video title into a filesystem-safe slug.
func sanitizeTitle(title string) string {
	return strings.ToLower(unsafeChars.ReplaceAllString(title, "_"))
}

// Run executes the full download pipeline for one request.
func (p *Pipeline) Run(ctx context.Context, req domain.DownloadRequest) (*domain.DownloadResponse, error) {
	for _, dir := range []string{p.cfg.TempDir, p.cfg.DownloadsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	meta, _, err := p.engine.FetchMetadata(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	rec := domain.NewDownloadRecord(uuid.NewString(), meta.ID, req.URL, req.Format, req.Quality)
	rec.Title = meta.Title
	p.recordCreate(ctx, rec)

	resp, err := p.run(ctx, req, meta)
	if err != nil {
		rec.MarkError(err.Error())
		p.recordUpdate(ctx, rec)
		return nil, err
	}

	rec.MarkDone(resp.Method, len(resp.Files) > 1)
	p.recordUpdate(ctx, rec)
	return resp, nil
}

func (p *Pipeline) run(ctx context.Context, req domain.DownloadRequest, meta *domain.VideoMetadata) (*domain.DownloadResponse, error) {
	slug := sanitizeTitle(meta.Title)
	// Temp paths carry a per-request token so concurrent requests for
	// the same video never collide.
	token := uuid.NewString()

	kind := domain.KindVideo
	tempExt := "mp4"
	if req.Format == "mp3" {
		kind = domain.KindAudio
		tempExt = "webm"
	}
	tempPath := filepath.Join(p.cfg.TempDir, fmt.Sprintf("%s_%s.%s", meta.ID, token, tempExt))

	var tempFiles []string
	defer func() { p.cleanup(tempFiles) }()

	produced, method, err := p.engine.FetchMediaToFile(ctx, req.URL, kind, req.Quality, tempPath)
	if err != nil {
		return nil, err
	}
	tempFiles = append(tempFiles, produced)

	finalPath := filepath.Join(p.cfg.DownloadsDir, fmt.Sprintf("%s_%s.%s", slug, req.Quality, req.Format))

	switch {
	case req.Format == "mp3":
		if err := p.media.TranscodeAudio(ctx, produced, finalPath); err != nil {
			return nil, err
		}
	case req.Quality != "highest":
		if err := p.media.TranscodeVideo(ctx, produced, finalPath, req.Quality); err != nil {
			return nil, err
		}
	default:
		// Highest quality keeps the retrieved stream as-is: a rename,
		// not a re-encode.
		if err := os.Rename(produced, finalPath); err != nil {
			return nil, fmt.Errorf("move media to final path: %w", err)
		}
		tempFiles = tempFiles[:len(tempFiles)-1]
	}

	downloadURL, err := p.store.Publish(ctx, finalPath)
	if err != nil {
		return nil, fmt.Errorf("publish artifact: %w", err)
	}

	files := []domain.DownloadArtifact{{
		Filename:    filepath.Base(finalPath),
		Size:        media.SizeOf(finalPath),
		Format:      req.Format,
		Quality:     req.Quality,
		Translated:  false,
		DownloadURL: downloadURL,
	}}

	if req.TranslateTo != "" {
		if translated := p.translateStep(ctx, req, meta.ID, token, slug, finalPath, &tempFiles); translated != nil {
			files = append(files, *translated)
		}
	}

	return &domain.DownloadResponse{
		Success: true,
		Files:   files,
		Method:  method,
	}, nil
}

// translateStep runs the whole translation branch best-effort: any
// failure is logged and swallowed, the caller proceeds with the
// primary artifact only.
func (p *Pipeline) translateStep(ctx context.Context, req domain.DownloadRequest, videoID, token, slug, finalPath string, tempFiles *[]string) *domain.DownloadArtifact {
	if !p.translator.Available() {
		slog.Warn("translation requested but no credential is configured", "video_id", videoID)
		return nil
	}

	audioPath := finalPath
	if req.Format != "mp3" {
		audioPath = filepath.Join(p.cfg.TempDir, fmt.Sprintf("%s_%s_audio.wav", videoID, token))
		if err := p.media.ExtractAudio(ctx, finalPath, audioPath); err != nil {
			slog.Error("translation skipped: audio extraction failed", "video_id", videoID, "error", err)
			return nil
		}
		*tempFiles = append(*tempFiles, audioPath)
	}

	outcome, err := p.translator.TranscribeAndTranslate(ctx, audioPath, req.TranslateTo, "")
	if err != nil {
		slog.Error("translation failed", "video_id", videoID, "target", req.TranslateTo, "error", err)
		return nil
	}
	if outcome.SubtitlePath != "" {
		*tempFiles = append(*tempFiles, outcome.SubtitlePath)
	}

	if outcome.SubtitlePath == "" || req.Format != "mp4" {
		return nil
	}

	translatedPath := filepath.Join(p.cfg.DownloadsDir, fmt.Sprintf("%s_%s_%s.mp4", slug, req.Quality, req.TranslateTo))
	if err := p.media.BurnSubtitles(ctx, finalPath, outcome.SubtitlePath, translatedPath); err != nil {
		slog.Error("subtitle muxing failed", "video_id", videoID, "error", err)
		return nil
	}

	downloadURL, err := p.store.Publish(ctx, translatedPath)
	if err != nil {
		slog.Error("publishing translated artifact failed", "video_id", videoID, "error", err)
		return nil
	}

	return &domain.DownloadArtifact{
		Filename:    filepath.Base(translatedPath),
		Size:        media.SizeOf(translatedPath),
		Format:      req.Format,
		Quality:     req.Quality,
		Translated:  true,
		DownloadURL: downloadURL,
	}
}

// cleanup removes temp files best-effort. Failures are logged, never
// fatal.
func (p *Pipeline) cleanup(paths []string) {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			slog.Warn("temp file cleanup failed", "path", path, "error", err)
		}
	}
}

func (p *Pipeline) recordCreate(ctx context.Context, rec *domain.DownloadRecord) {
	if p.history == nil {
		return
	}
	if err := p.history.Create(ctx, rec); err != nil {
		slog.Warn("recording download start failed", "video_id", rec.VideoID, "error", err)
	}
}

func (p *Pipeline) recordUpdate(ctx context.Context, rec *domain.DownloadRecord) {
	if p.history == nil {
		return
	}
	if err := p.history.Update(ctx, rec); err != nil {
		slog.Warn("recording download outcome failed", "video_id", rec.VideoID, "error", err)
	}
}
