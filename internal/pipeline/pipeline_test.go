package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vidfetch/vidfetch/internal/domain"
)

const testURL = "https://www.youtube.com/watch?v=abc123XYZ_"

type fakeEngine struct {
	meta    *domain.VideoMetadata
	metaErr error
	method  domain.RetrievalMethod
	fetched []string // destPaths fetched into
}

func (f *fakeEngine) FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, domain.RetrievalMethod, error) {
	if f.metaErr != nil {
		return nil, "", f.metaErr
	}
	return f.meta, f.method, nil
}

func (f *fakeEngine) FetchMediaToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, destPath string) (string, domain.RetrievalMethod, error) {
	f.fetched = append(f.fetched, destPath)
	if err := os.WriteFile(destPath, []byte("raw-media"), 0644); err != nil {
		return "", "", err
	}
	return destPath, f.method, nil
}

type fakeMedia struct {
	audioCalls, videoCalls, extractCalls, burnCalls int
}

func (f *fakeMedia) TranscodeAudio(ctx context.Context, in, out string) error {
	f.audioCalls++
	return os.WriteFile(out, []byte("mp3-data"), 0644)
}

func (f *fakeMedia) TranscodeVideo(ctx context.Context, in, out, quality string) error {
	f.videoCalls++
	return os.WriteFile(out, []byte("mp4-data"), 0644)
}

func (f *fakeMedia) ExtractAudio(ctx context.Context, in, out string) error {
	f.extractCalls++
	return os.WriteFile(out, []byte("wav-data"), 0644)
}

func (f *fakeMedia) BurnSubtitles(ctx context.Context, video, sub, out string) error {
	f.burnCalls++
	return os.WriteFile(out, []byte("mp4-subbed"), 0644)
}

type fakeTranslator struct {
	available bool
	err       error
	calls     int
}

func (f *fakeTranslator) Available() bool { return f.available }

func (f *fakeTranslator) TranscribeAndTranslate(ctx context.Context, audioPath, target, source string) (*domain.TranslationOutcome, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sub := audioPath + "_translated.srt"
	if err := os.WriteFile(sub, []byte("1\n00:00:00,000 --> 00:01:00,000\nhola"), 0644); err != nil {
		return nil, err
	}
	return &domain.TranslationOutcome{TranslatedText: "hola", SubtitlePath: sub}, nil
}

type fakeStore struct{ published []string }

func (f *fakeStore) Publish(ctx context.Context, filePath string) (string, error) {
	f.published = append(f.published, filePath)
	return "/downloads/" + filepath.Base(filePath), nil
}

type fakeHistory struct{ records []*domain.DownloadRecord }

func (f *fakeHistory) Create(ctx context.Context, rec *domain.DownloadRecord) error {
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) Update(ctx context.Context, rec *domain.DownloadRecord) error { return nil }

func testPipeline(t *testing.T, translator Translator) (*Pipeline, *fakeEngine, *fakeMedia, *fakeStore, *fakeHistory) {
	t.Helper()
	engine := &fakeEngine{
		meta:   &domain.VideoMetadata{ID: "abc123XYZ_", Title: "My Video! (Official)"},
		method: domain.MethodPrimary,
	}
	proc := &fakeMedia{}
	store := &fakeStore{}
	history := &fakeHistory{}
	cfg := Config{TempDir: filepath.Join(t.TempDir(), "temp"), DownloadsDir: filepath.Join(t.TempDir(), "downloads")}
	return New(cfg, engine, proc, translator, store, history), engine, proc, store, history
}

func TestAudioDownload(t *testing.T) {
	p, _, proc, _, _ := testPipeline(t, &fakeTranslator{})

	resp, err := p.Run(context.Background(), domain.DownloadRequest{URL: testURL, Format: "mp3", Quality: "highest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(resp.Files))
	}
	f := resp.Files[0]
	if f.Format != "mp3" || f.Translated {
		t.Errorf("artifact = %+v, want untranslated mp3", f)
	}
	if proc.audioCalls != 1 {
		t.Errorf("audio transcodes = %d, want 1", proc.audioCalls)
	}
	if f.Size == 0 {
		t.Error("artifact size must be non-zero")
	}
}

func TestHighestQualityRenamesWithoutReencode(t *testing.T) {
	p, engine, proc, _, _ := testPipeline(t, &fakeTranslator{})

	resp, err := p.Run(context.Background(), domain.DownloadRequest{URL: testURL, Format: "mp4", Quality: "highest"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proc.videoCalls != 0 {
		t.Error("highest quality must not re-encode")
	}
	if resp.Files[0].Quality != "highest" {
		t.Errorf("quality = %q", resp.Files[0].Quality)
	}
	// The temp file was renamed away.
	if len(engine.fetched) != 1 {
		t.Fatalf("fetches = %d", len(engine.fetched))
	}
	if _, err := os.Stat(engine.fetched[0]); !os.IsNotExist(err) {
		t.Error("temp file must be gone after rename")
	}
}

func TestTranslatedVideoProducesSecondArtifact(t *testing.T) {
	p, _, proc, store, _ := testPipeline(t, &fakeTranslator{available: true})

	resp, err := p.Run(context.Background(), domain.DownloadRequest{
		URL: testURL, Format: "mp4", Quality: "720p", TranslateTo: "es",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(resp.Files))
	}
	second := resp.Files[1]
	if !second.Translated {
		t.Error("second artifact must be translated")
	}
	if !strings.Contains(second.Filename, "_es") {
		t.Errorf("filename = %q, want language suffix", second.Filename)
	}
	if proc.videoCalls != 1 || proc.extractCalls != 1 || proc.burnCalls != 1 {
		t.Errorf("codec calls = %+v", proc)
	}
	if len(store.published) != 2 {
		t.Errorf("published = %d artifacts, want 2", len(store.published))
	}
}

func TestTranslationWithoutCredentialSoftSkips(t *testing.T) {
	translator := &fakeTranslator{available: false}
	p, _, _, _, _ := testPipeline(t, translator)

	resp, err := p.Run(context.Background(), domain.DownloadRequest{
		URL: testURL, Format: "mp4", Quality: "720p", TranslateTo: "es",
	})
	if err != nil {
		t.Fatalf("missing credential must not fail the request: %v", err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("files = %d, want primary artifact only", len(resp.Files))
	}
	if translator.calls != 0 {
		t.Error("translator must not be called without a credential")
	}
}

func TestTranslationFailureSoftSkips(t *testing.T) {
	translator := &fakeTranslator{available: true, err: errors.New("api down")}
	p, _, _, _, _ := testPipeline(t, translator)

	resp, err := p.Run(context.Background(), domain.DownloadRequest{
		URL: testURL, Format: "mp4", Quality: "720p", TranslateTo: "es",
	})
	if err != nil {
		t.Fatalf("translation failure must not fail the request: %v", err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(resp.Files))
	}
}

func TestAudioTranslationProducesNoSecondArtifact(t *testing.T) {
	// Subtitles only make sense for video output.
	p, _, proc, _, _ := testPipeline(t, &fakeTranslator{available: true})

	resp, err := p.Run(context.Background(), domain.DownloadRequest{
		URL: testURL, Format: "mp3", Quality: "highest", TranslateTo: "es",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(resp.Files))
	}
	if proc.burnCalls != 0 {
		t.Error("mp3 output must not mux subtitles")
	}
}

func TestMetadataFailurePropagates(t *testing.T) {
	p, engine, _, _, history := testPipeline(t, &fakeTranslator{})
	engine.metaErr = domain.ErrUnavailable

	_, err := p.Run(context.Background(), domain.DownloadRequest{URL: testURL, Format: "mp4", Quality: "highest"})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if len(history.records) != 0 {
		t.Error("no history record should exist when metadata fails")
	}
}

func TestHistoryRecordsRun(t *testing.T) {
	p, _, _, _, history := testPipeline(t, &fakeTranslator{})

	if _, err := p.Run(context.Background(), domain.DownloadRequest{URL: testURL, Format: "mp3", Quality: "highest"}); err != nil {
		t.Fatal(err)
	}
	if len(history.records) != 1 {
		t.Fatalf("history records = %d, want 1", len(history.records))
	}
	rec := history.records[0]
	if rec.VideoID != "abc123XYZ_" || rec.Format != "mp3" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Status != domain.DownloadStatusDone {
		t.Errorf("status = %s, want done", rec.Status)
	}
}

func TestTempFilesCleanedUp(t *testing.T) {
	p, engine, _, _, _ := testPipeline(t, &fakeTranslator{available: true})

	if _, err := p.Run(context.Background(), domain.DownloadRequest{
		URL: testURL, Format: "mp4", Quality: "720p", TranslateTo: "es",
	}); err != nil {
		t.Fatal(err)
	}
	for _, path := range engine.fetched {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("temp file %s must be cleaned up", path)
		}
	}
	entries, err := os.ReadDir(p.cfg.TempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not empty after run: %v", entries)
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"My Video! (Official)", "my_video___official_"},
		{"already_safe", "already_safe"},
		{"Ünïcode", "_n_code"},
	}
	for _, tt := range tests {
		if got := sanitizeTitle(tt.in); got != tt.want {
			t.Errorf("sanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConcurrentIdenticalRequestsGetDistinctTempPaths(t *testing.T) {
	p, engine, _, _, _ := testPipeline(t, &fakeTranslator{})

	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background(), domain.DownloadRequest{URL: testURL, Format: "mp3", Quality: "highest"}); err != nil {
			t.Fatal(err)
		}
	}
	if len(engine.fetched) != 2 {
		t.Fatalf("fetches = %d", len(engine.fetched))
	}
	if engine.fetched[0] == engine.fetched[1] {
		t.Error("identical requests must get distinct temp paths")
	}
}
