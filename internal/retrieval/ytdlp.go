package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// ProxySource yields proxy endpoints for external-tool invocations and
// receives the outcome of each use.
type ProxySource interface {
	Next() (string, bool)
	ReportSuccess(proxyURL string)
	ReportFailure(proxyURL string)
}

// ToolConfig configures the external-tool strategy.
type ToolConfig struct {
	Path               string        // yt-dlp binary
	CookiesFromBrowser string        // e.g. "firefox", empty to skip
	StaticProxy        string        // env-configured fallback proxy
	Timeout            time.Duration // per-invocation bound
}

// ExternalTool is the subprocess-based fallback strategy. It is slower
// than the in-process client but survives upstream changes that break
// the client's extractor.
type ExternalTool struct {
	cfg  ToolConfig
	pool ProxySource
}

// NewExternalTool creates the fallback strategy. pool may be nil when
// no proxy pool is configured.
func NewExternalTool(cfg ToolConfig, pool ProxySource) *ExternalTool {
	if cfg.Path == "" {
		cfg.Path = "yt-dlp"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &ExternalTool{cfg: cfg, pool: pool}
}

// toolMetadata is the subset of the tool's --dump-json output we rely
// on. Anything outside this schema is rejected rather than propagated
// as a partial structure.
type toolMetadata struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Duration  float64      `json:"duration"`
	Thumbnail string       `json:"thumbnail"`
	Formats   []toolFormat `json:"formats"`
}

type toolFormat struct {
	FormatID string `json:"format_id"`
	Ext      string `json:"ext"`
	VCodec   string `json:"vcodec"`
	ACodec   string `json:"acodec"`
	Height   int    `json:"height"`
	URL      string `json:"url"`
	Format   string `json:"format_note"`
}

// hardeningArgs is the fixed argument set applied to every invocation:
// randomized user-agent, browser headers, and a multi-client
// extraction strategy that dodges per-client bot signatures.
func (t *ExternalTool) hardeningArgs() []string {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"--no-cache-dir",
		"--socket-timeout", "30",
		"--retries", "3",
		"--user-agent", randomAgent(),
		"--add-header", "Accept-Language:en-US,en;q=0.9",
		"--add-header", "Accept:*/*",
		"--add-header", "Sec-Fetch-Mode:navigate",
		"--extractor-args", "youtube:player_client=android,web,ios",
	}
	if t.cfg.CookiesFromBrowser != "" {
		args = append(args, "--cookies-from-browser", t.cfg.CookiesFromBrowser)
	}
	return args
}

// pickProxy resolves the proxy for one invocation: pool first, then the
// env-configured static proxy, then none. fromPool tells the caller
// whether the outcome must be reported back.
func (t *ExternalTool) pickProxy() (proxyURL string, fromPool bool) {
	if t.pool != nil {
		if p, ok := t.pool.Next(); ok {
			return p, true
		}
	}
	return t.cfg.StaticProxy, false
}

// run executes the tool and reports the proxy outcome when the proxy
// came from the pool.
func (t *ExternalTool) run(ctx context.Context, args []string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	proxyURL, fromPool := t.pickProxy()
	if proxyURL != "" {
		args = append(args, "--proxy", proxyURL)
	}

	cmd := exec.CommandContext(ctx, t.cfg.Path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if fromPool {
		if err != nil {
			t.pool.ReportFailure(proxyURL)
		} else {
			t.pool.ReportSuccess(proxyURL)
		}
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.New("external tool timed out")
		}
		detail := stderr.String()
		if detail == "" {
			detail = err.Error()
		}
		return nil, fmt.Errorf("external tool: %s", detail)
	}
	return stdout.Bytes(), nil
}

// FetchMetadata resolves metadata via the tool's JSON dump mode.
func (t *ExternalTool) FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	args := append(t.hardeningArgs(), "--dump-json", "--no-download", rawURL)
	out, err := t.run(ctx, args)
	if err != nil {
		return nil, err
	}

	var info toolMetadata
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse tool metadata: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: tool metadata missing video id", domain.ErrOutputMissing)
	}

	meta := &domain.VideoMetadata{
		ID:        info.ID,
		Title:     info.Title,
		Duration:  int(info.Duration),
		Thumbnail: info.Thumbnail,
	}
	for _, f := range info.Formats {
		hasVideo := f.VCodec != "" && f.VCodec != "none"
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		if f.URL == "" || (!hasAudio && !hasVideo) {
			continue
		}
		if f.FormatID == "" {
			continue
		}
		quality := f.Format
		if quality == "" && f.Height > 0 {
			quality = fmt.Sprintf("%dp", f.Height)
		}
		if quality == "" {
			quality = "unknown"
		}
		meta.Formats = append(meta.Formats, domain.MediaFormat{
			Identifier: f.FormatID,
			Quality:    quality,
			Container:  f.Ext,
			HasAudio:   hasAudio,
			HasVideo:   hasVideo,
			SourceURL:  f.URL,
		})
	}
	return meta, nil
}

var qualityHeight = regexp.MustCompile(`^(\d+)p`)

// formatSelector builds the tool's -f expression for the requested
// kind and quality.
func formatSelector(kind domain.MediaKind, quality string) string {
	if kind == domain.KindAudio {
		return "bestaudio[ext=m4a]/bestaudio/best"
	}
	if quality == "" || quality == "highest" {
		return "bestvideo+bestaudio/best"
	}
	if m := qualityHeight.FindStringSubmatch(quality); len(m) > 1 {
		return fmt.Sprintf("bestvideo[height<=%s]+bestaudio/best[height<=%s]", m[1], m[1])
	}
	return "bestvideo+bestaudio/best"
}

// FetchToFile downloads via the tool into files under outputBase. The
// tool picks the extension, so the produced file is discovered by glob
// and its path returned.
func (t *ExternalTool) FetchToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, outputBase string) (string, error) {
	args := append(t.hardeningArgs(),
		"-f", formatSelector(kind, quality),
		"-o", outputBase+".%(ext)s",
	)
	if kind == domain.KindVideo {
		args = append(args, "--merge-output-format", "mp4")
	}
	args = append(args, rawURL)

	if _, err := t.run(ctx, args); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(outputBase + ".*")
	if err != nil || len(matches) == 0 {
		slog.Warn("external tool produced no discoverable output", "base", outputBase)
		return "", fmt.Errorf("%w: no file at %s", domain.ErrOutputMissing, outputBase)
	}
	return matches[0], nil
}

// Check verifies the tool binary is installed and executable.
func (t *ExternalTool) Check() error {
	if err := exec.Command(t.cfg.Path, "--version").Run(); err != nil {
		return fmt.Errorf("external tool not found or not executable: %w", err)
	}
	return nil
}
