package retrieval

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// browserAgents is the pool of user-agents rotated across primary
// requests to avoid a single static automation fingerprint.
var browserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// browserTransport decorates each request with a rotated user-agent and
// a standard browser header set.
type browserTransport struct {
	next   http.RoundTripper
	cursor atomic.Uint64
}

func (t *browserTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	idx := t.cursor.Add(1) % uint64(len(browserAgents))
	clone.Header.Set("User-Agent", browserAgents[idx])
	clone.Header.Set("Accept-Language", "en-US,en;q=0.9")
	clone.Header.Set("Accept", "*/*")
	return t.next.RoundTrip(clone)
}

// Primary is the in-process retrieval strategy. It talks to the
// upstream directly, which is fast but fragile to upstream changes.
type Primary struct {
	client *youtube.Client
}

// NewPrimary creates the in-process client with browser-like headers
// on its transport.
func NewPrimary(timeout time.Duration) *Primary {
	transport := &browserTransport{next: http.DefaultTransport}
	return &Primary{
		client: &youtube.Client{
			HTTPClient: &http.Client{
				Transport: transport,
				Timeout:   timeout,
			},
		},
	}
}

// FetchMetadata resolves video metadata without downloading anything.
func (p *Primary) FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, error) {
	video, err := p.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("resolve video: %w", err)
	}
	return mapMetadata(video), nil
}

func mapMetadata(video *youtube.Video) *domain.VideoMetadata {
	meta := &domain.VideoMetadata{
		ID:       video.ID,
		Title:    video.Title,
		Duration: int(video.Duration.Seconds()),
	}
	if len(video.Thumbnails) > 0 {
		meta.Thumbnail = video.Thumbnails[0].URL
	}
	for i := range video.Formats {
		f := &video.Formats[i]
		hasAudio := f.AudioChannels > 0
		hasVideo := f.QualityLabel != ""
		if f.URL == "" || (!hasAudio && !hasVideo) {
			continue
		}
		meta.Formats = append(meta.Formats, domain.MediaFormat{
			Identifier: strconv.Itoa(f.ItagNo),
			Quality:    formatQuality(f),
			Container:  containerOf(f.MimeType),
			HasAudio:   hasAudio,
			HasVideo:   hasVideo,
			SourceURL:  f.URL,
		})
	}
	return meta
}

func formatQuality(f *youtube.Format) string {
	if f.QualityLabel != "" {
		return f.QualityLabel
	}
	if f.Quality != "" {
		return f.Quality
	}
	return "unknown"
}

// containerOf extracts the container from a mime type such as
// "video/mp4; codecs=\"avc1.4d401f\"".
func containerOf(mimeType string) string {
	mt := mimeType
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = mt[:i]
	}
	if i := strings.Index(mt, "/"); i >= 0 {
		return strings.TrimSpace(mt[i+1:])
	}
	return "unknown"
}

// FetchToFile downloads the selected format into destPath.
func (p *Primary) FetchToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, destPath string) error {
	video, err := p.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("resolve video: %w", err)
	}

	format, err := selectFormat(video.Formats, kind, quality)
	if err != nil {
		return err
	}

	stream, _, err := p.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("stream to file: %w", err)
	}
	return nil
}

// selectFormat picks a format for the requested kind and quality.
// Audio requests take the best audio-only stream, "highest" takes the
// best combined audio+video stream (best video-only as a last resort),
// and an explicit label is matched against the format's quality label.
func selectFormat(formats []youtube.Format, kind domain.MediaKind, quality string) (*youtube.Format, error) {
	usable := make([]*youtube.Format, 0, len(formats))
	for i := range formats {
		if formats[i].URL != "" {
			usable = append(usable, &formats[i])
		}
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("%w: no resolvable formats", domain.ErrUpstreamChanged)
	}

	isAudioOnly := func(f *youtube.Format) bool { return f.AudioChannels > 0 && f.QualityLabel == "" }
	isCombined := func(f *youtube.Format) bool { return f.AudioChannels > 0 && f.QualityLabel != "" }
	isVideo := func(f *youtube.Format) bool { return f.QualityLabel != "" }

	byBitrate := func(set []*youtube.Format) *youtube.Format {
		sort.Slice(set, func(i, j int) bool {
			if set[i].Height != set[j].Height {
				return set[i].Height > set[j].Height
			}
			return set[i].Bitrate > set[j].Bitrate
		})
		return set[0]
	}

	filter := func(pred func(*youtube.Format) bool) []*youtube.Format {
		var out []*youtube.Format
		for _, f := range usable {
			if pred(f) {
				out = append(out, f)
			}
		}
		return out
	}

	switch {
	case kind == domain.KindAudio:
		if set := filter(isAudioOnly); len(set) > 0 {
			return byBitrate(set), nil
		}
		if set := filter(func(f *youtube.Format) bool { return f.AudioChannels > 0 }); len(set) > 0 {
			return byBitrate(set), nil
		}
		return nil, fmt.Errorf("%w: no audio formats", domain.ErrUpstreamChanged)

	case quality == "" || quality == "highest":
		if set := filter(isCombined); len(set) > 0 {
			return byBitrate(set), nil
		}
		if set := filter(isVideo); len(set) > 0 {
			return byBitrate(set), nil
		}
		return nil, fmt.Errorf("%w: no video formats", domain.ErrUpstreamChanged)

	default:
		match := func(f *youtube.Format) bool { return f.QualityLabel == quality }
		if set := filter(func(f *youtube.Format) bool { return match(f) && f.AudioChannels > 0 }); len(set) > 0 {
			return byBitrate(set), nil
		}
		if set := filter(match); len(set) > 0 {
			return byBitrate(set), nil
		}
		// No exact label match, degrade to the best available.
		if set := filter(isCombined); len(set) > 0 {
			return byBitrate(set), nil
		}
		if set := filter(isVideo); len(set) > 0 {
			return byBitrate(set), nil
		}
		return nil, fmt.Errorf("%w: no video formats", domain.ErrUpstreamChanged)
	}
}

func randomAgent() string {
	return browserAgents[rand.Intn(len(browserAgents))]
}
