package retrieval

import (
	"testing"

	"github.com/kkdai/youtube/v2"

	"github.com/vidfetch/vidfetch/internal/domain"
)

func testFormats() []youtube.Format {
	return []youtube.Format{
		{ItagNo: 140, URL: "u1", MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2, Bitrate: 130000},
		{ItagNo: 251, URL: "u2", MimeType: `audio/webm; codecs="opus"`, AudioChannels: 2, Bitrate: 160000},
		{ItagNo: 22, URL: "u3", MimeType: `video/mp4`, QualityLabel: "720p", AudioChannels: 2, Height: 720, Bitrate: 2000000},
		{ItagNo: 18, URL: "u4", MimeType: `video/mp4`, QualityLabel: "360p", AudioChannels: 2, Height: 360, Bitrate: 600000},
		{ItagNo: 137, URL: "u5", MimeType: `video/mp4`, QualityLabel: "1080p", Height: 1080, Bitrate: 4000000},
		{ItagNo: 999, URL: "", QualityLabel: "4320p", Height: 4320}, // unresolvable
	}
}

func TestSelectFormatAudio(t *testing.T) {
	f, err := selectFormat(testFormats(), domain.KindAudio, "")
	if err != nil {
		t.Fatal(err)
	}
	if f.ItagNo != 251 {
		t.Errorf("itag = %d, want 251 (best audio-only bitrate)", f.ItagNo)
	}
}

func TestSelectFormatHighestPrefersCombined(t *testing.T) {
	f, err := selectFormat(testFormats(), domain.KindVideo, "highest")
	if err != nil {
		t.Fatal(err)
	}
	// 1080p is video-only here, so the best combined stream wins.
	if f.ItagNo != 22 {
		t.Errorf("itag = %d, want 22 (best combined A+V)", f.ItagNo)
	}
}

func TestSelectFormatExplicitLabel(t *testing.T) {
	f, err := selectFormat(testFormats(), domain.KindVideo, "360p")
	if err != nil {
		t.Fatal(err)
	}
	if f.ItagNo != 18 {
		t.Errorf("itag = %d, want 18", f.ItagNo)
	}
}

func TestSelectFormatUnknownLabelDegrades(t *testing.T) {
	f, err := selectFormat(testFormats(), domain.KindVideo, "144p")
	if err != nil {
		t.Fatal(err)
	}
	if f.ItagNo != 22 {
		t.Errorf("itag = %d, want best combined fallback 22", f.ItagNo)
	}
}

func TestSelectFormatNoUsable(t *testing.T) {
	formats := []youtube.Format{{ItagNo: 1, URL: ""}}
	if _, err := selectFormat(formats, domain.KindVideo, "highest"); err == nil {
		t.Fatal("expected error for unresolvable formats")
	}
}

func TestContainerOf(t *testing.T) {
	tests := []struct {
		mime string
		want string
	}{
		{`video/mp4; codecs="avc1.4d401f"`, "mp4"},
		{`audio/webm; codecs="opus"`, "webm"},
		{"video/3gpp", "3gpp"},
		{"garbage", "unknown"},
	}
	for _, tt := range tests {
		if got := containerOf(tt.mime); got != tt.want {
			t.Errorf("containerOf(%q) = %q, want %q", tt.mime, got, tt.want)
		}
	}
}

func TestFormatSelectorExpressions(t *testing.T) {
	tests := []struct {
		kind    domain.MediaKind
		quality string
		want    string
	}{
		{domain.KindAudio, "", "bestaudio[ext=m4a]/bestaudio/best"},
		{domain.KindVideo, "highest", "bestvideo+bestaudio/best"},
		{domain.KindVideo, "720p", "bestvideo[height<=720]+bestaudio/best[height<=720]"},
		{domain.KindVideo, "weird", "bestvideo+bestaudio/best"},
	}
	for _, tt := range tests {
		if got := formatSelector(tt.kind, tt.quality); got != tt.want {
			t.Errorf("formatSelector(%v, %q) = %q, want %q", tt.kind, tt.quality, got, tt.want)
		}
	}
}
