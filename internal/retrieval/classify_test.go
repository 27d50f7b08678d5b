package retrieval

import (
	"errors"
	"fmt"
	"testing"

	"github.com/vidfetch/vidfetch/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureClass
	}{
		{"nil", nil, ClassUnknown},
		{"http 403", errors.New("request failed: 403 Forbidden"), ClassBotDetection},
		{"http 429", errors.New("got 429 from upstream"), ClassBotDetection},
		{"sign-in wall", errors.New("Sign in to confirm you're not a bot"), ClassBotDetection},
		{"captcha", errors.New("CAPTCHA required"), ClassBotDetection},
		{"blocked", errors.New("your request was blocked"), ClassBotDetection},
		{"extractor broken", errors.New("unable to extract player version"), ClassParserBreakage},
		{"cipher change", errors.New("cipher operations not found"), ClassParserBreakage},
		{"unavailable", errors.New("Video unavailable"), ClassTerminal},
		{"private", errors.New("this video is private"), ClassTerminal},
		{"age gated", errors.New("video is age-restricted"), ClassTerminal},
		{"region", errors.New("not available in your region"), ClassTerminal},
		{"wrapped sentinel", fmt.Errorf("fetch: %w", domain.ErrUpstreamBlocked), ClassBotDetection},
		{"terminal sentinel", fmt.Errorf("fetch: %w", domain.ErrAgeRestricted), ClassTerminal},
		{"network noise", errors.New("connection reset by peer"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

// A terminal phrase must win even when bot-looking tokens appear in
// the same message.
func TestClassifyTerminalWinsOverBot(t *testing.T) {
	err := errors.New("403: this video is private")
	if got := Classify(err); got != ClassTerminal {
		t.Errorf("Classify = %s, want %s", got, ClassTerminal)
	}
}

func TestRetryable(t *testing.T) {
	if !ClassBotDetection.Retryable() || !ClassParserBreakage.Retryable() {
		t.Error("bot-detection and parser-breakage must be retryable")
	}
	if ClassTerminal.Retryable() || ClassUnknown.Retryable() {
		t.Error("terminal and unknown must not be retryable")
	}
}

func TestTerminalError(t *testing.T) {
	tests := []struct {
		msg  string
		want error
	}{
		{"video is age-restricted", domain.ErrAgeRestricted},
		{"not available in your region", domain.ErrRegionBlocked},
		{"not available in your country", domain.ErrRegionBlocked},
		{"Video unavailable", domain.ErrUnavailable},
		{"this video is private", domain.ErrUnavailable},
	}
	for _, tt := range tests {
		if got := TerminalError(errors.New(tt.msg)); !errors.Is(got, tt.want) {
			t.Errorf("TerminalError(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}
