package retrieval

import (
	"errors"
	"strings"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// FailureClass categorizes a primary-strategy failure. The class decides
// whether the external tool is worth trying: upstream challenges and
// extractor breakage are recoverable by switching strategy, terminal
// conditions are not.
type FailureClass int

const (
	// ClassUnknown is any failure that matched no known signature.
	ClassUnknown FailureClass = iota
	// ClassBotDetection means the upstream challenged the request as
	// automated traffic (sign-in wall, captcha, 403/429).
	ClassBotDetection
	// ClassParserBreakage means the upstream page or format structure
	// changed under the in-process client.
	ClassParserBreakage
	// ClassTerminal means the video itself cannot be served (private,
	// deleted, age-restricted, region-blocked), no matter the strategy.
	ClassTerminal
)

func (c FailureClass) String() string {
	switch c {
	case ClassBotDetection:
		return "bot-detection"
	case ClassParserBreakage:
		return "parser-breakage"
	case ClassTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Retryable reports whether switching to the external tool can help.
func (c FailureClass) Retryable() bool {
	return c == ClassBotDetection || c == ClassParserBreakage
}

var terminalSignatures = []string{
	"video unavailable",
	"unavailable",
	"private",
	"age-gated",
	"age-restricted",
	"age restricted",
	"region",
	"not available in your country",
}

var botSignatures = []string{
	"sign in",
	"sign-in",
	"captcha",
	"bot",
	"403",
	"429",
	"blocked",
	"too many requests",
	"forbidden",
}

var parserSignatures = []string{
	"unable to extract",
	"cipher",
	"decipher",
	"could not find player",
	"player response",
	"unexpected token",
	"parsing",
}

// Classify maps a primary-strategy error onto a failure class. Terminal
// conditions win over everything else so that a "private video (403)"
// style message never triggers a pointless fallback.
func Classify(err error) FailureClass {
	if err == nil {
		return ClassUnknown
	}

	switch {
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrAgeRestricted),
		errors.Is(err, domain.ErrRegionBlocked):
		return ClassTerminal
	case errors.Is(err, domain.ErrUpstreamBlocked):
		return ClassBotDetection
	case errors.Is(err, domain.ErrUpstreamChanged):
		return ClassParserBreakage
	}

	msg := strings.ToLower(err.Error())
	for _, s := range terminalSignatures {
		if strings.Contains(msg, s) {
			return ClassTerminal
		}
	}
	for _, s := range botSignatures {
		if strings.Contains(msg, s) {
			return ClassBotDetection
		}
	}
	for _, s := range parserSignatures {
		if strings.Contains(msg, s) {
			return ClassParserBreakage
		}
	}
	return ClassUnknown
}

// TerminalError maps a terminal-classified failure onto the matching
// sentinel so transport can pick the right status code.
func TerminalError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "age"):
		return domain.ErrAgeRestricted
	case strings.Contains(msg, "region"), strings.Contains(msg, "country"):
		return domain.ErrRegionBlocked
	default:
		return domain.ErrUnavailable
	}
}
