package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidfetch/vidfetch/internal/domain"
)

type primaryStrategy interface {
	FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, error)
	FetchToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, destPath string) error
}

type fallbackStrategy interface {
	FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, error)
	FetchToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, outputBase string) (string, error)
}

// Engine drives the two-strategy retrieval state machine: the
// in-process client first, the external tool only when the failure
// class says switching strategy can help.
type Engine struct {
	primary primaryStrategy
	tool    fallbackStrategy
}

// NewEngine wires the two strategies together.
func NewEngine(primary *Primary, tool *ExternalTool) *Engine {
	return &Engine{primary: primary, tool: tool}
}

// FetchMetadata resolves video metadata, reporting which strategy
// ultimately served the request.
func (e *Engine) FetchMetadata(ctx context.Context, rawURL string) (*domain.VideoMetadata, domain.RetrievalMethod, error) {
	identity, err := ParseIdentity(rawURL)
	if err != nil {
		return nil, "", err
	}

	meta, perr := e.primary.FetchMetadata(ctx, rawURL)
	if perr == nil {
		return meta, domain.MethodPrimary, nil
	}

	class := Classify(perr)
	if class == ClassTerminal {
		return nil, "", fmt.Errorf("%w: %v", TerminalError(perr), perr)
	}
	if !class.Retryable() {
		return nil, "", perr
	}

	slog.Warn("primary metadata fetch failed, switching to external tool",
		"video_id", identity.VideoID, "class", class.String(), "error", perr)

	meta, ferr := e.tool.FetchMetadata(ctx, rawURL)
	if ferr != nil {
		if Classify(ferr) == ClassTerminal {
			return nil, "", fmt.Errorf("%w: %v", TerminalError(ferr), ferr)
		}
		return nil, "", compositeError(perr, ferr)
	}
	return meta, domain.MethodExternalTool, nil
}

// FetchMediaToFile retrieves media into destPath (or a sibling path
// when the external tool picks the extension) and returns the produced
// file. The produced file is verified to exist and be non-empty before
// success is declared.
func (e *Engine) FetchMediaToFile(ctx context.Context, rawURL string, kind domain.MediaKind, quality, destPath string) (string, domain.RetrievalMethod, error) {
	identity, err := ParseIdentity(rawURL)
	if err != nil {
		return "", "", err
	}

	perr := e.primary.FetchToFile(ctx, rawURL, kind, quality, destPath)
	if perr == nil {
		perr = verifyOutput(destPath)
		if perr == nil {
			return destPath, domain.MethodPrimary, nil
		}
		os.Remove(destPath)
	}

	class := Classify(perr)
	// Empty or missing primary output is usually throttling in
	// disguise, so it is worth one shot with the other strategy.
	retryable := class.Retryable() ||
		errors.Is(perr, domain.ErrEmptyOutput) || errors.Is(perr, domain.ErrOutputMissing)

	if class == ClassTerminal {
		return "", "", fmt.Errorf("%w: %v", TerminalError(perr), perr)
	}
	if !retryable {
		return "", "", perr
	}

	slog.Warn("primary download failed, switching to external tool",
		"video_id", identity.VideoID, "class", class.String(), "error", perr)

	outputBase := strings.TrimSuffix(destPath, filepath.Ext(destPath))
	produced, ferr := e.tool.FetchToFile(ctx, rawURL, kind, quality, outputBase)
	if ferr == nil {
		ferr = verifyOutput(produced)
	}
	if ferr != nil {
		if Classify(ferr) == ClassTerminal {
			return "", "", fmt.Errorf("%w: %v", TerminalError(ferr), ferr)
		}
		return "", "", compositeError(perr, ferr)
	}
	return produced, domain.MethodExternalTool, nil
}

// verifyOutput rejects missing and zero-byte files so a silent
// upstream failure never passes as success.
func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrOutputMissing, path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrEmptyOutput, path)
	}
	return nil
}

func compositeError(primaryErr, toolErr error) error {
	return fmt.Errorf("all retrieval strategies failed: primary: %v; external tool: %v", primaryErr, toolErr)
}
