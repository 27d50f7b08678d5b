// Package http provides HTTP handlers and router configuration.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/media"
	"github.com/vidfetch/vidfetch/internal/pipeline"
	"github.com/vidfetch/vidfetch/internal/ratelimit"
	"github.com/vidfetch/vidfetch/internal/transport/http/middleware"
)

// HistoryReader serves the history endpoint.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]*domain.DownloadRecord, error)
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	pipeline *pipeline.Pipeline
	limiter  *ratelimit.Limiter
	history  HistoryReader
}

// NewHandlers creates a new Handlers instance. history may be nil.
func NewHandlers(p *pipeline.Pipeline, limiter *ratelimit.Limiter, history HistoryReader) *Handlers {
	return &Handlers{
		pipeline: p,
		limiter:  limiter,
		history:  history,
	}
}

// HealthHandler handles GET /api/health requests.
func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// DownloadHandler handles POST /api/download requests.
func (h *Handlers) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Format != "mp3" && req.Format != "mp4" {
		writeError(w, http.StatusBadRequest, "format must be mp3 or mp4")
		return
	}
	if req.Quality == "" {
		req.Quality = "highest"
	}

	clientID := middleware.ClientID(r)
	slog.Info("download requested",
		"url", req.URL,
		"format", req.Format,
		"quality", req.Quality,
		"translate_to", req.TranslateTo,
		"client", clientID,
	)

	resp, err := h.pipeline.Run(r.Context(), req)
	if err != nil {
		slog.Error("download failed", "url", req.URL, "error", err)
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}

	resp.RemainingRequests = h.limiter.Remaining(clientID)
	writeJSON(w, http.StatusOK, resp)
}

// ExtractHandler handles POST /api/extract requests.
func (h *Handlers) ExtractHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	meta, _, err := h.pipeline.Metadata(r.Context(), req.URL)
	if err != nil {
		slog.Error("metadata extraction failed", "url", req.URL, "error", err)
		status, message := mapError(err)
		writeError(w, status, message)
		return
	}

	writeJSON(w, http.StatusOK, &domain.ExtractResponse{
		Success:           true,
		Data:              meta,
		RemainingRequests: h.limiter.Remaining(middleware.ClientID(r)),
	})
}

// HistoryHandler handles GET /api/history requests.
func (h *Handlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusOK, []*domain.DownloadRecord{})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if records == nil {
		records = []*domain.DownloadRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// mapError translates the error taxonomy onto status codes and
// human-readable messages.
func mapError(err error) (int, string) {
	var codecErr *media.CodecError
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		return http.StatusBadRequest, "Invalid YouTube URL"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusNotFound, "Video is unavailable or private"
	case errors.Is(err, domain.ErrAgeRestricted):
		return http.StatusForbidden, "Video is age-restricted"
	case errors.Is(err, domain.ErrRegionBlocked):
		return http.StatusForbidden, "Video is not available in your region"
	case errors.Is(err, domain.ErrEmptyOutput), errors.Is(err, domain.ErrOutputMissing):
		return http.StatusBadGateway, "Download produced no usable output"
	case errors.As(err, &codecErr):
		return http.StatusInternalServerError, "Media processing failed"
	default:
		return http.StatusInternalServerError, "Download failed: " + err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, &domain.ErrorResponse{Error: message})
}
