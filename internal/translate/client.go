// Package translate produces translated subtitle artifacts from audio
// via an OpenAI-compatible API.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
)

// Config configures the translation client.
type Config struct {
	APIKey             string
	BaseURL            string        // defaults to the OpenAI API
	TranscriptionModel string        // defaults to whisper-1
	TranslationModel   string        // defaults to gpt-3.5-turbo
	Timeout            time.Duration // defaults to 5 minutes
}

// Client talks to the transcription and chat-completion endpoints.
// Translation is always best-effort at the call sites: a missing
// credential surfaces as ErrTranslationUnavailable so callers can
// soft-skip.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a translation client. APIKey may be empty, in
// which case Available reports false and every call fails soft.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = "whisper-1"
	}
	if cfg.TranslationModel == "" {
		cfg.TranslationModel = "gpt-3.5-turbo"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Available reports whether a translation credential is configured.
func (c *Client) Available() bool {
	return c.cfg.APIKey != ""
}

// TranscribeAndTranslate transcribes the audio file, translates the
// transcript into the target language when it differs from the source,
// and writes a subtitle file next to the audio.
func (c *Client) TranscribeAndTranslate(ctx context.Context, audioPath, targetLanguage, sourceLanguage string) (*domain.TranslationOutcome, error) {
	if !c.Available() {
		return nil, domain.ErrTranslationUnavailable
	}

	transcript, err := c.transcribe(ctx, audioPath, sourceLanguage)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	text := transcript
	if targetLanguage != sourceLanguage {
		translated, err := c.translateText(ctx, transcript, targetLanguage)
		if err != nil {
			return nil, fmt.Errorf("translate: %w", err)
		}
		// An empty generation keeps the transcript rather than
		// producing an empty subtitle.
		if translated != "" {
			text = translated
		}
	}

	ext := filepath.Ext(audioPath)
	subtitlePath := audioPath[:len(audioPath)-len(ext)] + "_translated.srt"
	if err := WriteSubtitle(text, subtitlePath); err != nil {
		return nil, fmt.Errorf("write subtitle: %w", err)
	}

	return &domain.TranslationOutcome{
		TranslatedText: text,
		SubtitlePath:   subtitlePath,
	}, nil
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *Client) transcribe(ctx context.Context, audioPath, language string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy audio data: %w", err)
	}
	if err := writer.WriteField("model", c.cfg.TranscriptionModel); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if language != "" {
		if err := writer.WriteField("language", language); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result transcriptionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return result.Text, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *Client) translateText(ctx context.Context, text, targetLanguage string) (string, error) {
	reqBody := chatRequest{
		Model: c.cfg.TranslationModel,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: fmt.Sprintf(
					"Translate the following text to %s. Maintain the timing and structure for subtitles.",
					LanguageName(targetLanguage)),
			},
			{Role: "user", Content: text},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("API error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}
