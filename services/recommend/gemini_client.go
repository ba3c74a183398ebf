package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiModel   = "gemini-2.0-flash"
)

var (
	// ErrLLMBadRequest means the provider rejected the request itself (400).
	ErrLLMBadRequest = errors.New("recommend: bad request to language model")
	// ErrLLMAuth means the API key was rejected (401/403).
	ErrLLMAuth = errors.New("recommend: language model auth failed")
	// ErrLLMRateLimited means the provider throttled us (429).
	ErrLLMRateLimited = errors.New("recommend: language model rate limited")
	// ErrLLMUnavailable means transport failure or provider 5xx.
	ErrLLMUnavailable = errors.New("recommend: language model unavailable")
	// ErrLLMNotConfigured means no API key is set.
	ErrLLMNotConfigured = errors.New("recommend: language model api key not configured")
)

// GeminiClient issues a single generateContent call per request. There is no
// local retry here: the engine relies on one call with a generous timeout.
type GeminiClient struct {
	apiKey string
	httpc  *http.Client
}

// NewGeminiClient creates a client. A nil httpc gets a 30s-timeout default.
func NewGeminiClient(apiKey string, httpc *http.Client) *GeminiClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &GeminiClient{apiKey: strings.TrimSpace(apiKey), httpc: httpc}
}

// IsConfigured reports whether an API key is present.
func (c *GeminiClient) IsConfigured() bool {
	return c.apiKey != ""
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Complete sends the system instruction and user prompt and returns the raw
// text of the first completion. The structured-output mode is requested via
// the JSON response MIME type; callers still parse defensively because hosted
// models are observed to wrap JSON in prose anyway.
func (c *GeminiClient) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrLLMNotConfigured
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, geminiModel, c.apiKey)
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents:          []geminiContent{{Parts: []geminiPart{{Text: user}}}},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:      0.7,
			MaxOutputTokens:  1000,
			ResponseMIMEType: "application/json",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrLLMUnavailable, err)
	}
	if geminiResp.Error != nil {
		return "", classifyStatus(geminiResp.Error.Code, geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// classifyStatus maps provider HTTP statuses onto distinct error kinds so
// operators can tell auth drift from throttling from outages.
func classifyStatus(status int, detail string) error {
	switch {
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrLLMBadRequest, detail)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrLLMAuth, detail)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrLLMRateLimited, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrLLMUnavailable, status, detail)
	}
}
