package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// BackendConfig configures one Gemini model endpoint.
type BackendConfig struct {
	APIURL  string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func (c BackendConfig) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("backend API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("backend model is required")
	}
	return nil
}

// GeminiBackend translates one chunk per call through the generateContent
// API. It classifies failures into retryable transport errors and
// non-retryable safety blocks so the batch layer can escalate correctly.
type GeminiBackend struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewGeminiBackend(cfg BackendConfig) (*GeminiBackend, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid backend configuration: %w", err)
	}
	baseURL := cfg.APIURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiBackend{
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (g *GeminiBackend) Name() string { return g.model }

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GeminiBackend) Translate(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: buildPrompt(texts, targetLanguage)}}},
		},
		GenerationConfig: &generationConfig{Temperature: 0.2},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fatal(g.model, "serialize request: %v", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fatal(g.model, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, retryableWithCause(g.model, err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryableWithCause(g.model, err, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, retryable(g.model, "HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	default:
		return nil, fatal(g.model, "HTTP %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, retryableWithCause(g.model, err, "unparseable response body")
	}
	if parsed.Error != nil {
		return nil, retryable(g.model, "API error %d (%s): %s", parsed.Error.Code, parsed.Error.Status, parsed.Error.Message)
	}
	if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
		return nil, safetyBlocked(g.model, parsed.PromptFeedback.BlockReason)
	}
	if len(parsed.Candidates) == 0 {
		return nil, retryable(g.model, "response contains no candidates")
	}
	if reason := parsed.Candidates[0].FinishReason; strings.EqualFold(reason, "SAFETY") {
		return nil, safetyBlocked(g.model, reason)
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return parseTranslations(g.model, sb.String())
}

// parseTranslations pulls the JSON string array out of the model's reply,
// tolerating surrounding prose and markdown code fences.
func parseTranslations(backend, text string) ([]string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end <= start {
		return nil, retryable(backend, "no JSON array in response: %s", truncate([]byte(cleaned), 200))
	}

	var out []string
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &out); err != nil {
		return nil, retryableWithCause(backend, err, "response is not a JSON string array")
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
