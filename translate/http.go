package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

// makeHTTPClient builds a client with no overall timeout; deadlines come
// from the request context.
func makeHTTPClient(proxyURL string) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	// Support both the proxy setting and HTTP_PROXY/HTTPS_PROXY env vars
	if proxyURL != "" {
		parsed, err := url.Parse(proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{Transport: transport}
}

// ---------------------------------------------------------------------------
// OpenAI-compatible chat transport
// ---------------------------------------------------------------------------

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.Code, truncate(e.Body, 500))
}

// HTTPCompleter talks to POST {BaseURL}/chat/completions.
type HTTPCompleter struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewHTTPCompleter creates a completer from cfg. The per-request budget is
// enforced through the request context, so the HTTP client itself only
// carries the proxy settings.
func NewHTTPCompleter(cfg Config) *HTTPCompleter {
	return &HTTPCompleter{
		BaseURL: cfg.effectiveBaseURL(),
		APIKey:  cfg.APIKey,
		client:  makeHTTPClient(cfg.Proxy),
	}
}

// Complete sends req and returns the first choice's message content.
func (h *HTTPCompleter) Complete(ctx context.Context, req Request) (string, error) {
	body, err := buildOpenAIChatRequest(req)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	endpoint := strings.TrimRight(h.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Code: resp.StatusCode, Body: string(respBody)}
	}

	return extractResponseText(respBody)
}

func buildOpenAIChatRequest(req Request) ([]byte, error) {
	body := struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
		Stream      bool      `json:"stream"`
	}{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		Stream:      false,
	}
	return json.Marshal(body)
}

// ---------------------------------------------------------------------------
// Response parsing (multi-format)
// ---------------------------------------------------------------------------

// responsePaths are the known locations of the reply text, tried in order:
// OpenAI chat, Gemini, Anthropic messages, OpenAI responses, plain field.
var responsePaths = []string{
	"choices.0.message.content",
	"candidates.0.content.parts.0.text",
	`content.#(type=="text").text`,
	`output.#(type=="message").content.#(type=="output_text").text`,
	"response",
}

// extractResponseText tries all known response formats and returns the text.
func extractResponseText(body []byte) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("invalid JSON response: %s", truncate(string(body), 500))
	}

	if errObj := gjson.GetBytes(body, "error"); errObj.Exists() && errObj.Type != gjson.Null {
		if msg := errObj.Get("message"); msg.Exists() {
			return "", fmt.Errorf("API error: %s", msg.String())
		}
		return "", fmt.Errorf("API error: %s", errObj.Raw)
	}

	for _, path := range responsePaths {
		if r := gjson.GetBytes(body, path); r.Type == gjson.String {
			return r.String(), nil
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// truncate truncates a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
