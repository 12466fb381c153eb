package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Drafter turns a prompt into a draft. An empty draft with a nil error means
// the model had nothing to say.
type Drafter interface {
	Draft(ctx context.Context, prompt string) (string, error)
}

const (
	DefaultGeminiModel   = "gemini-1.5-flash-latest"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
)

// ErrDrafterDisabled is returned when no API key is configured.
var ErrDrafterDisabled = errors.New("drafter disabled")

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

type GeminiOption func(*GeminiClient)

// WithBaseURL points the client at another endpoint, e.g. a test server.
func WithBaseURL(u string) GeminiOption {
	return func(g *GeminiClient) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *GeminiClient) { g.http = c }
}

func NewGeminiClient(apiKey, model string, opts ...GeminiOption) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	g := &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: DefaultGeminiBaseURL,
		http: &http.Client{
			Timeout:   20 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Enabled reports whether an API key is configured.
func (g *GeminiClient) Enabled() bool { return g != nil && g.apiKey != "" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiClient) Draft(ctx context.Context, prompt string) (string, error) {
	if !g.Enabled() {
		return "", ErrDrafterDisabled
	}
	body, err := json.Marshal(geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, url.PathEscape(g.model), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if msg == "" {
			msg = "Gemini generation failed"
		}
		return "", fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg)
	}

	var out geminiResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var texts []string
	for _, p := range out.Candidates[0].Content.Parts {
		texts = append(texts, p.Text)
	}
	return strings.TrimSpace(strings.Join(texts, "\n")), nil
}
