package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-bot-network/backend/internal/models"

	"github.com/hashicorp/go-cleanhttp"
)

// HTTPBackend talks to a self-hosted AI layer service over JSON
type HTTPBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type layerRequest struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

type layerResponse struct {
	Text    string `json:"text"`
	Model   string `json:"model"`
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewHTTPBackend posts to baseURL + "/generate". Timeouts come from the call context.
func NewHTTPBackend(baseURL, apiKey, model string) *HTTPBackend {
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	return &HTTPBackend{
		client:  cleanhttp.DefaultPooledClient(),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

func (h *HTTPBackend) Name() string { return "ai-layer" }

func (h *HTTPBackend) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	jsonData, err := json.Marshal(layerRequest{
		Prompt:      prompt,
		Model:       h.model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, Classify(err, h.Name())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/generate", bytes.NewReader(jsonData))
	if err != nil {
		return nil, Classify(err, h.Name())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, Classify(err, h.Name())
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, Classify(err, h.Name())
	}
	var out layerResponse
	decodeErr := json.Unmarshal(body, &out)

	if httpResp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(httpResp.StatusCode)
		}
		if out.Blocked {
			return nil, Refused(h.Name(), out.Reason)
		}
		return nil, ClassifyStatus(httpResp.StatusCode, fmt.Errorf("status %d: %s", httpResp.StatusCode, msg), h.Name())
	}
	if decodeErr != nil {
		return nil, Classify(fmt.Errorf("decode response: %w", decodeErr), h.Name())
	}
	if out.Blocked {
		return nil, Refused(h.Name(), out.Reason)
	}
	if out.Error != "" {
		return nil, Classify(errors.New(out.Error), h.Name())
	}
	text := strings.TrimSpace(out.Text)
	if text == "" {
		return nil, Classify(errors.New("response has no text"), h.Name())
	}

	model := out.Model
	if model == "" {
		model = h.model
	}
	return &Result{
		Text:  text,
		Model: model,
		Usage: models.Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens},
	}, nil
}

// Ping checks the AI layer's health endpoint
func (h *HTTPBackend) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return Classify(err, h.Name())
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return Classify(err, h.Name())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return ClassifyStatus(resp.StatusCode, fmt.Errorf("health returned %d", resp.StatusCode), h.Name())
	}
	return nil
}
