package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-bot-network/backend/internal/models"

	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API through google.golang.org/genai
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGeminiBackend creates a client for the Gemini developer API. baseURL
// overrides the API endpoint and may be empty.
func NewGeminiBackend(ctx context.Context, apiKey, model, baseURL string) (*GeminiBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func (g *GeminiBackend) Name() string { return "gemini" }

func (g *GeminiBackend) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return nil, g.classify(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, Refused(g.Name(), string(resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, Classify(errors.New("empty response"), g.Name())
	}
	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent,
		genai.FinishReasonBlocklist, genai.FinishReasonSPII:
		return nil, Refused(g.Name(), string(cand.FinishReason))
	}

	var b strings.Builder
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				b.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, Classify(errors.New("response has no text"), g.Name())
	}

	out := &Result{Text: text, Model: g.model}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = models.Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	return out, nil
}

// Ping looks up the configured model, which needs a valid key and a
// reachable API but spends no tokens
func (g *GeminiBackend) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return g.classify(err)
	}
	return nil
}

func (g *GeminiBackend) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return g.classifyAPI(apiErr, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return g.classifyAPI(*apiErrPtr, err)
	}
	return Classify(err, g.Name())
}

func (g *GeminiBackend) classifyAPI(apiErr genai.APIError, cause error) error {
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		return ClassifyStatus(429, cause, g.Name())
	}
	return ClassifyStatus(apiErr.Code, cause, g.Name())
}
