package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ai-bot-network/backend/internal/models"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIBackend calls an OpenAI-compatible chat completions API
type OpenAIBackend struct {
	client *openai.Client
	model  string
}

// NewOpenAIBackend creates a client. baseURL may be empty for api.openai.com.
func NewOpenAIBackend(apiKey, model, baseURL string, httpClient *http.Client) (*OpenAIBackend, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		// the dispatcher decides what happens after a failure
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	client := openai.NewClient(opts...)
	return &OpenAIBackend{client: &client, model: model}, nil
}

func (o *OpenAIBackend) Name() string { return "openai" }

func (o *OpenAIBackend) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, o.classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, Classify(errors.New("empty response"), o.Name())
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, Refused(o.Name(), "content_filter")
	}
	if choice.Message.Refusal != "" {
		return nil, Refused(o.Name(), choice.Message.Refusal)
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		return nil, Classify(errors.New("response has no text"), o.Name())
	}

	model := resp.Model
	if model == "" {
		model = o.model
	}
	return &Result{
		Text:  text,
		Model: model,
		Usage: models.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}, nil
}

// Ping retrieves the configured model
func (o *OpenAIBackend) Ping(ctx context.Context) error {
	if _, err := o.client.Models.Get(ctx, o.model); err != nil {
		return o.classify(err)
	}
	return nil
}

func (o *OpenAIBackend) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ClassifyStatus(apiErr.StatusCode, err, o.Name())
	}
	return Classify(err, o.Name())
}
