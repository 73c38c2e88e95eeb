package generation

import (
	"context"
	"strings"
	"unicode/utf8"

	"ai-bot-network/backend/internal/models"
)

// EchoBackend answers without I/O by restating the task line of the prompt.
// The mock tier uses it, so it must never fail.
type EchoBackend struct{}

func (EchoBackend) Name() string { return "echo" }

func (EchoBackend) Generate(ctx context.Context, prompt string, opts Options) (*Result, error) {
	task := ""
	for _, line := range strings.Split(prompt, "\n") {
		if strings.HasPrefix(line, "Name: ") && task == "" {
			task = strings.TrimPrefix(line, "Name: ")
		}
		if strings.HasPrefix(line, "Request: ") {
			task += " on " + strings.TrimPrefix(line, "Request: ")
		}
	}
	if task == "" {
		task = "a bot"
	}
	text := "[echo] " + task + " is thinking out loud."
	if opts.MaxTokens > 0 {
		// tokens are approximated as 4 bytes
		if limit := opts.MaxTokens * 4; len(text) > limit {
			text = truncateRunes(text, limit)
		}
	}
	return &Result{
		Text:  text,
		Model: "echo",
		Usage: models.Usage{
			InputTokens:  len(strings.Fields(prompt)),
			OutputTokens: len(strings.Fields(text)),
		},
	}, nil
}

func truncateRunes(s string, maxBytes int) string {
	for len(s) > maxBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}
