package generation

import (
	"context"
	"errors"
	"net"
	"net/http"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
)

// Options bound one backend call
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Result is a backend's answer
type Result struct {
	Text  string
	Model string
	Usage models.Usage
}

// Backend generates text from a prompt. Implementations must not retry and
// must report failures through the generation error kinds (see Classify).
type Backend interface {
	Name() string
	Generate(ctx context.Context, prompt string, opts Options) (*Result, error)
}

// Pinger is implemented by backends that can check their reachability
// without generating anything
type Pinger interface {
	Ping(ctx context.Context) error
}

// Classify maps a transport-level failure onto the error taxonomy.
// Deadlines and network errors mean the backend is unavailable; anything
// unrecognized is a generic backend error.
func Classify(err error, backend string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Wrap(apperrors.ErrBackendUnavailable, err, backend+" did not answer in time")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.Wrap(apperrors.ErrBackendUnavailable, err, backend+" is unreachable")
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return apperrors.Wrap(apperrors.ErrBackendUnavailable, err, backend+" is unreachable")
	}
	return apperrors.Wrap(apperrors.ErrBackendError, err, backend+" failed")
}

// ClassifyStatus maps an HTTP status returned by a backend API
func ClassifyStatus(status int, cause error, backend string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.Wrap(apperrors.ErrBackendQuotaExceeded, cause, backend+" quota exceeded")
	case status == http.StatusRequestTimeout || status >= 500:
		return apperrors.Wrap(apperrors.ErrBackendUnavailable, cause, backend+" is unavailable")
	default:
		return apperrors.Wrap(apperrors.ErrBackendError, cause, backend+" rejected the request")
	}
}

// Refused reports a safety or policy refusal
func Refused(backend, reason string) error {
	return apperrors.New(apperrors.ErrBackendRejectedContent, backend+" refused to generate content").
		WithDetails(map[string]string{"reason": reason})
}
