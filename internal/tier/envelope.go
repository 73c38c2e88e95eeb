package tier

import (
	"net/http"

	apperrors "ai-bot-network/backend/pkg/errors"
)

// Envelope is the response shape every tier produces
type Envelope struct {
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Error   *apperrors.Body `json:"error,omitempty"`
	Tier    Level           `json:"tier"`

	err error
}

// Err returns the error behind a failed envelope
func (e Envelope) Err() error {
	return e.err
}

// Status maps the envelope to an HTTP status code
func (e Envelope) Status() int {
	if e.Success {
		return http.StatusOK
	}
	return apperrors.GetStatusCode(e.err)
}

func success(data any, level Level) Envelope {
	return Envelope{Success: true, Data: data, Tier: level}
}

func failure(err error, level Level) Envelope {
	return Envelope{Success: false, Error: apperrors.ToBody(err), Tier: level, err: err}
}
