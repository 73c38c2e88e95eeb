package secrets

import (
	"context"
	"errors"
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// Keys of the secrets the service reads
const (
	KeyGeminiAPIKey    = "gemini_api_key"
	KeyOpenAIAPIKey    = "openai_api_key"
	KeyAIServiceAPIKey = "ai_service_api_key"
	KeyJWTSecret       = "jwt_secret"
)
