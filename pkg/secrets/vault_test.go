package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"ai-bot-network/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledVaultReadsEnvironment(t *testing.T) {
	m, err := NewVaultManager(VaultConfig{}, logger.Nop())
	require.NoError(t, err)
	defer m.Close()
	m.getenv = func(k string) string {
		if k == "GEMINI_API_KEY" {
			return "from-env"
		}
		return ""
	}

	v, err := m.GetSecret(context.Background(), KeyGeminiAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)

	_, err = m.GetSecret(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, "fallback", m.GetSecretWithDefault(context.Background(), "missing", "fallback"))
}

func TestEnabledVaultRequiresAddressAndToken(t *testing.T) {
	_, err := NewVaultManager(VaultConfig{Enabled: true}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultAddress)

	_, err = NewVaultManager(VaultConfig{Enabled: true, Address: "http://127.0.0.1:1"}, logger.Nop())
	assert.ErrorIs(t, err, ErrNoVaultToken)
}

func TestVaultKVReadIsCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/v1/secret/data/bot-network", r.URL.Path)
		assert.Equal(t, "root", r.Header.Get("X-Vault-Token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"data":{"openai_api_key":"sk-vault"},"metadata":{"version":1}}}`))
	}))
	defer srv.Close()

	m, err := NewVaultManager(VaultConfig{
		Enabled: true,
		Address: srv.URL,
		Token:   "root",
		Path:    "bot-network",
	}, logger.Nop())
	require.NoError(t, err)
	defer m.Close()
	m.getenv = func(string) string { return "" }

	ctx := context.Background()
	v, err := m.GetSecret(ctx, KeyOpenAIAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-vault", v)

	v, err = m.GetSecret(ctx, KeyOpenAIAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "sk-vault", v)
	assert.EqualValues(t, 1, hits.Load())

	_, err = m.GetSecret(ctx, KeyGeminiAPIKey)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}
