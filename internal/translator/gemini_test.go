package translator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiReply(t *testing.T, text string) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	require.NoError(t, err)
	return string(raw)
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *GeminiBackend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g, err := NewGeminiBackend(BackendConfig{
		APIURL: srv.URL,
		APIKey: "test-key",
		Model:  "gemini-2.0-flash-lite",
	})
	require.NoError(t, err)
	return g
}

func TestGeminiTranslateParsesArray(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-2.0-flash-lite")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(geminiReply(t, `["Bonjour","Monde"]`)))
	})

	got, err := g.Translate(context.Background(), []string{"Hello", "World"}, "fr")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour", "Monde"}, got)
}

func TestGeminiTranslateStripsCodeFences(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply(t, "```json\n[\"Bonjour\"]\n```")))
	})

	got, err := g.Translate(context.Background(), []string{"Hello"}, "fr")
	require.NoError(t, err)
	assert.Equal(t, []string{"Bonjour"}, got)
}

func TestGeminiSafetyBlockEscalates(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := g.Translate(context.Background(), []string{"Hello"}, "fr")
	require.Error(t, err)

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.True(t, berr.EscalateToFallback)
	assert.False(t, berr.Retryable)
}

func TestGeminiRateLimitIsRetryable(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	_, err := g.Translate(context.Background(), []string{"Hello"}, "fr")
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.True(t, berr.Retryable)
}

func TestGeminiBadRequestIsNotRetryable(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusBadRequest)
	})

	_, err := g.Translate(context.Background(), []string{"Hello"}, "fr")
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.False(t, berr.Retryable)
	assert.False(t, berr.EscalateToFallback)
}

func TestGeminiNonArrayReplyIsRetryable(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply(t, "I cannot help with that.")))
	})

	_, err := g.Translate(context.Background(), []string{"Hello"}, "fr")
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.True(t, berr.Retryable)
}

func TestGeminiConfigValidation(t *testing.T) {
	_, err := NewGeminiBackend(BackendConfig{Model: "m"})
	require.Error(t, err)
	_, err = NewGeminiBackend(BackendConfig{APIKey: "k"})
	require.Error(t, err)
}

func TestGeminiContextCancelled(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Translate(ctx, []string{"Hello"}, "fr")
	require.Error(t, err)
	var berr *BackendError
	if errors.As(err, &berr) {
		assert.True(t, berr.Retryable)
	}
}

func TestParseTranslationsSurroundingProse(t *testing.T) {
	got, err := parseTranslations("m", "Here you go:\n[\"a\", \"b\"]\nDone.")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}
