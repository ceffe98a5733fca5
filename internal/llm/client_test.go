package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/config"
)

func testConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		URL:              url + "/v1/chat/completions",
		User:             "ai",
		Password:         "secret",
		Model:            "/cache/climategpt_8b_latest",
		Timeout:          5 * time.Second,
		MaxRetries:       0,
		MaxTokens:        100,
		BreakerThreshold: 2,
		BreakerTimeout:   time.Minute,
	}
}

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "cmpl-1",
		"object":  "chat.completion",
		"choices": []map[string]any{{"index": 0, "message": map[string]any{"role": "assistant", "content": content}}},
	}
}

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://erasmus.ai/models/x/v1", BaseURL("https://erasmus.ai/models/x/v1/chat/completions"))
	assert.Equal(t, "https://erasmus.ai/models/x/v1", BaseURL("https://erasmus.ai/models/x/v1/"))
}

func TestCompleteSendsBasicAuthAndJSONFormat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ai", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"query_type":"general_knowledge"}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	out, err := c.Complete(context.Background(), []Message{System("sys"), User("hi")}, Options{Temperature: 0.3, JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"query_type":"general_knowledge"}`, out)

	assert.Equal(t, "/cache/climategpt_8b_latest", got["model"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestCompleteClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad credentials"}}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 3
	c := New(cfg, zap.NewNop())

	_, err := c.Complete(context.Background(), []Message{User("hi")}, Options{})
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, "closed", c.State())
}

func TestCompleteOpensCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL), zap.NewNop())
	for i := 0; i < 2; i++ {
		_, err := c.Complete(context.Background(), []Message{User("hi")}, Options{})
		require.Error(t, err)
	}

	_, err := c.Complete(context.Background(), []Message{User("hi")}, Options{})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "open", c.State())
}

func TestWithResilienceRetries(t *testing.T) {
	c := New(testConfig("http://unused"), zap.NewNop())
	backoff := BackoffConfig{MaxRetries: 2, InitialInterval: time.Millisecond}

	var attempts int
	out, err := withResilience(context.Background(), backoff, c.cb, func(context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", assert.AnError
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, attempts)
}
