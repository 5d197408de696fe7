package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completionBody(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"id":     "chatcmpl-1",
		"object": "chat.completion",
		"model":  "test",
		"choices": []map[string]interface{}{
			{"index": 0, "finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": text}},
		},
		"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func newTestProvider(t *testing.T, srv *httptest.Server, retries int) *OpenAICompatible {
	t.Helper()
	p, err := NewOpenAICompatible(Config{
		Provider: "groq",
		APIKey:   "test-key",
		BaseURL:  srv.URL + "/",
		Retry:    RetryConfig{MaxRetries: retries, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond},
	}, nil)
	require.NoError(t, err)
	return p
}

func TestNewOpenAICompatible(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantErr   error
		wantModel string
	}{
		{"groq defaults", Config{Provider: "groq", APIKey: "k"}, nil, "llama-3.3-70b-versatile"},
		{"gemini defaults", Config{Provider: "gemini", APIKey: "k"}, nil, "gemini-2.0-flash"},
		{"custom model", Config{Provider: "openai", APIKey: "k", Model: "gpt-4.1"}, nil, "gpt-4.1"},
		{"missing key", Config{Provider: "groq", APIKey: "  "}, ErrNoCredential, ""},
		{"unknown provider", Config{Provider: "bard", APIKey: "k"}, ErrUnknownProvider, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOpenAICompatible(tt.cfg, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, p.Model())
			assert.Equal(t, tt.cfg.Provider, p.Name())
		})
	}
}

func TestGenerateSendsGroundedRequest(t *testing.T) {
	var got capturedRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("  We are open 9 to 6.  ")))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv, 0)
	text, err := p.Generate(context.Background(), "When are you open?", "## contact\nOpen 9 to 6")
	require.NoError(t, err)

	assert.Equal(t, "  We are open 9 to 6.  ", text)
	assert.Equal(t, "Bearer test-key", auth)
	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Open 9 to 6")
	assert.Contains(t, got.Messages[0].Content, "only the information in the CONTEXT")
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, "When are you open?", got.Messages[1].Content)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
		wantCode int
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"auth"}}`, KindStatus, 401},
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server"}}`, KindStatus, 500},
		{"malformed body", http.StatusOK, `not json`, KindMalformed, 0},
		{"empty choices", http.StatusOK, `{"id":"x","choices":[]}`, KindEmpty, 0},
		{"blank content", http.StatusOK, completionBody("   "), KindEmpty, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestProvider(t, srv, 0).Generate(context.Background(), "hi", "ctx")
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantKind, pe.Kind)
			assert.Equal(t, tt.wantCode, pe.StatusCode)
			assert.Equal(t, "groq", pe.Provider)
			assert.Equal(t, string(tt.wantKind), Outcome(err))
		})
	}
}

func TestGenerateRetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody("ok")))
	}))
	defer srv.Close()

	text, err := newTestProvider(t, srv, 1).Generate(context.Background(), "hi", "ctx")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestGenerateDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
	}))
	defer srv.Close()

	_, err := newTestProvider(t, srv, 3).Generate(context.Background(), "hi", "ctx")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := newTestProvider(t, srv, 2).Generate(ctx, "hi", "ctx")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindTimeout, pe.Kind)
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}
	assert.Equal(t, 100*time.Millisecond, calculateBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, calculateBackoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, calculateBackoff(2, cfg))
}

func TestShouldRetry(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, shouldRetry(code), code)
	}
	for _, code := range []int{400, 401, 403, 404} {
		assert.False(t, shouldRetry(code), code)
	}
}

func TestNewOpenAICompatibleBuildsWorkingDefaultClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody("Hello from the model")))
	}))
	defer srv.Close()

	p, err := NewOpenAICompatible(Config{Provider: "openai", APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, p.retry.InitialBackoff)
	assert.Equal(t, DefaultRetryConfig().MaxBackoff, p.retry.MaxBackoff)

	text, err := p.Generate(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "Hello from the model", text)
}
