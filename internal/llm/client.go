// Package llm talks to OpenAI-compatible chat completion endpoints
// (Groq, Gemini, OpenAI) on behalf of the assistant.
package llm

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/talentlink/assistant/internal/observability"
)

// Provider generates a grounded answer for a visitor message.
type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, message, grounding string) (string, error)
}

type providerDefaults struct {
	baseURL string
	model   string
}

var defaults = map[string]providerDefaults{
	"groq":   {baseURL: "https://api.groq.com/openai/v1", model: "llama-3.3-70b-versatile"},
	"gemini": {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", model: "gemini-2.0-flash"},
	"openai": {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
}

// Config configures an OpenAICompatible provider.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Agency      string
	Temperature float32
	MaxTokens   int
	Retry       RetryConfig
	HTTPClient  *http.Client
}

// OpenAICompatible is a Provider backed by the go-openai client.
type OpenAICompatible struct {
	client      *openai.Client
	name        string
	model       string
	agency      string
	temperature float32
	maxTokens   int
	retry       RetryConfig
	logger      *observability.Logger
}

// NewOpenAICompatible builds a provider. It fails with ErrNoCredential when
// no API key is set, which callers treat as "AI disabled".
func NewOpenAICompatible(cfg Config, logger *observability.Logger) (*OpenAICompatible, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoCredential
	}

	d, ok := defaults[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = d.baseURL
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	// HTTPDoer is an interface; a nil *http.Client must not be stored in it.
	if cfg.HTTPClient != nil {
		clientConfig.HTTPClient = cfg.HTTPClient
	} else {
		clientConfig.HTTPClient = newHTTPClient()
	}

	model := cfg.Model
	if model == "" {
		model = d.model
	}

	agency := cfg.Agency
	if agency == "" {
		agency = "Northbridge Talent"
	}

	retry := cfg.Retry
	base := DefaultRetryConfig()
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = base.InitialBackoff
	}
	if retry.MaxBackoff <= 0 {
		retry.MaxBackoff = base.MaxBackoff
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}

	if logger == nil {
		logger = observability.Nop()
	}

	return &OpenAICompatible{
		client:      openai.NewClientWithConfig(clientConfig),
		name:        cfg.Provider,
		model:       model,
		agency:      agency,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retry:       retry,
		logger:      logger.WithComponent("llm"),
	}, nil
}

// Name returns the provider name.
func (c *OpenAICompatible) Name() string { return c.name }

// Model returns the model identifier sent with each request.
func (c *OpenAICompatible) Model() string { return c.model }

// Generate asks the model to answer message using only grounding as context.
// The caller's ctx bounds the whole call, retries included.
func (c *OpenAICompatible) Generate(ctx context.Context, message, grounding string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt(c.agency, grounding)},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	}

	return c.retryWithBackoff(ctx, func() (string, error) {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}

		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", ErrEmptyResponse
		}

		c.logger.Debug().
			Str("model", c.model).
			Int("total_tokens", resp.Usage.TotalTokens).
			Dur("duration", time.Since(start)).
			Msg("Model response received")

		return resp.Choices[0].Message.Content, nil
	})
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          20,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
