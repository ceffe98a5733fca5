// Package llm talks to the ClimateGPT chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/climategpt-servers/internal/config"
)

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// System and User build messages for the two roles the servers use.
func System(content string) Message { return Message{Role: openai.ChatMessageRoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: openai.ChatMessageRoleUser, Content: content} }

// Options tune a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
	// JSON asks the model for a json_object response.
	JSON bool
}

// Completer is implemented by anything that can answer a chat prompt.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Client is a resilient ClimateGPT client.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
	backoff BackoffConfig
	cb      *gobreaker.CircuitBreaker
	log     *zap.Logger
}

// basicAuthTransport adds HTTP basic credentials to every request.
type basicAuthTransport struct {
	user, password string
	base           http.RoundTripper
}

func (t basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.SetBasicAuth(t.user, t.password)
	return t.base.RoundTrip(r)
}

// BaseURL turns a full chat completion URL into the API base expected by the
// OpenAI client.
func BaseURL(endpoint string) string {
	u := strings.TrimRight(endpoint, "/")
	return strings.TrimSuffix(u, "/chat/completions")
}

// New builds a Client from configuration.
func New(cfg config.LLMConfig, log *zap.Logger) *Client {
	oc := openai.DefaultConfig("")
	oc.BaseURL = BaseURL(cfg.URL)
	oc.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: basicAuthTransport{
			user:     cfg.User,
			password: cfg.Password,
			base:     http.DefaultTransport,
		},
	}

	threshold := uint32(cfg.BreakerThreshold)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "climategpt",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			var perm permanentError
			return err == nil || errors.As(err, &perm)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		api:     openai.NewClientWithConfig(oc),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		backoff: BackoffConfig{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: 2 * time.Second,
			MaxInterval:     30 * time.Second,
		},
		cb:  cb,
		log: log,
	}
}

// Complete sends messages and returns the first choice's content.
func (c *Client) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	if opts.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	content, err := withResilience(ctx, c.backoff, c.cb, func(ctx context.Context) (string, error) {
		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		c.log.Error("climategpt request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", err
	}
	c.log.Debug("climategpt request completed", zap.Duration("elapsed", time.Since(start)))
	return content, nil
}

// State reports the breaker state ("closed", "half-open" or "open").
func (c *Client) State() string {
	return c.cb.State().String()
}
