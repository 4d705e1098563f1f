// Package llm talks to an OpenAI-compatible chat-completions endpoint and
// adapts it to the intent classifier and report summarizer interfaces.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"ledgerflow/internal/logging"
)

// maxResponseSize limits the completion body.
const maxResponseSize = 4 * 1024 * 1024

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BreakerSettings configure the circuit breaker around the endpoint.
type BreakerSettings struct {
	MaxRequests      uint32        `yaml:"max_requests" json:"max_requests"`
	Interval         time.Duration `yaml:"interval" json:"interval"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold" json:"failure_threshold"`
}

// DefaultBreakerSettings trips after five consecutive failures and lets one
// trial request through after 30s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxRequests: 1, Interval: time.Minute, Timeout: 30 * time.Second, FailureThreshold: 5}
}

// Client is a chat-completions client guarded by a circuit breaker.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) { client.httpClient = c }
}

// WithAPIKey sets the bearer token.
func WithAPIKey(key string) ClientOption {
	return func(client *Client) { client.apiKey = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) { client.logger = l }
}

// NewClient returns a client for baseURL (for example
// "http://localhost:11434/v1") using model.
func NewClient(baseURL, model string, breaker BreakerSettings, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.New("llm"),
	}
	for _, opt := range opts {
		opt(c)
	}
	threshold := breaker.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm:" + model,
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsFatal(err) || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// BreakerState reports the breaker state ("closed", "half-open", "open").
func (c *Client) BreakerState() string { return c.breaker.State().String() }

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Complete sends messages and returns the first choice's content. When the
// breaker is open it fails fast with gobreaker.ErrOpenState.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, messages)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", &FatalError{fmt.Errorf("encode request: %w", err)}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", &FatalError{fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransientError{fmt.Errorf("chat completion: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", &TransientError{fmt.Errorf("read completion: %w", err)}
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", &TransientError{fmt.Errorf("chat completion: status %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return "", &FatalError{fmt.Errorf("chat completion: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", &FatalError{fmt.Errorf("decode completion: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &FatalError{ErrNoContent}
	}
	c.logger.Debug("chat completion", "model", c.model, "elapsed", time.Since(start))
	return parsed.Choices[0].Message.Content, nil
}
