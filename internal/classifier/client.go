// Package classifier provides an HTTP client for an external
// chat-completion text-classification service (OpenRouter-compatible).
// The service is asked for a strict JSON verdict; its reply is returned raw
// and normalized downstream by the moderation parser.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultEndpoint is the OpenRouter chat-completions URL.
	DefaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

	// DefaultModel is the classification model used when none is configured.
	DefaultModel = "mistralai/mistral-7b-instruct"

	// DefaultTimeout bounds a single classification request.
	DefaultTimeout = 15 * time.Second
)

// Sentinel errors let the pipeline map failures to distinct verdict sources,
// so a timeout never silently looks like a refused connection or a garbled
// response body.
var (
	// ErrTimeout indicates the request exceeded the configured timeout.
	ErrTimeout = errors.New("classifier: request timed out")

	// ErrMalformedReply indicates the service answered 2xx but the body was
	// not a usable chat-completion response.
	ErrMalformedReply = errors.New("classifier: malformed reply")
)

// systemPrompt instructs the model to answer with a strict JSON verdict.
const systemPrompt = `You are a content moderator. Analyze if the message contains ANY inappropriate content.

Rules:
- Return ONLY JSON, no other text
- JSON format must be:
{
    "bad": true or false,
    "reason": "short explanation",
    "severity": "low", "medium", or "high",
    "category": "profanity", "insult", "hate", "threat", "sexual", "harassment", or "none"
}

Examples:
- "hello how are you?" → {"bad": false, "reason": "Clean message", "severity": "low", "category": "none"}
- "fuck you" → {"bad": true, "reason": "Contains profanity", "severity": "high", "category": "profanity"}
- "you are stupid" → {"bad": true, "reason": "Personal insult", "severity": "medium", "category": "insult"}

Be fair. Only mark as bad if truly inappropriate.`

// Config holds classifier connection settings.
type Config struct {
	Endpoint string        // chat-completions URL
	APIKey   string        // bearer token
	Model    string        // model identifier
	Timeout  time.Duration // per-request timeout
}

// DefaultConfig returns sensible defaults. The API key has no default and
// must be provided by the caller.
func DefaultConfig() Config {
	return Config{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		Timeout:  DefaultTimeout,
	}
}

// Client sends messages to the classification service.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a classifier client. Zero-valued config fields fall back
// to the defaults.
func NewClient(config Config) *Client {
	if config.Endpoint == "" {
		config.Endpoint = DefaultEndpoint
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: config.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify sends the message to the classification service and returns the
// raw reply text of the first choice. Errors are classified: timeouts match
// ErrTimeout, unusable 2xx bodies match ErrMalformedReply, and everything
// else (connection refused, non-2xx status) is a plain transport error.
func (c *Client) Classify(ctx context.Context, message string) (string, error) {
	payload := chatRequest{
		Model:       c.config.Model,
		Temperature: 0.1,
		MaxTokens:   200,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: message},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("classifier: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("classifier: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", "https://github.com/daemonunit42/modguard")
	req.Header.Set("X-Title", "Advanced Moderation System")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("classifier: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("classifier: read body: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrMalformedReply)
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// isTimeout reports whether err represents a deadline or timeout failure.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
