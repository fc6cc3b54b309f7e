// Package llm wraps the external chat-completion API behind a small
// interface so the dispatcher can be tested without network calls.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/aniverse/backend/internal/model"
)

// ErrUnavailable means the completion call failed or timed out; the
// whole chat turn fails when this is returned.
var ErrUnavailable = errors.New("assistant unavailable")

// Completer produces an assistant reply for a bounded conversation
// window. Implementations must respect ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, system string, history []model.ChatTurn, user string) (string, error)
}

// Client calls a Groq/OpenAI-compatible chat-completions endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

// NewClient builds a client for the given endpoint. An empty baseURL
// defaults to Groq's OpenAI-compatible API.
func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	if modelName == "" {
		modelName = "llama-3.1-8b-instant"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      modelName,
		maxTokens:  1024,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Complete(ctx context.Context, system string, history []model.ChatTurn, user string) (string, error) {
	messages := []wireMessage{{Role: "system", Content: system}}
	for _, t := range history {
		messages = append(messages, wireMessage{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, wireMessage{Role: "user", Content: user})

	body, _ := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   c.maxTokens,
		Temperature: 0.7,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(b))
	}

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return result.Choices[0].Message.Content, nil
}
