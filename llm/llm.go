// Package llm queries an OpenAI-compatible chat completions endpoint,
// keeping a rolling conversation history so follow-up questions have
// context.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type Options struct {
	BaseURL     string
	Model       string
	APIKey      string
	System      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	HistoryMax  int // messages kept, oldest pairs dropped first
}

type Client struct {
	httpClient *http.Client
	opts       Options

	mu      sync.Mutex
	history []chatMessage
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	FinishReason string      `json:"finish_reason"`
	Message      chatMessage `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.HistoryMax == 0 {
		opts.HistoryMax = 40
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		opts:       opts,
	}
}

// Query sends the transcript with the conversation so far and returns
// the assistant's reply. The exchange is recorded in the history only
// when the request succeeds, so a cancelled or failed call leaves no
// half-turn behind.
func (c *Client) Query(ctx context.Context, transcript string) (string, error) {
	c.mu.Lock()
	messages := make([]chatMessage, 0, len(c.history)+2)
	if c.opts.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.opts.System})
	}
	messages = append(messages, c.history...)
	messages = append(messages, chatMessage{Role: "user", Content: transcript})
	c.mu.Unlock()

	reply, err := c.complete(ctx, messages)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.history = append(c.history,
		chatMessage{Role: "user", Content: transcript},
		chatMessage{Role: "assistant", Content: reply})
	for len(c.history) > c.opts.HistoryMax {
		c.history = c.history[2:]
	}
	c.mu.Unlock()

	return reply, nil
}

func (c *Client) complete(ctx context.Context, messages []chatMessage) (string, error) {
	endpoint := strings.TrimRight(c.opts.BaseURL, "/") + "/chat/completions"

	reqBody, _ := json.Marshal(chatCompletionsRequest{
		Model:       c.opts.Model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Surface the cancellation itself, not the transport wrapper.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", err
	}
	if len(cr.Choices) == 0 {
		return "", errors.New("llm: empty choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}

// HistoryLen reports how many messages the rolling history holds.
func (c *Client) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Reset clears the conversation history.
func (c *Client) Reset() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}
