// Package llm is a chat client for a local Ollama server. It keeps the
// conversation history and composes retrieval context into prompts.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Message is a single chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the Ollama chat API and accumulates history across turns.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
	history []Message
}

// Config configures the chat client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient creates a chat client seeded with the system prompt.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("chat model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 2 * time.Minute
	}
	return &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: t},
		history: []Message{{Role: "system", Content: SystemPrompt}},
	}, nil
}

// EnsureModel verifies the model is present on the server and pulls it when
// missing. Called once at startup; a failure here is fatal.
func (c *Client) EnsureModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("listing models failed: %s", resp.Status)
	}
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return err
	}
	for _, m := range tags.Models {
		if m.Name == c.model || strings.TrimSuffix(m.Name, ":latest") == c.model {
			return nil
		}
	}
	return c.pull(ctx)
}

func (c *Client) pull(ctx context.Context) error {
	body, _ := json.Marshal(map[string]any{"name": c.model, "stream": false})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to pull model %s: %w", c.model, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("failed to pull model %s: %s", c.model, resp.Status)
	}
	return nil
}

// Chat sends the prompt with the full history and returns the reply.
// On success the user prompt and the reply are appended to the history;
// a failed turn leaves the history untouched.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	messages := append(append([]Message{}, c.history...), Message{Role: "user", Content: prompt})
	resp, err := c.send(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		Message Message `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	c.remember(prompt, out.Message.Content)
	return out.Message.Content, nil
}

// ChatStream streams the reply token-by-token through onToken and returns
// the full reply once the server reports it is done.
func (c *Client) ChatStream(ctx context.Context, prompt string, onToken func(string)) (string, error) {
	messages := append(append([]Message{}, c.history...), Message{Role: "user", Content: prompt})
	resp, err := c.send(ctx, messages, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk struct {
			Message Message `json:"message"`
			Done    bool    `json:"done"`
		}
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("malformed stream chunk: %w", err)
		}
		if chunk.Message.Content != "" {
			reply.WriteString(chunk.Message.Content)
			if onToken != nil {
				onToken(chunk.Message.Content)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	c.remember(prompt, reply.String())
	return reply.String(), nil
}

// History returns a copy of the conversation so far.
func (c *Client) History() []Message {
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Client) remember(prompt, reply string) {
	c.history = append(c.history,
		Message{Role: "user", Content: prompt},
		Message{Role: "assistant", Content: reply},
	)
}

func (c *Client) send(ctx context.Context, messages []Message, stream bool) (*http.Response, error) {
	body, _ := json.Marshal(map[string]any{
		"model":    c.model,
		"messages": messages,
		"stream":   stream,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model server unreachable: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("chat request failed: %s", resp.Status)
	}
	return resp, nil
}
