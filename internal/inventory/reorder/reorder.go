// Package reorder asks a language model for restocking suggestions.
package reorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medistock/medistock-backend/pkg/config"
)

// ErrNotConfigured is returned when no model endpoint is configured.
var ErrNotConfigured = fmt.Errorf("reorder advisor is not configured")

// Advisor turns a JSON inventory snapshot into a JSON array of suggestions.
type Advisor interface {
	Suggest(ctx context.Context, inventoryJSON string) (string, error)
}

const promptTemplate = `You are an AI assistant specialized in inventory management for medical supplies. Analyze the provided inventory data and predict potential shortages based on current stock levels and expiration dates. Recommend reordering actions, including the item name, quantity to reorder, and the reason for the reorder. Structure your response as a JSON array of reordering suggestions, each an object with the keys "itemName", "quantityToReorder" and "reason".

Inventory Data: %s

Output reordering suggestions in JSON format:
`

// LLMClient talks to an OpenAI-compatible chat completions endpoint.
type LLMClient struct {
	endpoint string
	apiKey   string
	model    string
	http     *http.Client
}

// NewLLMClient creates a client from cfg.
func NewLLMClient(cfg config.AIConfig) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &LLMClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		http:     &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Suggest returns the raw model answer with any Markdown code fence removed.
// The caller validates its shape.
func (c *LLMClient) Suggest(ctx context.Context, inventoryJSON string) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: fmt.Sprintf(promptTemplate, inventoryJSON)}},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("model response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("model response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("model returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return StripCodeFence(parsed.Choices[0].Message.Content), nil
}

// StripCodeFence removes a surrounding ``` or ```json fence.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
