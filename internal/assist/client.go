// Package assist implements the hub's TextAssistant collaborator as an
// HTTP client for an Ollama-compatible text-completion endpoint.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls a completion endpoint to produce automated replies. The
// hub treats replies as best-effort: any error here is logged upstream
// and swallowed.
type Client struct {
	baseURL string
	model   string
	client  *http.Client
}

// New creates an assistant client. baseURL should be like
// "http://localhost:11434".
func New(baseURL, model string, timeout time.Duration) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Reply produces an automated answer for a chat message. The language
// tag is passed through as a prompt hint so replies match the sender's
// language.
func (c *Client) Reply(ctx context.Context, roomID, content, language string) (string, error) {
	prompt := c.buildPrompt(content, language)

	payload, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate", strings.NewReader(string(payload)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return strings.TrimSpace(result.Response), nil
}

func (c *Client) buildPrompt(content, language string) string {
	var b strings.Builder
	b.WriteString("You are a government-services support assistant. ")
	b.WriteString("Answer the applicant's question briefly and factually. ")
	b.WriteString("If the question needs a human caseworker, say so.\n")
	if language != "" {
		fmt.Fprintf(&b, "Reply in language: %s\n", language)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(content)
	return b.String()
}
