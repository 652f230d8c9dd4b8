package intervene

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thehen/warden/internal/model"
)

// RemoteGenerator composes intervention messages through an
// OpenAI-compatible chat-completions endpoint. It is treated as an
// untrusted, possibly-slow dependency: every call is bounded by the client
// timeout and any failure makes the dispatcher fall back to the template.
type RemoteGenerator struct {
	url        string
	model      string
	httpClient *http.Client
}

// NewRemoteGenerator creates a generator for the given completions endpoint.
func NewRemoteGenerator(url, model string, timeout time.Duration) *RemoteGenerator {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RemoteGenerator{
		url:   url,
		model: model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate asks the completion model for a short persona-voiced message.
func (g *RemoteGenerator) Generate(ctx context.Context, persona model.Persona, domain string, minutes int, settings model.UserSettings) (string, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a concise accountability coach."},
			{Role: "user", Content: buildPrompt(persona, domain, minutes, settings)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("intervene: marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("intervene: create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+settings.APIKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("intervene: send completion request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("intervene: completion status %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("intervene: decode completion response: %w", err)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("intervene: empty completion returned")
	}

	return result.Choices[0].Message.Content, nil
}

func buildPrompt(persona model.Persona, domain string, minutes int, settings model.UserSettings) string {
	return fmt.Sprintf(
		"You are %s, an accountability partner.\n"+
			"Tone: %s.\n"+
			"User Identity Goal: %s.\n"+
			"User Weakness: %s.\n\n"+
			"The user has been on %s for %d minutes.\n\n"+
			"Generate a 1-2 sentence intervention message.\n"+
			"It should be %s in intensity.\n"+
			"Refer to their identity goal to guilt/motivate them.",
		persona.Name, persona.Tone, settings.Identity, settings.Weakness,
		domain, minutes, settings.Intensity,
	)
}
