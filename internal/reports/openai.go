package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

// LLM generates markdown from a system prompt and a user prompt.
type LLM interface {
	Generate(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// OpenAIClient talks to the OpenAI chat completions API.
type OpenAIClient struct {
	apiKey string
	model  string
	client *resty.Client
}

var _ LLM = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAI client.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		apiKey: apiKey,
		model:  model,
		client: resty.New().
			SetBaseURL("https://api.openai.com/v1").
			SetTimeout(2 * time.Minute).
			SetHeader("Content-Type", "application/json"),
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
	MaxTokens   int           `json:"max_tokens"`
}

// Generate runs one chat completion and returns the message content.
func (c *OpenAIClient) Generate(ctx context.Context, system, user string, maxTokens int) (string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetAuthToken(c.apiKey).
		SetBody(chatRequest{
			Model: c.model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
			Temperature: 0.7,
			MaxTokens:   maxTokens,
		}).
		Post("/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("LLM API returned status %d: %s",
			resp.StatusCode(), gjson.GetBytes(resp.Body(), "error.message").String())
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content").String()
	return content, nil
}
