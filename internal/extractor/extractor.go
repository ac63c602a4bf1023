package extractor

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Config identifies the vision endpoint a worker talks to.
type Config struct {
	APIURL string
	Model  string
	APIKey string
}

// Client invokes a vision/LLM chat-completions endpoint to extract
// structured data from a document image. It is a pure function of
// (file, schema, model config): failures come back as errors and the
// worker records them as error outcomes.
type Client struct {
	api   *openai.Client
	model string
}

func New(cfg Config) *Client {
	occ := openai.DefaultConfig(cfg.APIKey)
	occ.BaseURL = normalizeBaseURL(cfg.APIURL)
	return &Client{
		api:   openai.NewClientWithConfig(occ),
		model: cfg.Model,
	}
}

// normalizeBaseURL accepts both ".../v1" and the legacy full
// ".../v1/chat/completions" endpoint form.
func normalizeBaseURL(apiURL string) string {
	u := strings.TrimSuffix(apiURL, "/")
	u = strings.TrimSuffix(u, "/chat/completions")
	return u
}

// Extract reads the file, sends it with an extraction prompt and
// parses the model's reply into a JSON object. A nil schema selects
// the general extraction prompt.
func (c *Client) Extract(ctx context.Context, filePath string, schema map[string]any) (map[string]any, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("file not found: %s", filePath)
	}

	prompt, err := promptFor(schema)
	if err != nil {
		return nil, err
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURI},
					},
				},
			},
		},
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("extraction API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("extraction API returned no choices")
	}

	text := resp.Choices[0].Message.Content
	result, ok := ParseJSON(text)
	if !ok {
		return nil, fmt.Errorf("no JSON object in model reply")
	}

	result["meta"] = map[string]any{
		"file":      filepath.Base(filePath),
		"model":     c.model,
		"num_pages": 1,
	}
	return result, nil
}
