package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lehigh-university-libraries/captioner/internal/providers"
)

// DefaultURL is the chat completions endpoint
const DefaultURL = "https://api.openai.com/v1/chat/completions"

// OpenAI is a provider for OpenAI
type OpenAI struct {
	apiKey string
	url    string
	client *http.Client
}

// New returns a new OpenAI provider
func New(apiKey, url string) *OpenAI {
	if url == "" {
		url = DefaultURL
	}
	return &OpenAI{apiKey: apiKey, url: url, client: &http.Client{}}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// Generate sends the prompt and image as a data URL in one user message
func (o *OpenAI) Generate(ctx context.Context, r providers.Request) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	content := []contentPart{{Type: "text", Text: r.Prompt}}
	if len(r.Image) > 0 {
		mimeType := r.MIMEType
		if mimeType == "" {
			mimeType = "image/jpeg"
		}
		content = append(content, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(r.Image),
			},
		})
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model": r.Model,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": content,
			},
		},
		"temperature": r.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("received non-200 status code: %d - %s", resp.StatusCode, string(body))
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return response.Choices[0].Message.Content, nil
}
