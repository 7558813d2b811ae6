// Package translate calls the public Google translate endpoint.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultURL is the keyless "gtx" client endpoint
const DefaultURL = "https://translate.googleapis.com/translate_a/single"

// Client translates text between two fixed languages
type Client struct {
	URL    string
	Source language.Tag
	Target language.Tag

	httpClient *http.Client
}

// New returns a client translating source to target
func New(rawURL string, source, target language.Tag) *Client {
	if rawURL == "" {
		rawURL = DefaultURL
	}
	return &Client{
		URL:        rawURL,
		Source:     source,
		Target:     target,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// TargetName is the English name of the target language, e.g. "Arabic"
func (c *Client) TargetName() string {
	return display.English.Tags().Name(c.Target)
}

// Translate returns text in the target language
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	u, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("failed to parse translate URL: %w", err)
	}
	q := u.Query()
	q.Set("client", "gtx")
	q.Set("sl", c.Source.String())
	q.Set("tl", c.Target.String())
	q.Set("dt", "t")
	q.Set("q", text)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create translate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send translate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("translate returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode translate response: %w", err)
	}

	return joinSegments(payload)
}

// joinSegments concatenates the translated part of every segment in
// payload[0]; each segment is [translated, original, ...].
func joinSegments(payload []json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translate response")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected translate response: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(seg[0], &s); err != nil {
			continue
		}
		sb.WriteString(s)
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("no translated text in response")
	}
	return sb.String(), nil
}
