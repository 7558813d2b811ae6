package captionapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// DefaultEndpoint is where the caption server listens out of the box.
const DefaultEndpoint = "http://127.0.0.1:5000/caption"

// Client talks to a caption server
type Client struct {
	Endpoint   string
	httpClient *http.Client
}

// NewClient creates a new caption client for the given endpoint.
// Requests have no timeout and are never retried.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

// WithHTTPClient swaps the underlying HTTP client
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Caption posts the image and returns both captions.
//
// Errors are one of *TransportError, *RejectionError or *PayloadError.
func (c *Client) Caption(ctx context.Context, upload Upload) (*Captions, error) {
	body, contentType, err := encodeUpload(upload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		if err := json.Unmarshal(data, &errResp); err != nil {
			return nil, newRejection(resp.StatusCode, "")
		}
		return nil, newRejection(resp.StatusCode, errResp.Error)
	}

	return decodeCaptions(data)
}

// Health checks GET /health next to the caption endpoint
func (c *Client) Health(ctx context.Context) error {
	healthURL, err := healthURL(c.Endpoint)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return newRejection(resp.StatusCode, "")
	}

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return &PayloadError{Reason: "health body is not JSON", Err: err}
	}
	if health.Status != "healthy" {
		return newRejection(resp.StatusCode, "status "+health.Status)
	}
	return nil
}

func encodeUpload(upload Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := upload.Filename
	if filename == "" {
		filename = "image"
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, FieldName, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}

// decodeCaptions requires both caption fields to be present strings
func decodeCaptions(data []byte) (*Captions, error) {
	var raw struct {
		CaptionText   *string `json:"captionText"`
		CaptionArabic *string `json:"captionArabic"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &PayloadError{Reason: "body is not a caption object", Err: err}
	}

	var missing []string
	if raw.CaptionText == nil {
		missing = append(missing, "captionText")
	}
	if raw.CaptionArabic == nil {
		missing = append(missing, "captionArabic")
	}
	if len(missing) > 0 {
		return nil, &PayloadError{Reason: "missing " + strings.Join(missing, ", ")}
	}

	return &Captions{
		CaptionText:   *raw.CaptionText,
		CaptionArabic: *raw.CaptionArabic,
	}, nil
}

func healthURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/caption") + "/health"
	u.RawQuery = ""
	return u.String(), nil
}
