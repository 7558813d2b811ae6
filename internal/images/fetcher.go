package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// MaxBytes caps the size of any image read or downloaded
const MaxBytes = 10 * 1024 * 1024

// ErrTooLarge is returned for images over MaxBytes
var ErrTooLarge = errors.New("image too large")

// Fetcher retrieves images from local paths or http(s) URLs
type Fetcher struct {
	HTTPClient *http.Client
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Load reads source, which is either a file path or a URL, and sniffs its
// MIME type. Non-image content is returned as is; callers decide.
func (f *Fetcher) Load(ctx context.Context, source string) (*File, error) {
	var (
		file *File
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		file, err = f.download(ctx, source)
	} else {
		file, err = readFile(source)
	}
	if err != nil {
		return nil, err
	}

	file.Sniff()
	slog.Debug("Loaded image", "source", source, "mime", file.MIMEType, "bytes", len(file.Data))
	return file, nil
}

func readFile(p string) (*File, error) {
	fh, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer fh.Close()

	data, err := readLimited(fh)
	if err != nil {
		return nil, err
	}

	return &File{Name: filepath.Base(p), Data: data}, nil
}

func (f *Fetcher) download(ctx context.Context, imageURL string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d", resp.StatusCode)
	}

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, err
	}

	// Extract filename from URL
	name := path.Base(strings.SplitN(imageURL, "?", 2)[0])
	if name == "" || name == "/" || name == "." {
		name = "image"
	}

	return &File{
		Name:     name,
		MIMEType: resp.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxBytes {
		return nil, fmt.Errorf("%w (max %d MB)", ErrTooLarge, MaxBytes/1024/1024)
	}
	return data, nil
}

// ReadUpload reads an uploaded file and sniffs its MIME type
func ReadUpload(r io.Reader, name, contentType string) (*File, error) {
	data, err := readLimited(r)
	if err != nil {
		return nil, err
	}
	file := &File{Name: name, MIMEType: contentType, Data: data}
	file.Sniff()
	return file, nil
}
