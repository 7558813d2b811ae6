// Package batch captions many images through the caption server.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/images"
)

// Result is the outcome for one image
type Result struct {
	Source        string `json:"source" yaml:"source" parquet:"source"`
	MIMEType      string `json:"mime_type" yaml:"mimetype" parquet:"mime_type"`
	Width         int    `json:"width,omitempty" yaml:"width,omitempty" parquet:"width"`
	Height        int    `json:"height,omitempty" yaml:"height,omitempty" parquet:"height"`
	CaptionText   string `json:"captionText,omitempty" yaml:"captiontext,omitempty" parquet:"caption_text"`
	CaptionArabic string `json:"captionArabic,omitempty" yaml:"captionarabic,omitempty" parquet:"caption_arabic"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty" parquet:"error"`
	DurationMS    int64  `json:"duration_ms" yaml:"durationms" parquet:"duration_ms"`
}

// Captioner issues one caption request
type Captioner interface {
	Caption(ctx context.Context, upload captionapi.Upload) (*captionapi.Captions, error)
}

// Runner captions images with bounded concurrency
type Runner struct {
	Captioner   Captioner
	Fetcher     *images.Fetcher
	Concurrency int
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".webp": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// Collect expands directories one level deep into the image files they
// contain. Files and http(s) URLs are passed through as given.
func Collect(paths []string) ([]string, error) {
	var sources []string
	for _, p := range paths {
		if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
			sources = append(sources, p)
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			sources = append(sources, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			found = append(found, filepath.Join(p, e.Name()))
		}
		sort.Strings(found)
		slog.Debug("Scanned directory", "path", p, "images", len(found))
		sources = append(sources, found...)
	}
	return sources, nil
}

// Run captions every source and returns results in input order
func (r *Runner) Run(ctx context.Context, sources []string) []Result {
	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	fetcher := r.Fetcher
	if fetcher == nil {
		fetcher = images.NewFetcher()
	}

	slog.Info("Processing images", "count", len(sources), "concurrency", concurrency)

	results := make([]Result, len(sources))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i, source := range sources {
		wg.Add(1)
		go func(idx int, source string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			slog.Info("Processing image", "source", source, "progress", fmt.Sprintf("%d/%d", idx+1, len(sources)))
			results[idx] = r.process(ctx, fetcher, source)
		}(i, source)
	}

	wg.Wait()
	return results
}

func (r *Runner) process(ctx context.Context, fetcher *images.Fetcher, source string) (result Result) {
	start := time.Now()
	result.Source = source
	defer func() {
		result.DurationMS = time.Since(start).Milliseconds()
	}()

	if err := ctx.Err(); err != nil {
		result.Error = err.Error()
		return result
	}

	file, err := fetcher.Load(ctx, source)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.MIMEType = file.MIMEType
	if !images.IsImage(file.MIMEType) {
		result.Error = "not an image: " + file.MIMEType
		return result
	}
	if w, h, err := images.Dimensions(file.Data); err == nil {
		result.Width, result.Height = w, h
	}

	captions, err := r.Captioner.Caption(ctx, captionapi.Upload{
		Filename:    file.Name,
		ContentType: file.MIMEType,
		Data:        file.Data,
	})
	if err != nil {
		slog.Error("Caption request failed", "source", source, "err", err)
		result.Error = err.Error()
		return result
	}

	result.CaptionText = captions.CaptionText
	result.CaptionArabic = captions.CaptionArabic
	return result
}

// Failed counts results carrying an error
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
