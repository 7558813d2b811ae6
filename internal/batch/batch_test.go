package batch

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
)

type fakeCaptioner struct {
	mu       sync.Mutex
	active   int32
	maxSeen  int32
	failFor  string
	received []string
}

func (f *fakeCaptioner) Caption(ctx context.Context, upload captionapi.Upload) (*captionapi.Captions, error) {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		seen := atomic.LoadInt32(&f.maxSeen)
		if n <= seen || atomic.CompareAndSwapInt32(&f.maxSeen, seen, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	f.received = append(f.received, upload.Filename)
	f.mu.Unlock()

	if upload.Filename == f.failFor {
		return nil, &captionapi.RejectionError{StatusCode: 500, Message: "quota exceeded"}
	}
	return &captionapi.Captions{CaptionText: "Caption for " + upload.Filename, CaptionArabic: "ترجمة"}, nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 3))); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"))
	writePNG(t, filepath.Join(dir, "a.JPG"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}
	writePNG(t, filepath.Join(dir, "nested", "deep.png"))

	single := filepath.Join(t.TempDir(), "single.png")
	writePNG(t, single)

	got, err := Collect([]string{dir, single, "https://example.com/cat.png"})
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	expected := []string{
		filepath.Join(dir, "a.JPG"),
		filepath.Join(dir, "b.png"),
		single,
		"https://example.com/cat.png",
	}
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Entry %d: expected %s, got %s", i, expected[i], got[i])
		}
	}

	if _, err := Collect([]string{filepath.Join(dir, "missing.png")}); err == nil {
		t.Error("Expected error for missing path")
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	var sources []string
	for _, name := range []string{"one.png", "two.png", "three.png", "four.png", "five.png"} {
		p := filepath.Join(dir, name)
		writePNG(t, p)
		sources = append(sources, p)
	}
	notImage := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(notImage, []byte("plain text pretending"), 0644); err != nil {
		t.Fatal(err)
	}
	sources = append(sources, notImage)

	captioner := &fakeCaptioner{failFor: "three.png"}
	runner := &Runner{Captioner: captioner, Concurrency: 2}
	results := runner.Run(context.Background(), sources)

	if len(results) != len(sources) {
		t.Fatalf("Expected %d results, got %d", len(sources), len(results))
	}
	for i, r := range results {
		if r.Source != sources[i] {
			t.Errorf("Result %d out of order: %s", i, r.Source)
		}
	}
	if results[0].CaptionText != "Caption for one.png" || results[0].Width != 4 || results[0].Height != 3 {
		t.Errorf("Unexpected first result: %+v", results[0])
	}
	if results[2].Error != "quota exceeded" {
		t.Errorf("Expected rejection message, got %q", results[2].Error)
	}
	if results[5].Error == "" {
		t.Error("Expected non-image to fail")
	}
	if got := Failed(results); got != 2 {
		t.Errorf("Expected 2 failures, got %d", got)
	}
	if captioner.maxSeen > 2 {
		t.Errorf("Expected at most 2 concurrent requests, saw %d", captioner.maxSeen)
	}
	if len(captioner.received) != 5 {
		t.Errorf("Expected 5 caption requests, got %d", len(captioner.received))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &Runner{Captioner: &fakeCaptioner{}, Concurrency: 1}
	results := runner.Run(ctx, []string{"a.png"})
	if !errors.Is(ctx.Err(), context.Canceled) || results[0].Error == "" {
		t.Errorf("Expected cancelled result, got %+v", results[0])
	}
}

func TestSaveFormats(t *testing.T) {
	report := Report{
		Endpoint: "http://127.0.0.1:5000/caption",
		Total:    2,
		Failed:   1,
		Results: []Result{
			{Source: "dog.png", MIMEType: "image/png", Width: 4, Height: 3, CaptionText: "A dog", CaptionArabic: "كلب", DurationMS: 12},
			{Source: "cat.png", Error: "quota exceeded"},
		},
	}

	for _, name := range []string{"out.parquet", "out.jsonl", "out/nested.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			if err := Save(path, report); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("Expected 2 results, got %d", len(got))
			}
			if got[0] != report.Results[0] || got[1] != report.Results[1] {
				t.Errorf("Expected %+v, got %+v", report.Results, got)
			}
		})
	}

	if err := Save(filepath.Join(t.TempDir(), "out.csv"), report); err == nil {
		t.Error("Expected unsupported format error")
	}
}
