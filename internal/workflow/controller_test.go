package workflow

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/images"
	"github.com/lehigh-university-libraries/captioner/internal/preview"
)

type fakeCaptioner struct {
	mu      sync.Mutex
	uploads []captionapi.Upload
	gate    chan struct{}
	result  *captionapi.Captions
	err     error
}

func (f *fakeCaptioner) Caption(ctx context.Context, upload captionapi.Upload) (*captionapi.Captions, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, upload)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCaptioner) calls() []captionapi.Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]captionapi.Upload(nil), f.uploads...)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Wait(ctx); err != nil {
		t.Fatalf("controller did not settle: %v", err)
	}
}

func dogFile() images.File {
	return images.File{Name: "dog.png", MIMEType: "image/png", Data: []byte("dog-bytes")}
}

func TestControllerCaptionsAndToggles(t *testing.T) {
	captioner := &fakeCaptioner{result: &captionapi.Captions{CaptionText: "A dog", CaptionArabic: "كلب"}}
	c := NewController(Options{Captioner: captioner, TranslationDelay: 0})

	if !c.SelectImage(dogFile()) {
		t.Fatal("Expected image to be accepted")
	}
	c.Generate()
	waitIdle(t, c)

	calls := captioner.calls()
	if len(calls) != 1 {
		t.Fatalf("Expected exactly 1 request, got %d", len(calls))
	}
	if !bytes.Equal(calls[0].Data, []byte("dog-bytes")) || calls[0].ContentType != "image/png" {
		t.Errorf("Request carried wrong upload: %+v", calls[0])
	}

	s := c.Snapshot()
	if s.State != CaptionsReady || s.Displayed() != "A dog" {
		t.Fatalf("Expected 'A dog' ready, got %s %q", s.State, s.Displayed())
	}

	c.ToggleTranslation()
	waitIdle(t, c)
	if got := c.Snapshot().Displayed(); got != "كلب" {
		t.Errorf("Expected translated caption, got %q", got)
	}

	c.ToggleTranslation()
	waitIdle(t, c)
	if got := c.Snapshot().Displayed(); got != "A dog" {
		t.Errorf("Expected source caption again, got %q", got)
	}
}

func TestControllerSingleRequestInFlight(t *testing.T) {
	captioner := &fakeCaptioner{
		gate:   make(chan struct{}),
		result: &captionapi.Captions{CaptionText: "A dog", CaptionArabic: "كلب"},
	}
	c := NewController(Options{Captioner: captioner})

	c.Generate()
	if c.Snapshot().State != Idle {
		t.Error("Generate without an image must do nothing")
	}

	c.SelectImage(dogFile())
	c.Generate()
	c.Generate()
	c.Generate()

	if s := c.Snapshot(); s.State != Generating || s.CanGenerate() {
		t.Errorf("Expected generating with trigger disabled, got %s", s.State)
	}

	close(captioner.gate)
	waitIdle(t, c)

	if n := len(captioner.calls()); n != 1 {
		t.Errorf("Expected exactly 1 request, got %d", n)
	}
}

func TestControllerFailureSurfacesNotice(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     NoticeKind
		expected string
	}{
		{
			name:     "server rejection",
			err:      &captionapi.RejectionError{StatusCode: 400, Message: "bad image"},
			kind:     ServerRejection,
			expected: "bad image",
		},
		{
			name:     "transport failure",
			err:      &captionapi.TransportError{Err: errors.New("connection refused")},
			kind:     TransportFailure,
			expected: captionapi.TransportFailureMessage,
		},
		{
			name:     "payload error",
			err:      &captionapi.PayloadError{Reason: "missing captionArabic"},
			kind:     PayloadError,
			expected: payloadFailureMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewController(Options{Captioner: &fakeCaptioner{err: tt.err}})
			c.SelectImage(dogFile())
			c.Generate()
			waitIdle(t, c)

			s := c.Snapshot()
			if s.State != ImageSelected {
				t.Errorf("Expected image_selected, got %s", s.State)
			}
			if s.Result != nil {
				t.Error("Expected no caption result")
			}
			if s.Image == nil || s.Image.Name != "dog.png" {
				t.Error("Expected image retained after failure")
			}

			notices := c.Notices()
			if len(notices) != 1 {
				t.Fatalf("Expected 1 notice, got %d", len(notices))
			}
			if notices[0].Kind != tt.kind || notices[0].Message != tt.expected {
				t.Errorf("Expected %s %q, got %+v", tt.kind, tt.expected, notices[0])
			}
			if len(c.Notices()) != 0 {
				t.Error("Expected notices to be drained")
			}
		})
	}
}

func TestControllerReleasesSupersededPreview(t *testing.T) {
	previews := preview.NewStore()
	c := NewController(Options{Captioner: &fakeCaptioner{}, Previews: previews})

	c.SelectImage(dogFile())
	first := c.Snapshot().Image.PreviewURI
	if _, ok := previews.Get(first); !ok {
		t.Fatal("Expected preview for first image")
	}

	c.SelectImage(images.File{Name: "cat.png", MIMEType: "image/png", Data: []byte("cat")})
	if _, ok := previews.Get(first); ok {
		t.Error("Expected first preview to be released")
	}
	if previews.Len() != 1 {
		t.Errorf("Expected 1 live preview, got %d", previews.Len())
	}

	if c.SelectImage(images.File{Name: "notes.txt", MIMEType: "text/plain", Data: []byte("x")}) {
		t.Error("Expected non-image to be rejected")
	}
	if previews.Len() != 1 {
		t.Errorf("Non-image must not create a preview, got %d", previews.Len())
	}

	c.Close()
	if previews.Len() != 0 {
		t.Errorf("Expected all previews released on close, got %d", previews.Len())
	}
	if c.SelectImage(dogFile()) {
		t.Error("Expected closed controller to refuse new images")
	}
}

func TestControllerTranslationDelayShowsIndicator(t *testing.T) {
	captioner := &fakeCaptioner{result: &captionapi.Captions{CaptionText: "A dog", CaptionArabic: "كلب"}}
	c := NewController(Options{Captioner: captioner, TranslationDelay: time.Second})
	fire := make(chan time.Time)
	var gotDelay time.Duration
	c.after = func(d time.Duration) <-chan time.Time {
		gotDelay = d
		return fire
	}

	c.SelectImage(dogFile())
	c.Generate()
	waitIdle(t, c)

	c.ToggleTranslation()
	if s := c.Snapshot(); !s.Translating || s.Displayed() != "A dog" {
		t.Errorf("Expected indicator with source caption, got translating=%v %q", s.Translating, s.Displayed())
	}

	fire <- time.Now()
	waitIdle(t, c)

	if gotDelay != time.Second {
		t.Errorf("Expected 1s delay, got %s", gotDelay)
	}
	if s := c.Snapshot(); s.Translating || s.Displayed() != "كلب" {
		t.Errorf("Expected translated caption, got translating=%v %q", s.Translating, s.Displayed())
	}
}

func TestControllerDropsLateResponseForReplacedImage(t *testing.T) {
	captioner := &fakeCaptioner{
		gate:   make(chan struct{}),
		result: &captionapi.Captions{CaptionText: "A dog", CaptionArabic: "كلب"},
	}
	c := NewController(Options{Captioner: captioner})

	c.SelectImage(dogFile())
	c.Generate()
	c.SelectImage(images.File{Name: "cat.png", MIMEType: "image/png", Data: []byte("cat")})

	close(captioner.gate)
	waitIdle(t, c)

	s := c.Snapshot()
	if s.State != ImageSelected || s.Result != nil {
		t.Errorf("Expected late caption to be discarded, got %s %+v", s.State, s.Result)
	}
	if s.Image.Name != "cat.png" {
		t.Errorf("Expected cat.png selected, got %s", s.Image.Name)
	}
	if !s.CanGenerate() {
		t.Error("Expected generate to be enabled once the stale request finished")
	}
}
