package captioning

import (
	"context"
	"errors"
	"testing"

	"github.com/lehigh-university-libraries/captioner/internal/cache"
	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/config"
	"github.com/lehigh-university-libraries/captioner/internal/providers"
	"github.com/lehigh-university-libraries/captioner/internal/utils"
)

type fakeProvider struct {
	answer string
	err    error
	calls  []providers.Request
}

func (f *fakeProvider) Generate(ctx context.Context, req providers.Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.answer, f.err
}

type fakeTranslator struct {
	answer string
	err    error
}

func (f *fakeTranslator) Translate(ctx context.Context, text string) (string, error) {
	return f.answer, f.err
}

type memCache map[string]*captionapi.Captions

func (m memCache) Get(ctx context.Context, key string) (*captionapi.Captions, error) {
	return m[key], nil
}

func (m memCache) Set(ctx context.Context, key string, c *captionapi.Captions) error {
	m[key] = c
	return nil
}

func TestCleanCaption(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"A dog on grass.", "A dog on grass."},
		{"\"A dog on grass.\"", "A dog on grass."},
		{"  \"A dog.\"\n", "A dog."},
		{"A \"quoted\" word", "A \"quoted\" word"},
		{"\"\"", ""},
		{"\"", "\""},
		{"A sign reading \"STOP\"", "A sign reading \"STOP\""},
		{"\"Hello\" says the sign", "\"Hello\" says the sign"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := cleanCaption(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestCaption(t *testing.T) {
	provider := &fakeProvider{answer: "\"A dog on grass.\""}
	svc := NewService(Options{
		Provider:    provider,
		Translator:  &fakeTranslator{answer: "كلب على العشب."},
		Model:       "gemini-2.5-pro",
		Temperature: 0.1,
		Target:      "ar",
	})

	got, err := svc.Caption(context.Background(), []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Caption failed: %v", err)
	}
	if got.CaptionText != "A dog on grass." || got.CaptionArabic != "كلب على العشب." {
		t.Errorf("Unexpected captions: %+v", got)
	}

	if len(provider.calls) != 1 {
		t.Fatalf("Expected 1 provider call, got %d", len(provider.calls))
	}
	req := provider.calls[0]
	if req.Prompt != config.DefaultPrompt || req.MIMEType != "image/png" || string(req.Image) != "img" {
		t.Errorf("Unexpected provider request: %+v", req)
	}
}

func TestCaptionTranslationFallback(t *testing.T) {
	tests := []struct {
		name       string
		translator Translator
	}{
		{"no translator", nil},
		{"translator error", &fakeTranslator{err: errors.New("quota")}},
		{"empty translation", &fakeTranslator{answer: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Options{Provider: &fakeProvider{answer: "A cat."}, Translator: tt.translator})
			got, err := svc.Caption(context.Background(), []byte("img"), "image/png")
			if err != nil {
				t.Fatalf("Caption failed: %v", err)
			}
			if got.CaptionArabic != "A cat." {
				t.Errorf("Expected source caption as fallback, got %q", got.CaptionArabic)
			}
		})
	}
}

func TestCaptionProviderErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider *fakeProvider
	}{
		{"provider error", &fakeProvider{err: errors.New("quota exceeded")}},
		{"blank answer", &fakeProvider{answer: "  \"\" "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(Options{Provider: tt.provider})
			if _, err := svc.Caption(context.Background(), []byte("img"), "image/png"); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestCaptionUsesCache(t *testing.T) {
	c := memCache{}
	provider := &fakeProvider{answer: "A dog."}
	svc := NewService(Options{
		Provider:   provider,
		Translator: &fakeTranslator{answer: "كلب."},
		Cache:      c,
		Target:     "ar",
	})

	for i := 0; i < 2; i++ {
		got, err := svc.Caption(context.Background(), []byte("img"), "image/png")
		if err != nil {
			t.Fatalf("Caption failed: %v", err)
		}
		if got.CaptionArabic != "كلب." {
			t.Errorf("Unexpected captions: %+v", got)
		}
	}

	if len(provider.calls) != 1 {
		t.Errorf("Expected second call served from cache, got %d provider calls", len(provider.calls))
	}
	if _, ok := c[cache.Key(utils.CalculateDataMD5([]byte("img")), "ar")]; !ok {
		t.Error("Expected captions stored under the digest key")
	}
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"gemini", "ollama", "openai"} {
		cfg := &config.Config{Provider: config.ProviderConfig{Name: name}}
		if _, err := NewProvider(cfg); err != nil {
			t.Errorf("NewProvider(%s) failed: %v", name, err)
		}
	}

	_, err := NewProvider(&config.Config{Provider: config.ProviderConfig{Name: "claude"}})
	if !errors.Is(err, providers.ErrUnknownProvider) {
		t.Errorf("Expected ErrUnknownProvider, got %v", err)
	}
}
