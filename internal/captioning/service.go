// Package captioning turns an image into a caption pair: an LLM caption in
// the source language and its machine translation.
package captioning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/cache"
	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/config"
	"github.com/lehigh-university-libraries/captioner/internal/gemini"
	"github.com/lehigh-university-libraries/captioner/internal/ollama"
	"github.com/lehigh-university-libraries/captioner/internal/openai"
	"github.com/lehigh-university-libraries/captioner/internal/providers"
	"github.com/lehigh-university-libraries/captioner/internal/utils"
)

// Translator translates caption text into the target language
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Cache stores caption pairs; Get returns nil, nil on a miss
type Cache interface {
	Get(ctx context.Context, key string) (*captionapi.Captions, error)
	Set(ctx context.Context, key string, captions *captionapi.Captions) error
}

type Service struct {
	provider    providers.Provider
	translator  Translator
	cache       Cache
	model       string
	temperature float64
	prompt      string
	target      string
	logger      *slog.Logger
}

// Options configure a Service. Cache may be nil.
type Options struct {
	Provider    providers.Provider
	Translator  Translator
	Cache       Cache
	Model       string
	Temperature float64
	Prompt      string
	Target      string
	Logger      *slog.Logger
}

func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prompt := opts.Prompt
	if prompt == "" {
		prompt = config.DefaultPrompt
	}
	return &Service{
		provider:    opts.Provider,
		translator:  opts.Translator,
		cache:       opts.Cache,
		model:       opts.Model,
		temperature: opts.Temperature,
		prompt:      prompt,
		target:      opts.Target,
		logger:      logger,
	}
}

// NewProvider returns the provider configured by name
func NewProvider(cfg *config.Config) (providers.Provider, error) {
	switch cfg.Provider.Name {
	case "gemini":
		return gemini.New(cfg.Gemini.APIKey), nil
	case "ollama":
		return ollama.New(cfg.Ollama.URL), nil
	case "openai":
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.URL), nil
	default:
		return nil, fmt.Errorf("%w: %s", providers.ErrUnknownProvider, cfg.Provider.Name)
	}
}

// Caption generates the caption pair for one image
func (s *Service) Caption(ctx context.Context, data []byte, mimeType string) (*captionapi.Captions, error) {
	key := cache.Key(utils.CalculateDataMD5(data), s.target)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Cache lookup failed", "key", key, "err", err)
		} else if cached != nil {
			s.logger.Debug("Cache hit", "key", key)
			return cached, nil
		}
	}

	start := time.Now()
	raw, err := s.provider.Generate(ctx, providers.Request{
		Model:       s.model,
		Temperature: s.temperature,
		Prompt:      s.prompt,
		Image:       data,
		MIMEType:    mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate caption: %w", err)
	}

	caption := cleanCaption(raw)
	if caption == "" {
		return nil, fmt.Errorf("provider returned an empty caption")
	}
	s.logger.Info("Generated caption", "model", s.model, "length", len(caption), "duration", time.Since(start))

	captions := &captionapi.Captions{
		CaptionText:   caption,
		CaptionArabic: s.translate(ctx, caption),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, captions); err != nil {
			s.logger.Warn("Cache store failed", "key", key, "err", err)
		}
	}
	return captions, nil
}

// translate falls back to the source caption when translation fails
func (s *Service) translate(ctx context.Context, caption string) string {
	if s.translator == nil {
		return caption
	}
	translated, err := s.translator.Translate(ctx, caption)
	if err != nil || translated == "" {
		s.logger.Warn("Translation failed, using source caption", "err", err)
		return caption
	}
	return translated
}

// cleanCaption trims whitespace and one pair of surrounding double quotes
func cleanCaption(raw string) string {
	c := strings.TrimSpace(raw)
	if len(c) >= 2 && c[0] == '"' && c[len(c)-1] == '"' {
		c = c[1 : len(c)-1]
	}
	return strings.TrimSpace(c)
}
