package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Config is the full captioner configuration.
type Config struct {
	Endpoint         string        `mapstructure:"endpoint"`
	TranslationDelay time.Duration `mapstructure:"translation_delay"`

	Log         LogConfig         `mapstructure:"log"`
	UI          UIConfig          `mapstructure:"ui"`
	API         APIConfig         `mapstructure:"api"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	Gemini      GeminiConfig      `mapstructure:"gemini"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
	Ollama      OllamaConfig      `mapstructure:"ollama"`
	Translation TranslationConfig `mapstructure:"translation"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Batch       BatchConfig       `mapstructure:"batch"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UIConfig is the browser-facing workflow server
type UIConfig struct {
	Port       string        `mapstructure:"port"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
}

// APIConfig is the caption server
type APIConfig struct {
	Host           string `mapstructure:"host"`
	Port           string `mapstructure:"port"`
	Mode           string `mapstructure:"mode"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type ProviderConfig struct {
	Name        string  `mapstructure:"name"`
	Model       string  `mapstructure:"model"`
	Temperature float64 `mapstructure:"temperature"`
	Prompt      string  `mapstructure:"prompt"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	URL    string `mapstructure:"url"`
}

type OllamaConfig struct {
	URL string `mapstructure:"url"`
}

type TranslationConfig struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
	URL    string `mapstructure:"url"`
}

// RedisConfig enables the caption cache when Addr is set
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type BatchConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// DefaultPrompt asks for the single-sentence caption.
const DefaultPrompt = "Generate a clear and concise caption that accurately describes the contents of this image. The caption should be a single sentence. Respond only with the caption text."

// Known provider names
var providers = map[string]bool{"gemini": true, "ollama": true, "openai": true}

// Load reads defaults, the optional config file at path, the environment and
// any flags bound in flags, in increasing order of precedence.
//
// flags maps config keys (e.g. "api.port") to cobra flags.
func Load(path string, flags map[string]*pflag.Flag) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CAPTIONER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Provider.Model == "" {
		cfg.Provider.Model = DefaultModel(cfg.Provider.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "http://127.0.0.1:5000/caption")
	v.SetDefault("translation_delay", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")

	v.SetDefault("ui.port", "8888")
	v.SetDefault("ui.session_ttl", 30*time.Minute)

	v.SetDefault("api.host", "127.0.0.1")
	v.SetDefault("api.port", "5000")
	v.SetDefault("api.mode", "release")
	v.SetDefault("api.max_upload_bytes", 10*1024*1024)

	v.SetDefault("provider.name", "gemini")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.temperature", 0.1)
	v.SetDefault("provider.prompt", DefaultPrompt)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("ollama.url", "http://localhost:11434")

	v.SetDefault("translation.source", "en")
	v.SetDefault("translation.target", "ar")
	v.SetDefault("translation.url", "https://translate.googleapis.com/translate_a/single")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("batch.concurrency", 4)
}

// bindLegacyEnv keeps the unprefixed variables provider SDKs document.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("gemini.api_key", "CAPTIONER_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("openai.api_key", "CAPTIONER_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("ollama.url", "CAPTIONER_OLLAMA_URL", "OLLAMA_URL", "OLLAMA_HOST")
	_ = v.BindEnv("provider.name", "CAPTIONER_PROVIDER_NAME", "CAPTIONING_PROVIDER")
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "gemini":
		return "gemini-2.5-pro"
	case "openai":
		return "gpt-4o"
	case "ollama":
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("endpoint: invalid URL %q", c.Endpoint))
	}
	if c.TranslationDelay < 0 {
		errs = append(errs, fmt.Errorf("translation_delay: must not be negative"))
	}
	if !providers[c.Provider.Name] {
		errs = append(errs, fmt.Errorf("provider.name: unsupported provider %q (supported: gemini, ollama, openai)", c.Provider.Name))
	}
	if _, err := language.Parse(c.Translation.Source); err != nil {
		errs = append(errs, fmt.Errorf("translation.source: %w", err))
	}
	if _, err := language.Parse(c.Translation.Target); err != nil {
		errs = append(errs, fmt.Errorf("translation.target: %w", err))
	}
	if c.UI.SessionTTL < 0 {
		errs = append(errs, fmt.Errorf("ui.session_ttl: must not be negative"))
	}
	if c.API.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("api.max_upload_bytes: must be positive"))
	}
	if c.Batch.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("batch.concurrency: must be at least 1"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SourceTag and TargetTag are only valid after Validate.
func (c *Config) SourceTag() language.Tag {
	return language.Make(c.Translation.Source)
}

func (c *Config) TargetTag() language.Tag {
	return language.Make(c.Translation.Target)
}
