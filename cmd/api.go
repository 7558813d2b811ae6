package cmd

import (
	"context"
	"net"
	"time"

	"github.com/lehigh-university-libraries/captioner/internal/cache"
	"github.com/lehigh-university-libraries/captioner/internal/captioning"
	"github.com/lehigh-university-libraries/captioner/internal/server"
	"github.com/lehigh-university-libraries/captioner/internal/translate"
	"github.com/spf13/cobra"
)

func newAPICmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Start the caption server (POST /caption)",
		Long: `Starts the caption HTTP API.

POST /caption takes a multipart "image" field and answers with
{"captionText": ..., "captionArabic": ...}. The caption comes from the
configured vision provider (gemini, openai or ollama) and is translated with
Google Translate. Set redis.addr to cache answers by image digest.`,
		Example: `  # Gemini on the default address 127.0.0.1:5000
  GEMINI_API_KEY=... captioner api

  # Local Ollama model, listening on all interfaces
  captioner api --host 0.0.0.0 --provider ollama --model llava:13b`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg

			provider, err := captioning.NewProvider(cfg)
			if err != nil {
				return err
			}

			translator := translate.New(cfg.Translation.URL, cfg.SourceTag(), cfg.TargetTag())

			var captionCache captioning.Cache
			if cfg.Redis.Addr != "" {
				redisCache := cache.NewRedis(cache.Config{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
					TTL:      cfg.Redis.TTL,
				})
				pingCtx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
				err := redisCache.Ping(pingCtx)
				cancel()
				if err != nil {
					a.logger.Warn("redis connection failed, cache disabled", "addr", cfg.Redis.Addr, "err", err)
					_ = redisCache.Close()
				} else {
					a.logger.Info("redis connected successfully", "addr", cfg.Redis.Addr)
					captionCache = redisCache
					defer redisCache.Close()
				}
			}

			svc := captioning.NewService(captioning.Options{
				Provider:    provider,
				Translator:  translator,
				Cache:       captionCache,
				Model:       cfg.Provider.Model,
				Temperature: cfg.Provider.Temperature,
				Prompt:      cfg.Provider.Prompt,
				Target:      cfg.Translation.Target,
				Logger:      a.logger,
			})

			srv := server.New(server.Options{
				Captioner:      svc,
				Mode:           cfg.API.Mode,
				MaxUploadBytes: cfg.API.MaxUploadBytes,
				Logger:         a.logger,
			})

			a.logger.Info("Starting caption server",
				"provider", cfg.Provider.Name,
				"model", cfg.Provider.Model,
				"translate_to", translator.TargetName(),
			)
			return srv.Run(cmd.Context(), net.JoinHostPort(cfg.API.Host, cfg.API.Port))
		},
	}

	cmd.Flags().String("host", "127.0.0.1", "Address to bind")
	cmd.Flags().StringP("port", "p", "5000", "Port to listen on")
	cmd.Flags().String("provider", "gemini", "Vision provider (gemini, openai, ollama)")
	cmd.Flags().String("model", "", "Model name (defaults per provider)")
	cmd.Flags().String("target", "ar", "Translation target language (BCP 47)")
	bindFlag(cmd.Flags(), "host", "api.host")
	bindFlag(cmd.Flags(), "port", "api.port")
	bindFlag(cmd.Flags(), "provider", "provider.name")
	bindFlag(cmd.Flags(), "model", "provider.model")
	bindFlag(cmd.Flags(), "target", "translation.target")

	return cmd
}
