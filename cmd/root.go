package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lehigh-university-libraries/captioner/internal/config"
	"github.com/lehigh-university-libraries/captioner/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// configKey annotates a flag with the config key it overrides
const configKey = "captioner.config_key"

type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "captioner",
		Short: "Image captioning with vision LLMs and machine translation",
		Long: `Captioner generates a one-sentence caption for an image and its translation.

It ships the caption server (captioner api), a browser workflow
(captioner serve) and command line captioning of single images or whole
directories.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (yaml, toml or json)")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "auto", "Log format (auto, text, json)")
	bindFlag(cmd.PersistentFlags(), "log-level", "log.level")
	bindFlag(cmd.PersistentFlags(), "log-format", "log.format")

	cmd.AddCommand(
		newServeCmd(a),
		newAPICmd(a),
		newCaptionCmd(a),
		newBatchCmd(a),
	)

	return cmd
}

func bindFlag(fs *pflag.FlagSet, name, key string) {
	_ = fs.SetAnnotation(name, configKey, []string{key})
}

// setup loads config with the running command's annotated flags and
// installs the default logger.
func (a *app) setup(cmd *cobra.Command) error {
	flags := make(map[string]*pflag.Flag)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[configKey]; len(keys) == 1 {
			flags[keys[0]] = f
		}
	})

	cfg, err := config.Load(a.configPath, flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	slog.Debug("Config loaded", "config", a.configPath, "provider", cfg.Provider.Name, "endpoint", cfg.Endpoint)
	return nil
}
