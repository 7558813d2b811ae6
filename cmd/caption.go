package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/images"
	"github.com/lehigh-university-libraries/captioner/internal/workflow"
	"github.com/spf13/cobra"
)

type captionOutput struct {
	Image         string `json:"image"`
	CaptionText   string `json:"captionText"`
	CaptionArabic string `json:"captionArabic"`
	Displayed     string `json:"displayed"`
	DisplayMode   string `json:"display_mode"`
}

func newCaptionCmd(a *app) *cobra.Command {
	var (
		translated bool
		jsonOut    bool
	)

	cmd := &cobra.Command{
		Use:   "caption <image>",
		Short: "Caption one image through the caption server",
		Long: `Sends one image (a file path or an http(s) URL) to the caption server and
prints its caption. With --translate the translated caption is printed
instead, after the same pause the web workflow shows.`,
		Example: `  captioner caption dog.jpg
  captioner caption --translate https://example.com/dog.jpg
  captioner caption --json dog.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			ctx := cmd.Context()

			file, err := images.NewFetcher().Load(ctx, args[0])
			if err != nil {
				return err
			}
			if !images.IsImage(file.MIMEType) {
				return fmt.Errorf("%s is not an image (%s)", args[0], file.MIMEType)
			}

			ctrl := workflow.NewController(workflow.Options{
				Captioner:        captionapi.NewClient(cfg.Endpoint),
				TranslationDelay: cfg.TranslationDelay,
				Logger:           a.logger,
			})

			ctrl.SelectImage(*file)
			ctrl.Generate()
			if err := ctrl.Wait(ctx); err != nil {
				return err
			}
			if notices := ctrl.Notices(); len(notices) > 0 {
				ctrl.Close()
				return errors.New(notices[0].Message)
			}

			if translated {
				ctrl.ToggleTranslation()
				if err := ctrl.Wait(ctx); err != nil {
					return err
				}
			}

			s := ctrl.Snapshot()
			ctrl.Close()
			if s.Result == nil {
				return fmt.Errorf("no caption received for %s", args[0])
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(captionOutput{
					Image:         file.Name,
					CaptionText:   s.Result.Text,
					CaptionArabic: s.Result.Translated,
					Displayed:     s.Displayed(),
					DisplayMode:   s.Mode.String(),
				})
			}

			_, err = fmt.Fprintln(out, s.Displayed())
			return err
		},
	}

	cmd.Flags().BoolVarP(&translated, "translate", "t", false, "Print the translated caption")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print both captions as JSON")
	cmd.Flags().String("endpoint", captionapi.DefaultEndpoint, "Caption server endpoint")
	cmd.Flags().Duration("translation-delay", workflow.DefaultTranslationDelay, "Pause before the translated caption is shown")
	bindFlag(cmd.Flags(), "endpoint", "endpoint")
	bindFlag(cmd.Flags(), "translation-delay", "translation_delay")

	return cmd
}
