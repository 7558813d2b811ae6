package cmd

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/lehigh-university-libraries/captioner/internal/batch"
	"github.com/lehigh-university-libraries/captioner/internal/captionapi"
	"github.com/lehigh-university-libraries/captioner/internal/logging"
	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "batch <path>...",
		Short: "Caption many images through the caption server",
		Long: `Captions every image given on the command line. Directories are scanned
one level deep for image files; http(s) URLs are downloaded.

Results are written to --output as Parquet, JSON Lines or YAML depending on
the file extension, and summarized on stdout.`,
		Example: `  captioner batch ./photos --output captions.parquet
  captioner batch a.jpg b.png --concurrency 8 --output results.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			ctx := cmd.Context()

			sources, err := batch.Collect(args)
			if err != nil {
				return err
			}
			if len(sources) == 0 {
				return fmt.Errorf("no images found")
			}

			client := captionapi.NewClient(cfg.Endpoint)
			if err := client.Health(ctx); err != nil {
				a.logger.Warn("Caption server health check failed", "endpoint", cfg.Endpoint, "err", err)
			}

			runner := &batch.Runner{
				Captioner:   client,
				Concurrency: cfg.Batch.Concurrency,
			}
			results := runner.Run(ctx, sources)
			failed := batch.Failed(results)

			if output != "" {
				if err := batch.Save(output, batch.Report{
					Endpoint:  cfg.Endpoint,
					Timestamp: time.Now().Format(time.RFC3339),
					Total:     len(results),
					Failed:    failed,
					Results:   results,
				}); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if logging.IsTerminal(out) {
				fmt.Fprintln(out, renderResults(results))
			} else {
				writeTSV(out, results)
			}

			a.logger.Info("Batch complete", "total", len(results), "failed", failed)
			if failed == len(results) {
				return fmt.Errorf("all %d images failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Write results to this file (.parquet, .jsonl, .yaml)")
	cmd.Flags().IntP("concurrency", "c", 4, "Number of concurrent caption requests")
	cmd.Flags().String("endpoint", captionapi.DefaultEndpoint, "Caption server endpoint")
	bindFlag(cmd.Flags(), "concurrency", "batch.concurrency")
	bindFlag(cmd.Flags(), "endpoint", "endpoint")

	return cmd
}

func renderResults(results []batch.Result) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Image", "Size", "Caption", "Translation", "Time"})

	for _, r := range results {
		size := ""
		if r.Width > 0 {
			size = fmt.Sprintf("%dx%d", r.Width, r.Height)
		}
		caption := r.CaptionText
		if r.Error != "" {
			caption = text.FgRed.Sprint(r.Error)
		}
		tw.AppendRow(table.Row{r.Source, size, caption, r.CaptionArabic, time.Duration(r.DurationMS) * time.Millisecond})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, WidthMax: 60},
		{Number: 4, WidthMax: 60},
		{Number: 5, Align: text.AlignRight},
	})
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d images, %d failed", len(results), batch.Failed(results)), "", ""})
	return tw.Render()
}

func writeTSV(w io.Writer, results []batch.Result) {
	fmt.Fprintln(w, "source\tcaption_text\tcaption_arabic\terror\tduration_ms")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Source, r.CaptionText, r.CaptionArabic, r.Error, strconv.FormatInt(r.DurationMS, 10))
	}
}
