package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/processor"
)

const defaultListLimit = 100

type classifyFlags struct {
	status      string
	limit       int
	preview     bool
	concurrency int
	maxErrors   int
	rps         float64
}

func classifyCommand() *cobra.Command {
	var flags classifyFlags

	cmd := &cobra.Command{
		Use:   "classify [content-id...]",
		Short: "Classify content items and link the results",
		Long: `Classify the given content items, or every item selected by --status and --limit
when no ids are given. With --preview the provider labels are printed and nothing is linked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			ids := args
			if len(ids) == 0 {
				ids, err = app.Database.Content.ListIDs(ctx, contentStatus(flags.status), flags.limit)
				if err != nil {
					return err
				}
			}
			if len(ids) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "No content items to classify")
				return err
			}

			out := cmd.OutOrStdout()
			if flags.preview {
				var errs []error
				for _, id := range ids {
					resp, classifyErr := app.Orchestrator.Classify(ctx, id, nil)
					if classifyErr != nil {
						errs = append(errs, fmt.Errorf("%s: %w", id, classifyErr))
						continue
					}
					renderPreview(out, id, resp)
				}
				return errors.Join(errs...)
			}

			summary := app.NewBatch(processor.Options{
				Concurrency:   flags.concurrency,
				MaxErrors:     flags.maxErrors,
				RatePerSecond: flags.rps,
			}).Run(ctx, ids)
			renderSummary(out, summary)

			if summary.Failed > 0 {
				return fmt.Errorf("%d of %d items failed", summary.Failed, summary.Total)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.status, "status", string(domain.StatusPublished), "content status to select when no ids are given (empty for any)")
	f.IntVar(&flags.limit, "limit", defaultListLimit, "maximum items to select when no ids are given (0 for no limit)")
	f.BoolVar(&flags.preview, "preview", false, "print provider labels without linking")
	f.IntVar(&flags.concurrency, "concurrency", 0, "items in flight (default from config)")
	f.IntVar(&flags.maxErrors, "max-errors", 0, "stop after this many failures (default from config)")
	f.Float64Var(&flags.rps, "rps", 0, "requests per second (default from config)")

	return cmd
}

func contentStatus(s string) domain.ContentStatus {
	if s == "" {
		return ""
	}
	return domain.ParseContentStatus(s)
}
