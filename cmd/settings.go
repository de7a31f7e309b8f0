package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/autotagger/internal/analysis"
	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
)

func settingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change feature, tag filter and credential settings",
	}

	cmd.AddCommand(settingsGetCommand())
	cmd.AddCommand(settingsSetCommand())
	cmd.AddCommand(tagFilterCommand())
	cmd.AddCommand(credentialsCommand())
	return cmd
}

func settingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [feature]",
		Short: "Show feature settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			if len(args) == 0 {
				all, allErr := app.Settings.All(ctx)
				if allErr != nil {
					return allErr
				}
				renderFeatureConfigs(cmd.OutOrStdout(), all)
				return nil
			}

			f, err := domain.ParseFeatureName(args[0])
			if err != nil {
				return err
			}
			cfg, err := app.Settings.Get(ctx, f)
			if err != nil {
				return err
			}
			renderFeatureConfigs(cmd.OutOrStdout(), []domain.FeatureConfig{cfg})
			return nil
		},
	}
}

type settingsSetFlags struct {
	enabled   bool
	threshold float64
	taxonomy  string
	limit     int
	sentiment bool
	emotion   bool
}

func settingsSetCommand() *cobra.Command {
	var flags settingsSetFlags

	cmd := &cobra.Command{
		Use:   "set <feature>",
		Short: "Change feature settings; unset flags keep their stored value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := domain.ParseFeatureName(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			cfg, err := app.Settings.Get(ctx, f)
			if err != nil {
				return err
			}
			cfg = applySetFlags(cmd, cfg, flags)

			saved, err := app.Settings.Set(ctx, cfg)
			if err != nil {
				return err
			}
			renderFeatureConfigs(cmd.OutOrStdout(), []domain.FeatureConfig{saved})
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.enabled, "enabled", false, "enable the feature")
	f.Float64Var(&flags.threshold, "threshold", domain.DefaultThreshold, "minimum score percentage (0-100)")
	f.StringVar(&flags.taxonomy, "taxonomy", "", "taxonomy receiving the terms")
	f.IntVar(&flags.limit, "limit", 0, "maximum labels requested from the provider")
	f.BoolVar(&flags.sentiment, "sentiment", false, "request sentiment")
	f.BoolVar(&flags.emotion, "emotion", false, "request emotion")
	return cmd
}

func applySetFlags(cmd *cobra.Command, cfg domain.FeatureConfig, flags settingsSetFlags) domain.FeatureConfig {
	changed := cmd.Flags().Changed
	if changed("enabled") {
		cfg.Enabled = flags.enabled
	}
	if changed("threshold") {
		cfg.Threshold = flags.threshold
	}
	if changed("taxonomy") {
		cfg.Taxonomy = flags.taxonomy
	}
	if changed("limit") {
		cfg.Options.Limit = flags.limit
	}
	if changed("sentiment") {
		cfg.Options.Sentiment = flags.sentiment
	}
	if changed("emotion") {
		cfg.Options.Emotion = flags.emotion
	}
	return cfg
}

func tagFilterCommand() *cobra.Command {
	var (
		mode   string
		labels []string
	)

	cmd := &cobra.Command{
		Use:   "tag-filter",
		Short: "Show the tag filter, or replace it with --mode and --labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			if !cmd.Flags().Changed("mode") {
				policy, getErr := app.Settings.TagFilter(ctx)
				if getErr != nil {
					return getErr
				}
				renderTagFilter(cmd.OutOrStdout(), policy)
				return nil
			}

			policy, err := app.Settings.SetTagFilter(ctx, mode, labels)
			if err != nil {
				return err
			}
			renderTagFilter(cmd.OutOrStdout(), policy)
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "none, allow or deny")
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "comma-separated labels")
	return cmd
}

func credentialsCommand() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Persist provider credentials used when config and environment leave them empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" && password == "" {
				return errors.New("set --username, --password or both")
			}

			ctx := cmd.Context()
			app, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			if username != "" {
				if err = app.Settings.SetOption(ctx, analysis.OptionUsername, username); err != nil {
					return err
				}
			}
			if password != "" {
				if err = app.Settings.SetOption(ctx, analysis.OptionPassword, password); err != nil {
					return err
				}
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Credentials stored (configured: %t)\n", app.Analysis.HasCredentials(ctx))
			return err
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "provider username")
	cmd.Flags().StringVar(&password, "password", "", "provider password or API key")
	return cmd
}
