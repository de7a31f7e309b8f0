// Package cmd implements the autotagger command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/autotagger/internal/bootstrap"
	"github.com/jonesrussell/north-cloud/autotagger/internal/config"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

var (
	// cfgFile is the --config flag.
	cfgFile string

	// debug is the --debug flag.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "autotagger",
		Short: "Classify content with a remote NLU provider and link the results as taxonomy terms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		SilenceUsage: true,
	}
)

// Execute runs the root command until SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or ./config.yml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", cfg.Service.Name, cfg.Service.Version)
			return err
		},
	})

	rootCmd.AddCommand(httpdCommand())
	rootCmd.AddCommand(migrateCommand())
	rootCmd.AddCommand(classifyCommand())
	rootCmd.AddCommand(settingsCommand())
}

func loadConfig() (*config.Config, error) {
	cfg, err := bootstrap.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Service.Debug = true
	}
	return cfg, nil
}

// loadApp builds the full application. The caller must Close it.
func loadApp(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return nil, err
	}

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return app, nil
}

func closeApp(app *bootstrap.App) {
	if err := app.Close(); err != nil {
		app.Logger.Warn("Failed to close connections", logger.Error(err))
	}
	_ = app.Logger.Sync()
}
