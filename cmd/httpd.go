package cmd

import (
	"github.com/spf13/cobra"
)

func httpdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "httpd",
		Short: "Serve the classification, settings and diagnostics API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(app)

			return app.NewServer().RunWithGracefulShutdown(cmd.Context())
		},
	}
}
