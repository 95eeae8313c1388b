package main

import (
	"github.com/spf13/cobra"

	"github.com/strawberryfoundations/tunneled/internal/compose"
	"github.com/strawberryfoundations/tunneled/internal/config"
	"github.com/strawberryfoundations/tunneled/internal/logging"
)

func newComposeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Run several tunnels at once from a services.yml file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadComposeConfig(file)
			if err != nil {
				return err
			}
			log := logging.New(logging.Client, logLevel, logFormat)
			compose.Run(cfg, log)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "services.yml", "Compose service file")
	return cmd
}
