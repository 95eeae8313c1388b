package main

import (
	"github.com/spf13/cobra"

	"github.com/strawberryfoundations/tunneled/internal/config"
	"github.com/strawberryfoundations/tunneled/internal/logging"
	"github.com/strawberryfoundations/tunneled/internal/server"
)

func newServerCmd() *cobra.Command {
	var (
		configFile  string
		minPort     uint16
		maxPort     uint16
		controlPort uint16
		secret      string
		requireID   bool
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the publicly reachable tunnel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg *config.ServerConfig

			// A config file is only consulted when -f/--file was actually
			// given; otherwise the server is built straight from flags, same
			// as the original tunneled binary's Command::Server branch.
			if cmd.Flags().Changed("file") {
				loaded, err := config.LoadServerConfig(configFile)
				if err != nil {
					return err
				}
				cfg = loaded
				if cmd.Flags().Changed("min-port") {
					cfg.Host.MinPort = minPort
				}
				if cmd.Flags().Changed("max-port") {
					cfg.Host.MaxPort = maxPort
				}
				if cmd.Flags().Changed("control-port") {
					cfg.Host.ControlPort = controlPort
				}
				if cmd.Flags().Changed("secret") {
					cfg.Auth.Secret = secret
				}
				if cmd.Flags().Changed("require-id") {
					cfg.Auth.RequireID = requireID
				}
			} else {
				cfg = &config.ServerConfig{
					Host: config.HostConfig{
						MinPort:     minPort,
						MaxPort:     maxPort,
						ControlPort: controlPort,
						TunnelsAddr: "0.0.0.0",
					},
					Auth: config.AuthConfig{
						Secret:    secret,
						RequireID: requireID,
					},
				}
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logging.New(logging.Server, logLevel, logFormat)
			return server.New(cfg, log).Listen()
		},
	}

	cmd.Flags().StringVarP(&configFile, "file", "f", "server.yml", "Server config file")
	cmd.Flags().Uint16Var(&minPort, "min-port", 1024, "Inclusive lower bound of the allocatable port range")
	cmd.Flags().Uint16Var(&maxPort, "max-port", 65535, "Inclusive upper bound of the allocatable port range")
	cmd.Flags().Uint16Var(&controlPort, "control-port", 7835, "Control channel port")
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "Shared secret")
	cmd.Flags().BoolVar(&requireID, "require-id", false, "Require a verified Strawberry ID")

	return cmd
}
