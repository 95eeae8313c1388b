// Command tunneled is the single binary bundling the local tunnel
// client, the server, the compose runner, identity login, and
// extension plugins.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/strawberryfoundations/tunneled/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

func main() {
	root := &cobra.Command{
		Use:           "tunneled",
		Short:         "Reverse TCP tunnels behind NAT",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")

	root.AddCommand(newLocalCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newComposeCmd())
	root.AddCommand(newAuthCmd())
	root.AddCommand(newAboutCmd())
	root.AddCommand(newPluginCmd())

	if err := root.Execute(); err != nil {
		logging.Fail("%v", err)
		os.Exit(1)
	}
}
