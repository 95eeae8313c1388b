package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/strawberryfoundations/tunneled/internal/client"
	"github.com/strawberryfoundations/tunneled/internal/logging"
)

func newLocalCmd() *cobra.Command {
	var (
		useServer   string
		address     string
		controlPort uint16
		staticPort  uint16
		secret      string
		auth        bool
	)

	cmd := &cobra.Command{
		Use:   "local <port>",
		Short: "Expose a local TCP port through a remote tunneled server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := strconv.ParseUint(args[0], 10, 16)
			if err != nil {
				return err
			}

			var sp *uint16
			if staticPort != 0 {
				sp = &staticPort
			}

			log := logging.New(logging.Client, logLevel, logFormat)
			c := client.New(client.Config{
				LocalHost:   address,
				LocalPort:   uint16(port),
				ServerHost:  useServer,
				ControlPort: controlPort,
				Secret:      secret,
				StaticPort:  sp,
				RequireID:   auth,
			}, log)
			return c.Run()
		},
	}

	cmd.Flags().StringVarP(&useServer, "use", "u", "strawberryfoundations.org", "Server hostname")
	// "h" collides with cobra's auto-registered "help" shorthand, so
	// --address is long-only, same as --control-port/--static-port below.
	cmd.Flags().StringVar(&address, "address", "localhost", "Local bind address")
	// -cp/-sp/-id aren't valid single-rune pflag shorthands either; the long
	// forms below are what SPEC_FULL.md's flag table actually binds to.
	cmd.Flags().Uint16Var(&controlPort, "control-port", 7835, "Control channel port")
	cmd.Flags().Uint16Var(&staticPort, "static-port", 0, "Request a fixed public port")
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "Shared secret")
	cmd.Flags().BoolVarP(&auth, "auth", "a", false, "Send identity on Hello")

	return cmd
}
