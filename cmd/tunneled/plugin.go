package main

import (
	"github.com/spf13/cobra"

	"github.com/strawberryfoundations/tunneled/internal/plugin"
)

// pluginRegistry is empty out of the box; a deployment wires in its
// own extensions by calling Register before root.Execute in a fork of
// this file.
var pluginRegistry = plugin.NewRegistry()

func newPluginCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "plugin",
		Short:              "Run a registered extension",
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return pluginRegistry.Run(args)
		},
	}
}
