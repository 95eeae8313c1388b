package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAboutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "about",
		Short: "Print a one-line description of tunneled",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("tunneled - reverse TCP tunnels behind NAT")
			return nil
		},
	}
}
