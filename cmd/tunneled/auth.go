package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strawberryfoundations/tunneled/internal/identity"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Log in with a Strawberry ID and save credentials locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := identity.New()

			code, err := c.RequestCode()
			if err != nil {
				return err
			}
			fmt.Printf("Go to %s to approve this login\n", c.LoginURL(code))

			ident, creds, err := c.Login(context.Background(), code)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (@%s)\n", ident.FullName, ident.Username)

			path, err := identity.Save(creds)
			if err != nil {
				return err
			}
			fmt.Printf("Credentials saved to %s\n", path)
			return nil
		},
	}
}
