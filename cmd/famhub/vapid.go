package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famhub/internal/push"
)

func init() {
	rootCmd.AddCommand(vapidCmd)
}

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Generate a VAPID key pair for web push",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "[push]")
		fmt.Fprintf(out, "vapid_public_key = %q\n", pub)
		fmt.Fprintf(out, "vapid_private_key = %q\n", priv)
		return nil
	},
}
