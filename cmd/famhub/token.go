package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/database"
	"github.com/dukerupert/famhub/internal/store"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("profile", "", "profile id to issue the token for")
	tokenCmd.MarkFlagRequired("profile")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for an existing profile",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	profileID, _ := cmd.Flags().GetString("profile")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := store.NewProfileStore(db).GetByID(cmd.Context(), profileID)
	if err != nil {
		return err
	}
	if p == nil {
		return fmt.Errorf("profile %q not found", profileID)
	}

	token, err := auth.NewTokens(cfg.Token.Secret, cfg.Token.TTL).Issue(p)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
