package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famhub/internal/backup"
	"github.com/dukerupert/famhub/internal/config"
	"github.com/dukerupert/famhub/internal/database"
	"github.com/dukerupert/famhub/internal/logging"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
)

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupRunCmd, backupListCmd, backupRestoreCmd, backupPruneCmd)

	backupListCmd.Flags().Int("limit", 20, "number of backups to show")
	backupRestoreCmd.Flags().String("id", "", "backup id from 'famhub backup list'")
	backupRestoreCmd.Flags().String("key", "", "object key to restore when the local database is gone")
	backupRestoreCmd.MarkFlagsOneRequired("id", "key")
	backupRestoreCmd.MarkFlagsMutuallyExclusive("id", "key")
}

var errBackupDisabled = errors.New("backups are not configured (set [backup] bucket)")

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted database backups in object storage",
}

// newBackupManager returns nil when no bucket is configured.
func newBackupManager(cfg config.Backup, db *sql.DB, logger *slog.Logger) *backup.Manager {
	if !cfg.Enabled() {
		return nil
	}
	objects := backup.NewS3Client(backup.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	return backup.NewManager(backup.Config{
		Bucket:     cfg.Bucket,
		Prefix:     cfg.Prefix,
		Passphrase: cfg.Passphrase,
		Interval:   cfg.Interval,
		Retention:  cfg.Retention,
	}, db, objects, logger.With("component", "backup"))
}

// withBackups loads the config and opens the database for a backup
// subcommand. Token settings are not needed here.
func withBackups(fn func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, os.Getenv)
		if err != nil {
			return err
		}
		if err := cfg.Backup.Validate(); err != nil {
			return err
		}
		if !cfg.Backup.Enabled() {
			return errBackupDisabled
		}
		logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()

		return fn(cmd, cfg, newBackupManager(cfg.Backup, db, logger))
	}
}

var backupRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Take a backup now",
	Args:  cobra.NoArgs,
	RunE: withBackups(func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error {
		rec, err := m.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d bytes\n", rec.ID, rec.ObjectKey, rec.SizeBytes)
		return nil
	}),
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded backups, newest first",
	Args:  cobra.NoArgs,
	RunE: withBackups(func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error {
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := m.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tSIZE\tKEY")
		for _, b := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Local().Format(time.DateTime), b.Status, b.SizeBytes, b.ObjectKey)
		}
		return tw.Flush()
	}),
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the database with a backup (stop the server first)",
	Args:  cobra.NoArgs,
	RunE:  runBackupRestore,
}

// runBackupRestore resolves the object key first and closes the database
// before the file is replaced.
func runBackupRestore(cmd *cobra.Command, args []string) error {
	id, _ := cmd.Flags().GetString("id")
	key, _ := cmd.Flags().GetString("key")

	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return err
	}
	if err := cfg.Backup.Validate(); err != nil {
		return err
	}
	if !cfg.Backup.Enabled() {
		return errBackupDisabled
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	if id != "" {
		db, err := database.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		rec, err := store.NewBackupStore(db).Get(cmd.Context(), id)
		db.Close()
		if err != nil {
			return err
		}
		if rec == nil {
			return fmt.Errorf("%w: %s", backup.ErrNotFound, id)
		}
		if rec.Status != model.BackupCompleted {
			return fmt.Errorf("%w: %s is %s", backup.ErrIncomplete, id, rec.Status)
		}
		key = rec.ObjectKey
	}

	if err := newBackupManager(cfg.Backup, nil, logger).RestoreObject(cmd.Context(), key, cfg.DBPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", cfg.DBPath, key)
	return nil
}

var backupPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete backups older than the retention period",
	Args:  cobra.NoArgs,
	RunE: withBackups(func(cmd *cobra.Command, cfg config.Config, m *backup.Manager) error {
		n, err := m.Prune(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d backups\n", n)
		return nil
	}),
}
