package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/database"
	"github.com/dukerupert/famhub/internal/logging"
	"github.com/dukerupert/famhub/internal/push"
	"github.com/dukerupert/famhub/internal/server"
	"github.com/dukerupert/famhub/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API and realtime server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg := server.Config{Tokens: auth.NewTokens(cfg.Token.Secret, cfg.Token.TTL)}
	if cfg.Push.Enabled() {
		svc := push.NewService(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subscriber, nil)
		notifier := push.NewNotifier(svc, store.NewPushStore(db), store.NewProfileStore(db), logger.With("component", "notifier"))
		notifier.Start(ctx)
		defer notifier.Stop()
		srvCfg.Notifier = notifier
		srvCfg.VAPIDPublicKey = svc.VAPIDPublicKey()
	} else {
		logger.Info("web push disabled, no VAPID keys configured")
	}

	srv := server.New(db, srvCfg, logger)

	backups := newBackupManager(cfg.Backup, db, logger)
	backups.Start(ctx)
	defer backups.Stop()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("famhub listening", "addr", httpServer.Addr, "db", cfg.DBPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not closed by Shutdown.
	srv.Hub().DisconnectAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return nil
}
