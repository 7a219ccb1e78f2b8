// Package backup takes encrypted snapshots of the SQLite database and keeps
// them in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/famhub/internal/metrics"
	"github.com/dukerupert/famhub/internal/model"
	"github.com/dukerupert/famhub/internal/store"
)

// ObjectStore is the subset of the S3 client the manager uses.
type ObjectStore interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config points at an S3-compatible bucket. Endpoint is empty for AWS.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

// NewS3Client builds a path-style client with static credentials, which
// works against AWS as well as MinIO, R2 and friends.
func NewS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

type Config struct {
	Bucket     string
	Prefix     string
	Passphrase string
	// Interval between scheduled backups. Zero disables the schedule.
	Interval time.Duration
	// Retention is how long snapshots are kept. Zero keeps them forever.
	Retention time.Duration
}

var (
	ErrNotFound     = errors.New("backup not found")
	ErrIncomplete   = errors.New("backup did not complete")
	ErrNoPassphrase = errors.New("backup passphrase is not set")
)

type Manager struct {
	cfg     Config
	db      *sql.DB
	backups *store.BackupStore
	objects ObjectStore
	logger  *slog.Logger

	// mu serializes snapshots.
	mu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, objects ObjectStore, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		db:      db,
		backups: store.NewBackupStore(db),
		objects: objects,
		logger:  logger,
	}
}

func (m *Manager) objectKey(now time.Time) string {
	name := fmt.Sprintf("famhub-%s.db.enc", now.Format("20060102T150405.000Z"))
	if m.cfg.Prefix == "" {
		return name
	}
	return m.cfg.Prefix + "/" + name
}

// Run snapshots the live database, encrypts it and uploads it. The record is
// marked failed when any step after its creation fails.
func (m *Manager) Run(ctx context.Context) (*model.Backup, error) {
	if m.cfg.Passphrase == "" {
		return nil, ErrNoPassphrase
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.backups.Create(ctx, m.objectKey(time.Now().UTC()))
	if err != nil {
		return nil, err
	}

	size, err := m.upload(ctx, rec.ObjectKey)
	if err != nil {
		metrics.Backups.WithLabelValues("failed").Inc()
		if ferr := m.backups.MarkFailed(context.WithoutCancel(ctx), rec.ID, err.Error()); ferr != nil {
			m.logger.Error("failed to record backup failure", "backup_id", rec.ID, "error", ferr)
		}
		return nil, err
	}
	if err := m.backups.MarkCompleted(ctx, rec.ID, size); err != nil {
		return nil, err
	}

	metrics.Backups.WithLabelValues("completed").Inc()
	m.logger.Info("backup completed", "backup_id", rec.ID, "key", rec.ObjectKey, "bytes", size)
	return m.backups.Get(ctx, rec.ID)
}

func (m *Manager) upload(ctx context.Context, key string) (int64, error) {
	dir, err := os.MkdirTemp("", "famhub-backup-")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	// VACUUM INTO writes a consistent copy without stopping writers.
	snapshot := filepath.Join(dir, "snapshot.db")
	vacuum := "VACUUM INTO '" + strings.ReplaceAll(snapshot, "'", "''") + "'"
	if _, err := m.db.ExecContext(ctx, vacuum); err != nil {
		return 0, fmt.Errorf("snapshot database: %w", err)
	}
	plain, err := os.ReadFile(snapshot)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return 0, err
	}

	_, err = m.objects.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	return int64(len(sealed)), nil
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	return m.backups.List(ctx, limit)
}

// Restore downloads backup id, checks it decrypts to a sound SQLite file and
// writes it to dst. The server must not be running against dst.
func (m *Manager) Restore(ctx context.Context, id, dst string) error {
	rec, err := m.backups.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotFound
	}
	if rec.Status != model.BackupCompleted {
		return fmt.Errorf("%w: %s is %s", ErrIncomplete, id, rec.Status)
	}

	if err := m.RestoreObject(ctx, rec.ObjectKey, dst); err != nil {
		return err
	}
	m.logger.Info("backup restored", "backup_id", id, "path", dst)
	return nil
}

// RestoreObject restores the snapshot stored under key without consulting
// the backups table, for when the local database is gone.
func (m *Manager) RestoreObject(ctx context.Context, key, dst string) error {
	out, err := m.objects.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	sealed, err := io.ReadAll(out.Body)
	out.Body.Close()
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}

	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored database: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Prune deletes snapshots older than the retention period and returns how
// many went. Object deletion failures are logged, not returned.
func (m *Manager) Prune(ctx context.Context) (int, error) {
	if m.cfg.Retention <= 0 {
		return 0, nil
	}
	keys, err := m.backups.DeleteOlderThan(ctx, time.Now().Add(-m.cfg.Retention))
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if _, err := m.objects.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("failed to delete backup object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}

// Start runs a backup and prune every Interval until Stop. It does nothing
// when no interval is configured.
func (m *Manager) Start(ctx context.Context) {
	if m == nil || m.cfg.Interval <= 0 {
		return
	}
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scheduled(ctx)
			}
		}
	}()
	m.logger.Info("backup schedule started", "interval", m.cfg.Interval)
}

func (m *Manager) scheduled(ctx context.Context) {
	if _, err := m.Run(ctx); err != nil {
		if ctx.Err() == nil {
			m.logger.Error("scheduled backup failed", "error", err)
		}
		return
	}
	if n, err := m.Prune(ctx); err != nil {
		m.logger.Error("backup prune failed", "error", err)
	} else if n > 0 {
		m.logger.Info("pruned old backups", "count", n)
	}
}

// Stop ends the schedule and waits for a running backup to finish.
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.loopMu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.loopMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
