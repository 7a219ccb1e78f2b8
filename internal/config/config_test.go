package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "famhub.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("", env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "famhub.db" {
		t.Errorf("DBPath = %q, want famhub.db", cfg.DBPath)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
	if cfg.Token.TTL != 30*24*time.Hour {
		t.Errorf("TTL = %v, want 720h", cfg.Token.TTL)
	}
	if cfg.Push.Enabled() {
		t.Error("push should be disabled without keys")
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
port = "9000"
db_path = "/var/lib/famhub/famhub.db"

[log]
level = "debug"

[token]
secret = "from-file-secret-value"
ttl = "12h"

[push]
vapid_public_key = "pub"
vapid_private_key = "priv"
`)

	cfg, err := Load(path, env(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9000" || cfg.DBPath != "/var/lib/famhub/famhub.db" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want default text", cfg.Log.Format)
	}
	if cfg.Token.TTL != 12*time.Hour {
		t.Errorf("TTL = %v, want 12h", cfg.Token.TTL)
	}
	if !cfg.Push.Enabled() {
		t.Error("push should be enabled with both keys")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "port = \"9000\"\n[token]\nsecret = \"from-file-secret-value\"\n")

	cfg, err := Load(path, env(map[string]string{
		"FAMHUB_PORT":         "7000",
		"FAMHUB_TOKEN_SECRET": "from-env-secret-value",
		"FAMHUB_TOKEN_TTL":    "1h",
		"FAMHUB_LOG_FORMAT":   "json",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "7000" {
		t.Errorf("Port = %q, want 7000", cfg.Port)
	}
	if cfg.Token.Secret != "from-env-secret-value" {
		t.Errorf("Secret = %q, want env value", cfg.Token.Secret)
	}
	if cfg.Token.TTL != time.Hour {
		t.Errorf("TTL = %v, want 1h", cfg.Token.TTL)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, `port = "6000"`)
	cfg, err := Load("", env(map[string]string{"FAMHUB_CONFIG": path}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "6000" {
		t.Errorf("Port = %q, want 6000", cfg.Port)
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	path := writeFile(t, "prot = \"9000\"\n")
	if _, err := Load(path, env(nil)); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestBadTTL(t *testing.T) {
	if _, err := Load("", env(map[string]string{"FAMHUB_TOKEN_TTL": "forever"})); err == nil {
		t.Fatal("expected error for unparseable ttl")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); !errors.Is(err, ErrNoSecret) {
		t.Errorf("err = %v, want ErrNoSecret", err)
	}

	cfg.Token.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for short secret")
	}

	cfg.Token.Secret = "a-long-enough-secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	cfg.Push.VAPIDPublicKey = "pub"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for half-configured push")
	}

	cfg.Push.VAPIDPublicKey = ""
	cfg.Log.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown log format")
	}
}

func TestBackupSettings(t *testing.T) {
	path := writeFile(t, `
[backup]
endpoint = "https://s3.example.com"
bucket = "family-backups"
access_key = "AKIA"
secret_key = "shh"
passphrase = "from-file"
interval = "24h"
`)
	cfg, err := Load(path, env(map[string]string{
		"FAMHUB_BACKUP_PASSPHRASE": "from-env",
		"FAMHUB_BACKUP_RETENTION":  "168h",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	b := cfg.Backup
	if !b.Enabled() || b.Bucket != "family-backups" || b.Endpoint != "https://s3.example.com" {
		t.Errorf("Backup = %+v", b)
	}
	if b.Region != "us-east-1" || b.Prefix != "famhub" {
		t.Errorf("defaults lost: region %q prefix %q", b.Region, b.Prefix)
	}
	if b.Passphrase != "from-env" {
		t.Errorf("Passphrase = %q, want from-env", b.Passphrase)
	}
	if b.Interval != 24*time.Hour || b.Retention != 7*24*time.Hour {
		t.Errorf("Interval = %v, Retention = %v", b.Interval, b.Retention)
	}
	if err := b.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	b.Passphrase = ""
	if err := b.Validate(); err == nil {
		t.Error("expected error for missing passphrase")
	}
	b.Passphrase = "x"
	b.SecretKey = ""
	if err := b.Validate(); err == nil {
		t.Error("expected error for missing credentials")
	}

	if err := (Backup{}).Validate(); err != nil {
		t.Errorf("disabled backup should validate: %v", err)
	}
}

func TestBadBackupInterval(t *testing.T) {
	if _, err := Load("", env(map[string]string{"FAMHUB_BACKUP_INTERVAL": "daily"})); err == nil {
		t.Fatal("expected error for unparseable interval")
	}
}
