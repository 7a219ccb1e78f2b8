// Package config loads famhub settings: built-in defaults, then an optional
// TOML file, then FAMHUB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port   string `toml:"port"`
	DBPath string `toml:"db_path"`
	Log    Log    `toml:"log"`
	Token  Token  `toml:"token"`
	Push   Push   `toml:"push"`
	Backup Backup `toml:"backup"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type Token struct {
	Secret string        `toml:"secret"`
	TTL    time.Duration `toml:"ttl"`
}

// Push is enabled when both VAPID keys are set.
type Push struct {
	VAPIDPublicKey  string `toml:"vapid_public_key"`
	VAPIDPrivateKey string `toml:"vapid_private_key"`
	Subscriber      string `toml:"subscriber"`
}

func (p Push) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// Backup is enabled when a bucket is set. Interval and Retention of zero
// mean no schedule and keep forever.
type Backup struct {
	Endpoint   string        `toml:"endpoint"`
	Region     string        `toml:"region"`
	Bucket     string        `toml:"bucket"`
	Prefix     string        `toml:"prefix"`
	AccessKey  string        `toml:"access_key"`
	SecretKey  string        `toml:"secret_key"`
	Passphrase string        `toml:"passphrase"`
	Interval   time.Duration `toml:"interval"`
	Retention  time.Duration `toml:"retention"`
}

func (b Backup) Enabled() bool {
	return b.Bucket != ""
}

func Default() Config {
	return Config{
		Port:   "8080",
		DBPath: "famhub.db",
		Log:    Log{Level: "info", Format: "text"},
		Token:  Token{TTL: 30 * 24 * time.Hour},
		Push:   Push{Subscriber: "noreply@famhub.app"},
		Backup: Backup{Region: "us-east-1", Prefix: "famhub", Retention: 30 * 24 * time.Hour},
	}
}

// Load builds the configuration. path may be empty; getenv is os.Getenv
// outside tests.
func Load(path string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv("FAMHUB_CONFIG")
	}
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("config %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"FAMHUB_PORT", &cfg.Port},
		{"FAMHUB_DB_PATH", &cfg.DBPath},
		{"FAMHUB_LOG_LEVEL", &cfg.Log.Level},
		{"FAMHUB_LOG_FORMAT", &cfg.Log.Format},
		{"FAMHUB_TOKEN_SECRET", &cfg.Token.Secret},
		{"FAMHUB_VAPID_PUBLIC_KEY", &cfg.Push.VAPIDPublicKey},
		{"FAMHUB_VAPID_PRIVATE_KEY", &cfg.Push.VAPIDPrivateKey},
		{"FAMHUB_VAPID_SUBSCRIBER", &cfg.Push.Subscriber},
		{"FAMHUB_BACKUP_ENDPOINT", &cfg.Backup.Endpoint},
		{"FAMHUB_BACKUP_REGION", &cfg.Backup.Region},
		{"FAMHUB_BACKUP_BUCKET", &cfg.Backup.Bucket},
		{"FAMHUB_BACKUP_ACCESS_KEY", &cfg.Backup.AccessKey},
		{"FAMHUB_BACKUP_SECRET_KEY", &cfg.Backup.SecretKey},
		{"FAMHUB_BACKUP_PASSPHRASE", &cfg.Backup.Passphrase},
	}
	for _, s := range strs {
		if v := getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	durs := []struct {
		key string
		dst *time.Duration
	}{
		{"FAMHUB_TOKEN_TTL", &cfg.Token.TTL},
		{"FAMHUB_BACKUP_INTERVAL", &cfg.Backup.Interval},
		{"FAMHUB_BACKUP_RETENTION", &cfg.Backup.Retention},
	}
	for _, d := range durs {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return nil
}

const minSecretLength = 16

// ErrNoSecret is returned by Validate when no token secret is configured.
var ErrNoSecret = errors.New("token secret is not set (FAMHUB_TOKEN_SECRET)")

// Validate checks the settings needed to serve or sign tokens.
func (c Config) Validate() error {
	if c.Token.Secret == "" {
		return ErrNoSecret
	}
	if len(c.Token.Secret) < minSecretLength {
		return fmt.Errorf("token secret must be at least %d characters", minSecretLength)
	}
	if c.Token.TTL <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return fmt.Errorf("both VAPID keys must be set to enable push")
	}
	if err := c.Backup.Validate(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Validate checks a configured backup target. An unset bucket is valid and
// leaves backups off.
func (b Backup) Validate() error {
	if !b.Enabled() {
		return nil
	}
	if b.AccessKey == "" || b.SecretKey == "" {
		return fmt.Errorf("backup bucket %q needs access_key and secret_key", b.Bucket)
	}
	if b.Passphrase == "" {
		return fmt.Errorf("backup bucket %q needs a passphrase", b.Bucket)
	}
	if b.Interval < 0 || b.Retention < 0 {
		return fmt.Errorf("backup interval and retention must not be negative")
	}
	return nil
}
