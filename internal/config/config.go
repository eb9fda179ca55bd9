// Package config loads seeds settings from a CUE, YAML, or TOML file and
// the environment.
//
// Precedence, lowest first: Default, the config file, DATABASE_URL, then
// command-line flags (applied by the caller).
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/seeds/internal/backend"
	"github.com/roach88/seeds/internal/lock"
	"github.com/roach88/seeds/internal/script"
)

// EnvDatabaseURL names the environment variable holding the database URL.
const EnvDatabaseURL = "DATABASE_URL"

// DefaultSource is the script directory used when none is configured.
const DefaultSource = "seeds"

// DefaultFiles are the config file names Find looks for, in order.
var DefaultFiles = []string{"seeds.cue", "seeds.yaml", "seeds.yml", "seeds.toml"}

//go:embed schema.cue
var schemaSource string

// Config holds resolved settings.
type Config struct {
	// Source is the directory holding script files.
	Source string

	// DatabaseURL selects the backend by scheme (sqlite:, postgres:).
	DatabaseURL string

	// Table is the tracking table name.
	Table string

	IgnoreMissing bool

	// Checksum names the digest, see script.DigestByName.
	Checksum string

	// LockTimeout bounds the wait for the tracking lock. Zero waits until
	// the command is interrupted; negative tries once.
	LockTimeout time.Duration

	// RedisURL, when set, moves locking to Redis.
	RedisURL string
	RedisTTL time.Duration

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Source:   DefaultSource,
		Table:    backend.DefaultTable,
		Checksum: script.SHA384.Name(),
		RedisTTL: lock.DefaultRedisTTL,
	}
}

// fileConfig mirrors Config as written in files. Pointers distinguish unset
// keys from zero values.
type fileConfig struct {
	Source        *string `json:"source,omitempty" yaml:"source" toml:"source"`
	DatabaseURL   *string `json:"database_url,omitempty" yaml:"database_url" toml:"database_url"`
	Table         *string `json:"table,omitempty" yaml:"table" toml:"table"`
	IgnoreMissing *bool   `json:"ignore_missing,omitempty" yaml:"ignore_missing" toml:"ignore_missing"`
	Checksum      *string `json:"checksum,omitempty" yaml:"checksum" toml:"checksum"`
	LockTimeout   *string `json:"lock_timeout,omitempty" yaml:"lock_timeout" toml:"lock_timeout"`
	RedisURL      *string `json:"redis_url,omitempty" yaml:"redis_url" toml:"redis_url"`
	RedisTTL      *string `json:"redis_ttl,omitempty" yaml:"redis_ttl" toml:"redis_ttl"`
	MetricsFile   *string `json:"metrics_file,omitempty" yaml:"metrics_file" toml:"metrics_file"`
}

// Load reads path over Default and applies the environment. An empty path
// skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		fc, err := readFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if err := fc.apply(&cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Find returns the first of DefaultFiles present in dir, or "".
func Find(dir string) string {
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// ApplyEnv overrides the database URL from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvDatabaseURL); ok && strings.TrimSpace(v) != "" {
		c.DatabaseURL = strings.TrimSpace(v)
	}
}

// Validate checks settings that do not depend on the database.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("config: source must not be empty")
	}
	if strings.TrimSpace(c.Table) == "" {
		return errors.New("config: table must not be empty")
	}
	if _, err := script.DigestByName(c.Checksum); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.RedisURL != "" && c.RedisTTL <= 0 {
		return fmt.Errorf("config: redis_ttl must be positive, got %s", c.RedisTTL)
	}
	return nil
}

// Digest returns the configured checksum strategy.
func (c Config) Digest() (script.Digest, error) {
	return script.DigestByName(c.Checksum)
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		return decodeCUE(path, data)
	case ".yaml", ".yml":
		return decodeYAML(data)
	case ".toml":
		return decodeTOML(data)
	default:
		return fileConfig{}, fmt.Errorf("unsupported config format %q (expected .cue, .yaml, or .toml)", ext)
	}
}

func decodeCUE(path string, data []byte) (fileConfig, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fileConfig{}, fmt.Errorf("compile schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return fileConfig{}, err
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fileConfig{}, err
	}

	var fc fileConfig
	if err := unified.Decode(&fc); err != nil {
		return fileConfig{}, err
	}
	return fc, nil
}

func decodeYAML(data []byte) (fileConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return fileConfig{}, err
	}
	return fc, nil
}

func decodeTOML(data []byte) (fileConfig, error) {
	var fc fileConfig
	meta, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fileConfig{}, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fileConfig{}, fmt.Errorf("unknown keys: %v", undecoded)
	}
	return fc, nil
}

func (fc fileConfig) apply(cfg *Config) error {
	if fc.Source != nil {
		cfg.Source = strings.TrimSpace(*fc.Source)
	}
	if fc.DatabaseURL != nil {
		cfg.DatabaseURL = strings.TrimSpace(*fc.DatabaseURL)
	}
	if fc.Table != nil {
		cfg.Table = strings.TrimSpace(*fc.Table)
	}
	if fc.IgnoreMissing != nil {
		cfg.IgnoreMissing = *fc.IgnoreMissing
	}
	if fc.Checksum != nil {
		cfg.Checksum = strings.TrimSpace(*fc.Checksum)
	}
	if fc.LockTimeout != nil {
		d, err := time.ParseDuration(*fc.LockTimeout)
		if err != nil {
			return fmt.Errorf("lock_timeout: %w", err)
		}
		cfg.LockTimeout = d
	}
	if fc.RedisURL != nil {
		cfg.RedisURL = strings.TrimSpace(*fc.RedisURL)
	}
	if fc.RedisTTL != nil {
		d, err := time.ParseDuration(*fc.RedisTTL)
		if err != nil {
			return fmt.Errorf("redis_ttl: %w", err)
		}
		cfg.RedisTTL = d
	}
	if fc.MetricsFile != nil {
		cfg.MetricsFile = strings.TrimSpace(*fc.MetricsFile)
	}
	return nil
}
