package dedupstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend selector values accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// DefaultWindow is the deduplication window applied when none is configured.
const DefaultWindow = 60 * time.Second

// Config selects and parameterizes a store backend. Validation happens once,
// at construction; a bad selector or a negative window never survives to
// first use.
type Config struct {
	// Backend is one of memory, file, sqlite, postgres, redis.
	Backend string `yaml:"backend"`
	// Window is the sliding deduplication window. In YAML it is written as
	// a duration string ("90s", "5m") or a bare number of seconds.
	Window time.Duration `yaml:"window"`
	// Path is the entries file location (file backend) or database file
	// (sqlite backend).
	Path string `yaml:"path"`
	// DSN is the postgres connection string.
	DSN string `yaml:"dsn"`
	// Addr is the redis host:port.
	Addr string `yaml:"addr"`
	// Prefix namespaces the table name (relational backends) and the
	// sorted-set key (redis backend).
	Prefix string `yaml:"prefix"`
}

// DefaultConfig returns an in-memory store with the default window, the
// zero-setup configuration used by dry runs and tests.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Window:  DefaultWindow,
		Prefix:  "logfold_",
	}
}

// UnmarshalYAML decodes the store section, parsing the window from a duration
// string or a bare second count. Fields absent from the document keep their
// current values.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		Backend string `yaml:"backend"`
		Window  string `yaml:"window"`
		Path    string `yaml:"path"`
		DSN     string `yaml:"dsn"`
		Addr    string `yaml:"addr"`
		Prefix  string `yaml:"prefix"`
	}{
		Backend: c.Backend,
		Path:    c.Path,
		DSN:     c.DSN,
		Addr:    c.Addr,
		Prefix:  c.Prefix,
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.Backend = raw.Backend
	c.Path = raw.Path
	c.DSN = raw.DSN
	c.Addr = raw.Addr
	c.Prefix = raw.Prefix
	if raw.Window != "" {
		window, err := parseWindow(raw.Window)
		if err != nil {
			return fmt.Errorf("invalid store window %q: %w", raw.Window, err)
		}
		c.Window = window
	}
	return nil
}

func parseWindow(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Validate checks the configuration, including backend-specific required
// fields.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("store backend %q requires a path", c.Backend)
		}
	case BackendPostgres:
		if c.DSN == "" {
			return fmt.Errorf("store backend %q requires a dsn", c.Backend)
		}
	case BackendRedis:
		if c.Addr == "" {
			return fmt.Errorf("store backend %q requires an addr", c.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file, sqlite, postgres, or redis)", c.Backend)
	}
	if c.Window < 0 {
		return fmt.Errorf("store window must not be negative (got %v)", c.Window)
	}
	return nil
}

// Open validates cfg and constructs the selected backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	window := cfg.Window
	if window == 0 {
		window = DefaultWindow
	}
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(window), nil
	case BackendFile:
		return NewFileStore(cfg.Path, window)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path, cfg.Prefix, window)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN, cfg.Prefix, window)
	case BackendRedis:
		return NewRedisStore(cfg.Addr, cfg.Prefix, window), nil
	}
	// Unreachable: Validate rejects unknown selectors.
	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}
