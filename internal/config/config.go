// Package config loads pipeline configuration from a YAML file with
// LOGFOLD_* environment-variable overrides on top. Validation happens once at
// load time; nothing downstream re-checks configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logfold/logfold/internal/dedupstore"
	"github.com/logfold/logfold/internal/pipeline"
	"github.com/logfold/logfold/internal/signature"
	"github.com/logfold/logfold/internal/tracker"
)

// Config is the full runtime configuration.
type Config struct {
	Store     dedupstore.Config `yaml:"store"`
	Pipeline  pipeline.Config   `yaml:"pipeline"`
	Tracker   TrackerConfig     `yaml:"tracker"`
	Signature SignatureConfig   `yaml:"signature"`
}

// TrackerConfig wraps the client configuration with filing options. The API
// token never lives in the file; TokenEnv names the environment variable it
// is read from.
type TrackerConfig struct {
	Client   tracker.ClientConfig `yaml:",inline"`
	Labels   []string             `yaml:"labels"`
	TokenEnv string               `yaml:"token_env"`
	// Enabled turns tracker filing on. When false the run command writes
	// surviving records to stdout instead.
	Enabled bool `yaml:"enabled"`
}

// SignatureConfig tunes fingerprinting for the application whose logs are
// being processed.
type SignatureConfig struct {
	BasePath        string   `yaml:"base_path"`
	MaxFrames       int      `yaml:"max_frames"`
	MaxChainDepth   int      `yaml:"max_chain_depth"`
	VendorSegments  []string `yaml:"vendor_segments"`
	ShimFiles       []string `yaml:"shim_files"`
	AppPrefixes     []string `yaml:"app_prefixes"`
	EntrypointFiles []string `yaml:"entrypoint_files"`
}

// GeneratorConfig converts the YAML shape into the signature package's
// configuration.
func (c SignatureConfig) GeneratorConfig() signature.GeneratorConfig {
	gen := signature.DefaultGeneratorConfig()
	gen.BasePath = c.BasePath
	if c.MaxFrames > 0 {
		gen.MaxFrames = c.MaxFrames
	}
	if c.MaxChainDepth > 0 {
		gen.MaxChainDepth = c.MaxChainDepth
	}
	if c.VendorSegments != nil {
		gen.Classifier.VendorSegments = c.VendorSegments
	}
	if c.ShimFiles != nil {
		gen.Classifier.ShimFiles = c.ShimFiles
	}
	if c.AppPrefixes != nil {
		gen.Classifier.AppPrefixes = c.AppPrefixes
	}
	if c.EntrypointFiles != nil {
		gen.Classifier.EntrypointFiles = c.EntrypointFiles
	}
	return gen
}

// Default returns the configuration used when no file is given: in-memory
// store, synchronous fail-open pipeline, tracker disabled.
func Default() Config {
	return Config{
		Store:    dedupstore.DefaultConfig(),
		Pipeline: pipeline.DefaultConfig(),
		Tracker: TrackerConfig{
			Client:   tracker.DefaultClientConfig(),
			TokenEnv: "LOGFOLD_TRACKER_TOKEN",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides, resolves the tracker token, and validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.Tracker.TokenEnv != "" {
		cfg.Tracker.Client.Token = os.Getenv(cfg.Tracker.TokenEnv)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks every section. Tracker settings are only validated when
// filing is enabled.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Pipeline.Validate(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if c.Tracker.Enabled {
		if err := c.Tracker.Client.Validate(); err != nil {
			return fmt.Errorf("tracker: %w", err)
		}
	}
	return nil
}

// applyEnv layers LOGFOLD_* environment variables over the file values.
//
// Variables:
//   - LOGFOLD_STORE_BACKEND: memory | file | sqlite | postgres | redis
//   - LOGFOLD_STORE_WINDOW_SECS: dedup window in seconds
//   - LOGFOLD_STORE_PATH, LOGFOLD_STORE_DSN, LOGFOLD_STORE_ADDR,
//     LOGFOLD_STORE_PREFIX: backend connection settings
//   - LOGFOLD_BUFFERED, LOGFOLD_BUFFER_LIMIT, LOGFOLD_FAIL_OPEN:
//     pipeline behavior
//   - LOGFOLD_TRACKER_ENABLED, LOGFOLD_TRACKER_BASE_URL,
//     LOGFOLD_TRACKER_REPO: tracker settings
func applyEnv(cfg *Config) error {
	applyEnvString("LOGFOLD_STORE_BACKEND", &cfg.Store.Backend)
	if err := applyEnvDuration("LOGFOLD_STORE_WINDOW_SECS", &cfg.Store.Window, time.Second); err != nil {
		return err
	}
	applyEnvString("LOGFOLD_STORE_PATH", &cfg.Store.Path)
	applyEnvString("LOGFOLD_STORE_DSN", &cfg.Store.DSN)
	applyEnvString("LOGFOLD_STORE_ADDR", &cfg.Store.Addr)
	applyEnvString("LOGFOLD_STORE_PREFIX", &cfg.Store.Prefix)

	if err := applyEnvBool("LOGFOLD_BUFFERED", &cfg.Pipeline.Buffered); err != nil {
		return err
	}
	if err := applyEnvInt("LOGFOLD_BUFFER_LIMIT", &cfg.Pipeline.BufferLimit); err != nil {
		return err
	}
	if err := applyEnvBool("LOGFOLD_FAIL_OPEN", &cfg.Pipeline.FailOpen); err != nil {
		return err
	}

	if err := applyEnvBool("LOGFOLD_TRACKER_ENABLED", &cfg.Tracker.Enabled); err != nil {
		return err
	}
	applyEnvString("LOGFOLD_TRACKER_BASE_URL", &cfg.Tracker.Client.BaseURL)
	applyEnvString("LOGFOLD_TRACKER_REPO", &cfg.Tracker.Client.Repo)
	return nil
}

func applyEnvString(key string, dest *string) {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
}

func applyEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func applyEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func applyEnvDuration(key string, dest *time.Duration, unit time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * unit
	return nil
}
