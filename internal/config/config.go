// Package config loads regalign settings from regalign.toml, an optional
// per-environment overlay, and REGALIGN_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/llm"
	"github.com/dshills/regalign/internal/store"
)

const (
	BaseConfigFile       = "regalign.toml"
	OverlayConfigPattern = "regalign.%s.toml"

	EnvRegalignEnv = "REGALIGN_ENV"
)

// Environment overrides.
const (
	EnvClassifyProvider = "REGALIGN_CLASSIFY_PROVIDER"
	EnvClassifyModel    = "REGALIGN_CLASSIFY_MODEL"
	EnvAnalysisProvider = "REGALIGN_ANALYSIS_PROVIDER"
	EnvAnalysisModel    = "REGALIGN_ANALYSIS_MODEL"
	EnvConcurrency      = "REGALIGN_CONCURRENCY"
	EnvFrameworks       = "REGALIGN_FRAMEWORKS"
	EnvStoreDriver      = "REGALIGN_STORE_DRIVER"
	EnvStorePath        = "REGALIGN_STORE_PATH"
	EnvStoreTTL         = "REGALIGN_STORE_TTL"
	EnvStoreMaxEntries  = "REGALIGN_STORE_MAX_ENTRIES"
	EnvServerAddr       = "REGALIGN_SERVER_ADDR"
	EnvServerMaxUpload  = "REGALIGN_SERVER_MAX_UPLOAD_MB"
	EnvLogLevel         = "REGALIGN_LOG_LEVEL"
	EnvLogFormat        = "REGALIGN_LOG_FORMAT"
)

// Defaults.
const (
	DefaultProvider      = "perplexity"
	DefaultClassifyModel = "sonar"
	DefaultAnalysisModel = "sonar-pro"
	DefaultMaxTokens     = 6000
	DefaultConcurrency   = 4
	DefaultStoreTTL      = 24 * time.Hour
	DefaultMaxEntries    = 256
	DefaultAddr          = ":8080"
	DefaultMaxUploadMB   = 20
	DefaultShutdown      = "15s"
)

// Config is the root configuration.
type Config struct {
	Models   ModelsConfig   `toml:"models"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Store    store.Config   `toml:"store"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

// ModelsConfig holds the two invocation profiles.
type ModelsConfig struct {
	Classify llm.Profile `toml:"classify"`
	Analysis llm.Profile `toml:"analysis"`
}

// PipelineConfig tunes assessment runs.
type PipelineConfig struct {
	// Concurrency bounds parallel framework analyses.
	Concurrency int `toml:"concurrency"`
	// Frameworks is the default selection when a request names none.
	Frameworks []string `toml:"frameworks"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string `toml:"addr"`
	MaxUploadMB     int64  `toml:"max_upload_mb"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.ShutdownTimeout)
	return d
}

// MaxUploadBytes returns the upload cap in bytes.
func (s ServerConfig) MaxUploadBytes() int64 { return s.MaxUploadMB << 20 }

// Default returns a Config holding only defaults.
func Default() *Config {
	c := newConfig()
	c.loadDefaults()
	return c
}

// newConfig returns an empty Config seeded with the store lifecycle
// defaults. They are set before decoding because zero is a meaningful value
// for both: ttl = "0s" disables expiry and max_entries = 0 removes the bound.
func newConfig() *Config {
	return &Config{Store: store.Config{
		TTL:        store.Duration(DefaultStoreTTL),
		MaxEntries: DefaultMaxEntries,
	}}
}

// Load reads the base config and the REGALIGN_ENV overlay, then applies
// environment overrides, defaults and validation. An empty path means
// regalign.toml in the working directory, which may be absent; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := newConfig()
	base := path
	if base == "" {
		base = BaseConfigFile
	}

	if _, err := os.Stat(base); err == nil {
		if err := load(base, cfg); err != nil {
			return nil, err
		}
	} else if path != "" {
		return nil, fmt.Errorf("config: %w", err)
	}

	if env := os.Getenv(EnvRegalignEnv); env != "" {
		overlay := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(overlay); err == nil {
			o := &Config{}
			if err := load(overlay, o); err != nil {
				return nil, fmt.Errorf("config: overlay %s: %w", overlay, err)
			}
			cfg.Merge(o)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// load decodes the file at path over cfg; keys absent from the file keep
// their current values.
func load(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config: %s: unknown keys:\n%s", path, strict.String())
		}
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Merge overwrites c with the non-zero fields of overlay.
func (c *Config) Merge(overlay *Config) {
	mergeProfile(&c.Models.Classify, overlay.Models.Classify)
	mergeProfile(&c.Models.Analysis, overlay.Models.Analysis)
	if overlay.Pipeline.Concurrency != 0 {
		c.Pipeline.Concurrency = overlay.Pipeline.Concurrency
	}
	if len(overlay.Pipeline.Frameworks) > 0 {
		c.Pipeline.Frameworks = overlay.Pipeline.Frameworks
	}
	setString(&c.Store.Driver, overlay.Store.Driver)
	setString(&c.Store.Path, overlay.Store.Path)
	if overlay.Store.TTL != 0 {
		c.Store.TTL = overlay.Store.TTL
	}
	if overlay.Store.MaxEntries != 0 {
		c.Store.MaxEntries = overlay.Store.MaxEntries
	}
	setString(&c.Server.Addr, overlay.Server.Addr)
	if overlay.Server.MaxUploadMB != 0 {
		c.Server.MaxUploadMB = overlay.Server.MaxUploadMB
	}
	setString(&c.Server.ShutdownTimeout, overlay.Server.ShutdownTimeout)
	setString(&c.Log.Level, overlay.Log.Level)
	setString(&c.Log.Format, overlay.Log.Format)
}

func mergeProfile(dst *llm.Profile, o llm.Profile) {
	setString(&dst.Provider, o.Provider)
	setString(&dst.Model, o.Model)
	if o.MaxTokens != 0 {
		dst.MaxTokens = o.MaxTokens
	}
	if o.Temperature != 0 {
		dst.Temperature = o.Temperature
	}
	if o.RequestsPerMinute != 0 {
		dst.RequestsPerMinute = o.RequestsPerMinute
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) finalize() error {
	if err := c.loadEnv(); err != nil {
		return err
	}
	c.loadDefaults()
	return c.validate()
}

func (c *Config) loadDefaults() {
	c.Models.Classify.Name = "classify"
	c.Models.Analysis.Name = "analysis"
	defaultProfile(&c.Models.Classify, DefaultClassifyModel)
	defaultProfile(&c.Models.Analysis, DefaultAnalysisModel)
	if c.Pipeline.Concurrency == 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}
	if c.Store.Driver == "" {
		c.Store.Driver = store.DriverMemory
	}
	if c.Store.Driver == store.DriverSQLite && c.Store.Path == "" {
		c.Store.Path = filepath.Join(".regalign", "jobs.db")
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = DefaultShutdown
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func defaultProfile(p *llm.Profile, model string) {
	if p.Provider == "" {
		p.Provider = DefaultProvider
		if p.Model == "" {
			p.Model = model
		}
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
}

func (c *Config) loadEnv() error {
	setString(&c.Models.Classify.Provider, os.Getenv(EnvClassifyProvider))
	setString(&c.Models.Classify.Model, os.Getenv(EnvClassifyModel))
	setString(&c.Models.Analysis.Provider, os.Getenv(EnvAnalysisProvider))
	setString(&c.Models.Analysis.Model, os.Getenv(EnvAnalysisModel))
	setString(&c.Store.Driver, os.Getenv(EnvStoreDriver))
	setString(&c.Store.Path, os.Getenv(EnvStorePath))
	setString(&c.Server.Addr, os.Getenv(EnvServerAddr))
	setString(&c.Log.Level, os.Getenv(EnvLogLevel))
	setString(&c.Log.Format, os.Getenv(EnvLogFormat))
	if v := os.Getenv(EnvFrameworks); v != "" {
		c.Pipeline.Frameworks = strings.Split(v, ",")
	}

	if err := envInt(EnvConcurrency, &c.Pipeline.Concurrency); err != nil {
		return err
	}
	if err := envInt(EnvStoreMaxEntries, &c.Store.MaxEntries); err != nil {
		return err
	}
	if v := os.Getenv(EnvServerMaxUpload); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvServerMaxUpload, err)
		}
		c.Server.MaxUploadMB = n
	}
	if v := os.Getenv(EnvStoreTTL); v != "" {
		if err := c.Store.TTL.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", EnvStoreTTL, err)
		}
	}
	return nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = n
	return nil
}

func (c *Config) validate() error {
	var errs []error
	for _, p := range []llm.Profile{c.Models.Classify, c.Models.Analysis} {
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("models.%s: model is required for provider %q", p.Name, p.Provider))
		}
		if p.MaxTokens < 0 {
			errs = append(errs, fmt.Errorf("models.%s: max_tokens must not be negative", p.Name))
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			errs = append(errs, fmt.Errorf("models.%s: temperature %.2f out of range [0, 2]", p.Name, p.Temperature))
		}
		if p.RequestsPerMinute < 0 {
			errs = append(errs, fmt.Errorf("models.%s: requests_per_minute must not be negative", p.Name))
		}
	}
	if c.Pipeline.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("pipeline.concurrency must be at least 1, got %d", c.Pipeline.Concurrency))
	}
	if _, err := framework.ParseCodes(c.Pipeline.Frameworks); err != nil {
		errs = append(errs, fmt.Errorf("pipeline.frameworks: %w", err))
	}
	switch c.Store.Driver {
	case store.DriverMemory, store.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q: want %s or %s", c.Store.Driver, store.DriverMemory, store.DriverSQLite))
	}
	if c.Store.TTL < 0 {
		errs = append(errs, errors.New("store.ttl must not be negative"))
	}
	if c.Store.MaxEntries < 0 {
		errs = append(errs, errors.New("store.max_entries must not be negative"))
	}
	if c.Server.MaxUploadMB < 1 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be at least 1, got %d", c.Server.MaxUploadMB))
	}
	if _, err := time.ParseDuration(c.Server.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout: %w", err))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}
	return errors.Join(errs...)
}
