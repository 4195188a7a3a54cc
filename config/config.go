// Package config loads the YAML configuration shared by the server and the
// command line tools. Flags override file values, file values override
// Default.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xmh1011/go-pces/metrics"
	"github.com/xmh1011/go-pces/param"
	"github.com/xmh1011/go-pces/storage"
	"github.com/xmh1011/go-pces/storage/pcesfile"
	"github.com/xmh1011/go-pces/transport"
)

// Config is the top-level configuration.
type Config struct {
	// Dir is the directory holding the event stream files.
	Dir            string        `yaml:"dir"`
	Suffix         string        `yaml:"suffix"`
	Digest         string        `yaml:"digest"`
	StrictLastFile bool          `yaml:"strictLastFile"`
	Server         ServerConfig  `yaml:"server"`
	Log            LogConfig     `yaml:"log"`
	Metrics        MetricsConfig `yaml:"metrics"`
}

// ServerConfig configures the history service.
type ServerConfig struct {
	Listen    string `yaml:"listen"`
	Transport string `yaml:"transport"`
	// RateLimit caps events per second per stream, 0 disables pacing.
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// MetricsConfig configures OTLP metric export. An empty endpoint disables it.
type MetricsConfig struct {
	OTLPEndpoint string        `yaml:"otlpEndpoint"`
	Insecure     bool          `yaml:"insecure"`
	Interval     time.Duration `yaml:"interval"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Dir:    "pces-data",
		Suffix: pcesfile.DefaultSuffix,
		Digest: param.SHA384.String(),
		Server: ServerConfig{
			Listen:    "127.0.0.1:7070",
			Transport: transport.GrpcTransport,
			Burst:     64,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Interval: 15 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be checked by the YAML decoder.
func (c Config) Validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("dir must be set"))
	}
	if !strings.HasPrefix(c.Suffix, ".") {
		errs = append(errs, fmt.Errorf("suffix %q must start with a dot", c.Suffix))
	}
	if _, err := param.ParseDigestType(c.Digest); err != nil {
		errs = append(errs, err)
	}
	switch c.Server.Transport {
	case transport.GrpcTransport, transport.TCPTransport, transport.InmemoryTransport:
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q", c.Server.Transport))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("negative rate limit %v", c.Server.RateLimit))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// StorageConfig returns the storage settings.
func (c Config) StorageConfig() (storage.Config, error) {
	digest, err := param.ParseDigestType(c.Digest)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Dir:            c.Dir,
		Suffix:         c.Suffix,
		DigestType:     digest,
		StrictLastFile: c.StrictLastFile,
	}, nil
}

// ExportConfig returns the metric export settings.
func (c Config) ExportConfig(serviceName string) metrics.ExportConfig {
	return metrics.ExportConfig{
		ServiceName: serviceName,
		Endpoint:    c.Metrics.OTLPEndpoint,
		Insecure:    c.Metrics.Insecure,
		Interval:    c.Metrics.Interval,
	}
}

// NewLogger builds the logger described by the log settings.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
