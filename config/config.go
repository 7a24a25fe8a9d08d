// Package config loads the featurebatch YAML configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nomis52/featurebatch/enumerate"
	"github.com/nomis52/featurebatch/features"
	"github.com/nomis52/featurebatch/server/cron"
)

const (
	// Default server settings
	defaultListen      = ":8080"
	defaultHistorySize = 100

	// Default monitoring settings
	defaultMetricsPrefix = "featurebatch"
	defaultJobName       = "featurebatch"

	// Default logging settings
	defaultLogLevel  = "info"
	defaultLogFormat = "json"
	defaultLogOutput = "stdout"

	redactedSecret = "REDACTED"
)

// Config represents the complete application configuration
type Config struct {
	Source     SourceConfig     `yaml:"source"`
	Output     OutputConfig     `yaml:"output"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Features   FeaturesConfig   `yaml:"features"`
	Server     ServerConfig     `yaml:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// SourceConfig selects the images to process
type SourceConfig struct {
	// Dir is the directory scanned for images. Subdirectories are not descended.
	Dir string `yaml:"dir"`

	// Extensions lists the accepted file extensions, compared case-insensitively.
	Extensions []string `yaml:"extensions"`

	// Pattern is a regular expression that must match the whole file path.
	Pattern string `yaml:"pattern"`
}

// OutputConfig holds where feature files are written
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// SchedulerConfig sizes the worker pool
type SchedulerConfig struct {
	// Workers is the number of concurrent tasks. Zero uses every available CPU.
	Workers int `yaml:"workers"`
}

// FeaturesConfig tunes keypoint detection
type FeaturesConfig struct {
	MaxKeypoints  int `yaml:"max_keypoints"`
	FastThreshold int `yaml:"fast_threshold"`
}

// ServerConfig holds settings for the serve command
type ServerConfig struct {
	Listen string `yaml:"listen"`

	// Cron holds one or more 5-field cron expressions separated by ";".
	// Empty disables scheduled runs.
	Cron string `yaml:"cron"`

	// HistoryDir persists run history across restarts. Empty keeps it in memory.
	HistoryDir  string `yaml:"history_dir"`
	HistorySize int    `yaml:"history_size"`

	// TLSCert and TLSKey enable HTTPS when both are set. The files are
	// re-read when they change on disk.
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`
}

// MonitoringConfig holds metrics and monitoring settings
type MonitoringConfig struct {
	VictoriaMetricsURL string `yaml:"victoriametrics_url"`
	MetricsPrefix      string `yaml:"metrics_prefix"`
	JobName            string `yaml:"jobname"`
}

// LoggingConfig defines logging behavior settings
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	AddSource bool   `yaml:"add_source"`
}

// EnumerateOptions returns the options for listing source images.
func (c *Config) EnumerateOptions() enumerate.Options {
	return enumerate.Options{
		Source:     c.Source.Dir,
		Extensions: c.Source.Extensions,
		Pattern:    c.Source.Pattern,
	}
}

// FeatureOptions returns the options for the feature extractor.
func (c *Config) FeatureOptions() features.Options {
	return features.Options{
		MaxKeypoints: c.Features.MaxKeypoints,
		Threshold:    c.Features.FastThreshold,
	}
}

// Validate performs basic validation on the configuration
func (c *Config) Validate() error {
	if c.Source.Dir == "" {
		return errors.New("source dir is required")
	}
	if c.Output.Dir == "" {
		return errors.New("output dir is required")
	}
	if _, err := enumerate.CompilePattern(c.Source.Pattern); err != nil {
		return fmt.Errorf("source %w", err)
	}
	if c.Scheduler.Workers < 0 {
		return errors.New("scheduler workers must not be negative")
	}
	if c.Features.MaxKeypoints <= 0 {
		return errors.New("max_keypoints must be positive")
	}
	if c.Features.FastThreshold < 1 || c.Features.FastThreshold > 255 {
		return fmt.Errorf("fast_threshold must be between 1 and 255, got %d", c.Features.FastThreshold)
	}
	if c.Server.HistorySize < 1 {
		return errors.New("history_size must be at least 1")
	}
	if (c.Server.TLSCert == "") != (c.Server.TLSKey == "") {
		return errors.New("tls_cert and tls_key must be set together")
	}
	if c.Server.Cron != "" {
		if _, err := cron.ParseSchedules(c.Server.Cron); err != nil {
			return fmt.Errorf("server cron: %w", err)
		}
	}
	return nil
}

// SetDefaults sets reasonable default values for optional fields
func (c *Config) SetDefaults() {
	if len(c.Source.Extensions) == 0 {
		c.Source.Extensions = append([]string(nil), enumerate.DefaultExtensions...)
	}
	if c.Source.Pattern == "" {
		c.Source.Pattern = enumerate.DefaultPattern
	}
	if c.Features.MaxKeypoints == 0 {
		c.Features.MaxKeypoints = features.DefaultMaxKeypoints
	}
	if c.Features.FastThreshold == 0 {
		c.Features.FastThreshold = features.DefaultThreshold
	}
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.HistorySize == 0 {
		c.Server.HistorySize = defaultHistorySize
	}
	if c.Monitoring.MetricsPrefix == "" {
		c.Monitoring.MetricsPrefix = defaultMetricsPrefix
	}
	if c.Monitoring.JobName == "" {
		c.Monitoring.JobName = defaultJobName
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = defaultLogOutput
	}
}

// Redacted returns a copy of the config that is safe to show to API clients.
// Credentials embedded in the metrics push URL are masked.
func (c Config) Redacted() Config {
	out := c
	out.Source.Extensions = append([]string(nil), c.Source.Extensions...)
	if u, err := url.Parse(c.Monitoring.VictoriaMetricsURL); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redactedSecret)
		}
		out.Monitoring.VictoriaMetricsURL = u.String()
	}
	return out
}

// LoadConfig reads the YAML config file at the given path and returns a Config struct
func LoadConfig(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
