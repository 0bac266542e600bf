// Package config is a validated, immutable configuration record built with
// explicit fields, explicit types, and construction-time validation —
// mirroring the teacher's pkg/config.Cache, but as a single flat record
// (the teacher's nested CacheBox/Rule/Key shape existed to drive per-path
// cache rules for a reverse proxy, which has no equivalent here).
package config

import (
	"time"

	"github.com/kraklabs/webconv/pkg/xerrors"
)

// Output format enum values for DefaultOutputFormat.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatXML      = "xml"
)

// Environment labels, carried over from the teacher's config.Cache
// (Prod/Dev/Test) to gate verbose structured logging fields the same way
// modules/advancedcache/logger.go does.
const (
	EnvProd = "prod"
	EnvDev  = "dev"
	EnvTest = "test"
)

// Config is constructed once per process by Load or Default and never
// mutated afterward.
type Config struct {
	Env string `yaml:"env" json:"env"`

	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" json:"burst_size"`
	// PerDomainRPS of 0 means "inherit RequestsPerSecond/BurstSize per domain".
	PerDomainRPS float64 `yaml:"per_domain_rps" json:"per_domain_rps"`

	Timeout               time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries            int           `yaml:"max_retries" json:"max_retries"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests" json:"max_concurrent_requests"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`

	CacheEnabled        bool          `yaml:"cache_enabled" json:"cache_enabled"`
	CacheDir            string        `yaml:"cache_dir" json:"cache_dir"`
	CacheMemoryMaxItems int           `yaml:"cache_memory_max_items" json:"cache_memory_max_items"`
	CacheDiskMaxBytes   int64         `yaml:"cache_disk_max_bytes" json:"cache_disk_max_bytes"`
	CacheTTL            time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	UserAgent string `yaml:"user_agent" json:"user_agent"`

	DefaultOutputFormat string `yaml:"default_output_format" json:"default_output_format"`

	RespectRobotsTxt       bool `yaml:"respect_robots_txt" json:"respect_robots_txt"`
	FallbackToNativeParser bool `yaml:"fallback_to_native_parser" json:"fallback_to_native_parser"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

func (c *Config) IsProd() bool { return c.Env == EnvProd }
func (c *Config) IsDev() bool  { return c.Env == EnvDev }
func (c *Config) IsTest() bool { return c.Env == EnvTest }

// Default returns the baseline configuration used when no file is loaded.
// It is always valid.
func Default() *Config {
	return &Config{
		Env:                    EnvDev,
		RequestsPerSecond:      5,
		BurstSize:              10,
		Timeout:                30 * time.Second,
		MaxRetries:             3,
		MaxConcurrentRequests:  10,
		ChunkSize:              1000,
		ChunkOverlap:           200,
		CacheEnabled:           true,
		CacheDir:               ".webconv-cache",
		CacheMemoryMaxItems:    1000,
		CacheDiskMaxBytes:      1 << 30, // 1GiB
		CacheTTL:               24 * time.Hour,
		UserAgent:              "webconv/1.0 (+https://github.com/kraklabs/webconv)",
		DefaultOutputFormat:    FormatMarkdown,
		RespectRobotsTxt:       true,
		FallbackToNativeParser: true,
		LogLevel:               "info",
	}
}

// Validate enforces every domain constraint on the record. A single
// *xerrors.Error of Kind ConfigInvalid is returned for the first violation
// found; CONFIG_INVALID is the only error kind that halts the process.
func (c *Config) Validate() error {
	fail := func(field, reason string) error {
		return xerrors.New(xerrors.ConfigInvalid, reason).With("field", field)
	}

	if c.RequestsPerSecond <= 0 || c.RequestsPerSecond > 1000 {
		return fail("requests_per_second", "must be > 0 and <= 1000")
	}
	if c.BurstSize <= 0 {
		return fail("burst_size", "must be positive")
	}
	if c.PerDomainRPS < 0 {
		return fail("per_domain_rps", "must not be negative")
	}
	if c.Timeout <= 0 || c.Timeout > 300*time.Second {
		return fail("timeout", "must be > 0s and <= 300s")
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fail("max_retries", "must be between 0 and 10")
	}
	if c.MaxConcurrentRequests <= 0 {
		return fail("max_concurrent_requests", "must be positive")
	}
	if c.ChunkSize < 100 {
		return fail("chunk_size", "must be >= 100")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fail("chunk_overlap", "must be >= 0 and < chunk_size")
	}
	if c.CacheEnabled {
		if c.CacheDir == "" {
			return fail("cache_dir", "required when cache_enabled")
		}
		if c.CacheMemoryMaxItems <= 0 {
			return fail("cache_memory_max_items", "must be positive")
		}
		if c.CacheDiskMaxBytes <= 0 {
			return fail("cache_disk_max_bytes", "must be positive")
		}
		if c.CacheTTL <= 0 {
			return fail("cache_ttl", "must be positive")
		}
	}
	if c.UserAgent == "" {
		return fail("user_agent", "must not be empty")
	}
	switch c.DefaultOutputFormat {
	case FormatMarkdown, FormatJSON, FormatXML:
	default:
		return fail("default_output_format", "must be one of markdown, json, xml")
	}
	return nil
}
