package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/kraklabs/webconv/pkg/xerrors"
)

// binding couples one env var suffix to a typed setter: an env-var name
// mapped to a (field, parser) pair, grounded in
// modules/advancedcache/cache.go's viper.BindEnv calls for APP_ENV,
// FASTHTTP_SERVER_*, etc.
type binding struct {
	key string
	set func(raw string, cfg *Config) error
}

func bindings() []binding {
	return []binding{
		{"env", func(raw string, c *Config) error { c.Env = raw; return nil }},
		{"requests_per_second", floatBinding(func(c *Config) *float64 { return &c.RequestsPerSecond })},
		{"burst_size", intBinding(func(c *Config) *int { return &c.BurstSize })},
		{"per_domain_rps", floatBinding(func(c *Config) *float64 { return &c.PerDomainRPS })},
		{"timeout", durationSecondsBinding(func(c *Config) *time.Duration { return &c.Timeout })},
		{"max_retries", intBinding(func(c *Config) *int { return &c.MaxRetries })},
		{"max_concurrent_requests", intBinding(func(c *Config) *int { return &c.MaxConcurrentRequests })},
		{"chunk_size", intBinding(func(c *Config) *int { return &c.ChunkSize })},
		{"chunk_overlap", intBinding(func(c *Config) *int { return &c.ChunkOverlap })},
		{"cache_enabled", boolBinding(func(c *Config) *bool { return &c.CacheEnabled })},
		{"cache_dir", func(raw string, c *Config) error { c.CacheDir = raw; return nil }},
		{"cache_memory_max_items", intBinding(func(c *Config) *int { return &c.CacheMemoryMaxItems })},
		{"cache_disk_max_bytes", int64Binding(func(c *Config) *int64 { return &c.CacheDiskMaxBytes })},
		{"cache_ttl", durationSecondsBinding(func(c *Config) *time.Duration { return &c.CacheTTL })},
		{"user_agent", func(raw string, c *Config) error { c.UserAgent = raw; return nil }},
		{"default_output_format", func(raw string, c *Config) error { c.DefaultOutputFormat = raw; return nil }},
		{"respect_robots_txt", boolBinding(func(c *Config) *bool { return &c.RespectRobotsTxt })},
		{"fallback_to_native_parser", boolBinding(func(c *Config) *bool { return &c.FallbackToNativeParser })},
		{"log_level", func(raw string, c *Config) error { c.LogLevel = raw; return nil }},
	}
}

func floatBinding(field func(*Config) *float64) func(string, *Config) error {
	return func(raw string, c *Config) error {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func intBinding(field func(*Config) *int) func(string, *Config) error {
	return func(raw string, c *Config) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func int64Binding(field func(*Config) *int64) func(string, *Config) error {
	return func(raw string, c *Config) error {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func boolBinding(field func(*Config) *bool) func(string, *Config) error {
	return func(raw string, c *Config) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*field(c) = v
		return nil
	}
}

func durationSecondsBinding(field func(*Config) *time.Duration) func(string, *Config) error {
	return func(raw string, c *Config) error {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*field(c) = time.Duration(secs) * time.Second
		return nil
	}
}

// ApplyEnv overlays any field that has a matching "<PREFIX>_<FIELD>"
// environment variable set, using viper.AutomaticEnv to do the lookup and
// the bindings table above to parse and assign. Invalid values return a
// CONFIG_INVALID error naming the offending variable.
func ApplyEnv(cfg *Config, prefix string) error {
	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, b := range bindings() {
		raw := v.GetString(b.key)
		if raw == "" {
			continue
		}
		if err := b.set(raw, cfg); err != nil {
			envVar := strings.ToUpper(prefix + "_" + b.key)
			return xerrors.New(xerrors.ConfigInvalid, "invalid environment override").
				With("env", envVar).With("value", raw)
		}
	}
	return nil
}
