package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/webconv/pkg/xerrors"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateRejectsOutOfRangeFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"rps too low", func(c *Config) { c.RequestsPerSecond = 0 }, "requests_per_second"},
		{"rps too high", func(c *Config) { c.RequestsPerSecond = 1001 }, "requests_per_second"},
		{"burst not positive", func(c *Config) { c.BurstSize = 0 }, "burst_size"},
		{"negative per-domain rps", func(c *Config) { c.PerDomainRPS = -1 }, "per_domain_rps"},
		{"timeout too long", func(c *Config) { c.Timeout = 301 * time.Second }, "timeout"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "max_retries"},
		{"too many retries", func(c *Config) { c.MaxRetries = 11 }, "max_retries"},
		{"concurrency not positive", func(c *Config) { c.MaxConcurrentRequests = 0 }, "max_concurrent_requests"},
		{"chunk size too small", func(c *Config) { c.ChunkSize = 99 }, "chunk_size"},
		{"overlap equals chunk size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }, "chunk_overlap"},
		{"empty user agent", func(c *Config) { c.UserAgent = "" }, "user_agent"},
		{"unknown output format", func(c *Config) { c.DefaultOutputFormat = "yaml" }, "default_output_format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			kind, _ := xerrors.KindOf(err)
			assert.Equal(t, xerrors.ConfigInvalid, kind)
			var xe *xerrors.Error
			require.ErrorAs(t, err, &xe)
			assert.Equal(t, tc.field, xe.Context["field"])
		})
	}
}

func TestValidateCacheFieldsOnlyWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.CacheEnabled = false
	cfg.CacheDir = ""
	cfg.CacheMemoryMaxItems = 0
	require.NoError(t, cfg.Validate())

	cfg.CacheEnabled = true
	require.Error(t, cfg.Validate())
}

func TestEnvHelpers(t *testing.T) {
	cfg := Default()
	cfg.Env = EnvProd
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsDev())

	cfg.Env = EnvTest
	assert.True(t, cfg.IsTest())
}
