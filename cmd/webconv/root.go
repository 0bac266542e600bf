package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kraklabs/webconv/pkg/config"
)

// sharedFlags mirrors the configuration record's overridable fields
// (spec §6's convert/batch/sitemap flag lists). The config, rate, timeout,
// retry and cache flags are bound once on the root command via
// PersistentFlags; the output and chunk flags are bound on each
// subcommand by bindConvertFlags. resolveConfig reads them back.
type sharedFlags struct {
	configPath string
	envPrefix  string

	format          string
	outputPath      string
	chunks          bool
	chunkDir        string
	chunkFormat     string
	chunkSize       int
	chunkOverlap    int
	requestsPerSec  float64
	timeoutSeconds  int
	maxRetries      int
	cacheEnabled    bool
	cacheDisabled   bool
	cacheTTLSeconds int
	skipCache       bool

	parallel   bool
	maxWorkers int

	minPriority float64
	include     []string
	exclude     []string
	limit       int
}

func newRootCmd() *cobra.Command {
	flags := &sharedFlags{}

	root := &cobra.Command{
		Use:           "webconv",
		Short:         "Fetch, convert, and chunk web content into structured documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to a YAML or JSON configuration file")
	root.PersistentFlags().StringVar(&flags.envPrefix, "env-prefix", "WEBCONV", "environment variable prefix for config overrides")
	root.PersistentFlags().Float64Var(&flags.requestsPerSec, "requests-per-second", 0, "global request rate (0 = use config default)")
	root.PersistentFlags().IntVar(&flags.timeoutSeconds, "timeout", 0, "request timeout in seconds (0 = use config default)")
	root.PersistentFlags().IntVar(&flags.maxRetries, "max-retries", -1, "additional attempts after the first failure (-1 = use config default)")
	root.PersistentFlags().BoolVar(&flags.cacheEnabled, "cache", false, "force-enable the request cache")
	root.PersistentFlags().BoolVar(&flags.cacheDisabled, "no-cache", false, "force-disable the request cache")
	root.PersistentFlags().IntVar(&flags.cacheTTLSeconds, "cache-ttl", 0, "cache entry lifetime in seconds (0 = use config default)")

	root.AddCommand(
		newConvertCmd(flags),
		newBatchCmd(flags),
		newSitemapCmd(flags),
		newStatusCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

// resolveConfig loads config.Default(), overlays a config file if given,
// applies environment overrides, then applies the shared CLI flags —
// flags take precedence since they are the most specific override, per
// spec §6's layering ("any configuration field is overridable").
func resolveConfig(flags *sharedFlags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if flags.configPath != "" {
		cfg, err = config.Load(flags.configPath, flags.envPrefix)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
		if err := config.ApplyEnv(cfg, flags.envPrefix); err != nil {
			return nil, err
		}
	}

	if flags.requestsPerSec > 0 {
		cfg.RequestsPerSecond = flags.requestsPerSec
	}
	if flags.timeoutSeconds > 0 {
		cfg.Timeout = time.Duration(flags.timeoutSeconds) * time.Second
	}
	if flags.maxRetries >= 0 {
		cfg.MaxRetries = flags.maxRetries
	}
	if flags.cacheEnabled {
		cfg.CacheEnabled = true
	}
	if flags.cacheDisabled {
		cfg.CacheEnabled = false
	}
	if flags.cacheTTLSeconds > 0 {
		cfg.CacheTTL = time.Duration(flags.cacheTTLSeconds) * time.Second
	}
	if flags.chunkSize > 0 {
		cfg.ChunkSize = flags.chunkSize
	}
	if flags.chunkOverlap >= 0 {
		cfg.ChunkOverlap = flags.chunkOverlap
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
