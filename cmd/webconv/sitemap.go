package main

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/kraklabs/webconv/pkg/chunk"
	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/pipeline"
	"github.com/kraklabs/webconv/pkg/sitemap"
	"github.com/kraklabs/webconv/pkg/xerrors"
)

func newSitemapCmd(flags *sharedFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitemap <base-url>",
		Short: "Discover URLs from a site's sitemap and convert each",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel, cfg.IsProd())

			filter, err := buildFilter(flags)
			if err != nil {
				return err
			}

			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}

			outDir := flags.outputPath
			if outDir == "" {
				outDir = "."
			}

			opts := pipeline.Options{
				Format:          resolveFormat(flags.format, cfg.DefaultOutputFormat),
				IncludeMetadata: true,
				Chunk:           flags.chunks,
				ChunkDir:        flags.chunkDir,
				ChunkFormat:     chunk.Format(orDefault(flags.chunkFormat, "jsonl")),
				UseCache:        cfg.CacheEnabled && !flags.skipCache,
			}

			ok, err := p.ConvertSitemap(cmd.Context(), args[0], filter, outDir, opts, flags.parallel, flags.maxWorkers)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "converted %d URLs from sitemap\n", len(ok))
			return nil
		},
	}

	bindConvertFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.parallel, "parallel", false, "convert URLs concurrently")
	cmd.Flags().IntVar(&flags.maxWorkers, "max-workers", 0, "maximum concurrent workers (0 = use config default)")
	cmd.Flags().Float64Var(&flags.minPriority, "min-priority", -1, "minimum <priority> to include (-1 = no filter)")
	cmd.Flags().StringArrayVar(&flags.include, "include", nil, "include URLs matching this regex (repeatable)")
	cmd.Flags().StringArrayVar(&flags.exclude, "exclude", nil, "exclude URLs matching this regex (repeatable, wins over include)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "maximum URLs to convert (0 = unlimited)")
	return cmd
}

func buildFilter(flags *sharedFlags) (sitemap.Filter, error) {
	f := sitemap.Filter{Limit: flags.limit}
	if flags.minPriority >= 0 {
		mp := flags.minPriority
		f.MinPriority = &mp
	}
	for _, pat := range flags.include {
		re, err := regexp.Compile(pat)
		if err != nil {
			return f, xerrors.Wrap(xerrors.ConfigInvalid, "invalid --include regex", err).With("pattern", pat)
		}
		f.Include = append(f.Include, re)
	}
	for _, pat := range flags.exclude {
		re, err := regexp.Compile(pat)
		if err != nil {
			return f, xerrors.Wrap(xerrors.ConfigInvalid, "invalid --exclude regex", err).With("pattern", pat)
		}
		f.Exclude = append(f.Exclude, re)
	}
	return f, nil
}
