package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kraklabs/webconv/pkg/chunk"
	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/pipeline"
)

func newConvertCmd(flags *sharedFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <url>",
		Short: "Fetch and convert a single URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel, cfg.IsProd())

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

			path, err := p.ConvertURL(cmd.Context(), args[0], outDir, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Clean(path))
			return nil
		},
	}

	bindConvertFlags(cmd, flags)
	return cmd
}

func bindConvertFlags(cmd *cobra.Command, flags *sharedFlags) {
	cmd.Flags().StringVarP(&flags.format, "format", "f", "", "output format: markdown, json, or xml")
	cmd.Flags().StringVarP(&flags.outputPath, "output", "o", "", "output directory")
	cmd.Flags().BoolVar(&flags.chunks, "chunks", false, "also chunk the converted Markdown")
	cmd.Flags().StringVar(&flags.chunkDir, "chunk-dir", "", "directory for chunk output (default: <output>/chunks)")
	cmd.Flags().StringVar(&flags.chunkFormat, "chunk-format", "jsonl", "chunk persistence format: json or jsonl")
	cmd.Flags().IntVar(&flags.chunkSize, "chunk-size", 0, "chunk character budget (0 = use config default)")
	cmd.Flags().IntVar(&flags.chunkOverlap, "chunk-overlap", -1, "cross-chunk overlap in characters (-1 = use config default)")
	cmd.Flags().BoolVar(&flags.skipCache, "skip-cache", false, "bypass the cache for this run only")
}

func resolveFormat(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
