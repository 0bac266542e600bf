package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kraklabs/webconv/pkg/chunk"
	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/pipeline"
	"github.com/kraklabs/webconv/pkg/xerrors"
)

func newBatchCmd(flags *sharedFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <links-file>",
		Short: "Fetch and convert every URL listed in a links file, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(flags)
			if err != nil {
				return err
			}
			logging.Init(cfg.LogLevel, cfg.IsProd())

			urls, err := readLinksFile(args[0])
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

			var ok []string
			if flags.parallel {
				ok = p.ConvertURLListParallel(cmd.Context(), urls, outDir, opts, flags.maxWorkers, func(url string, done, total int) {
					fmt.Fprintf(cmd.OutOrStdout(), "[%d/%d] %s\n", done, total, url)
				})
			} else {
				ok = p.ConvertURLList(cmd.Context(), urls, outDir, opts)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "converted %d/%d URLs\n", len(ok), len(urls))
			return nil
		},
	}

	bindConvertFlags(cmd, flags)
	cmd.Flags().BoolVar(&flags.parallel, "parallel", false, "convert URLs concurrently")
	cmd.Flags().IntVar(&flags.maxWorkers, "max-workers", 0, "maximum concurrent workers (0 = use config default)")
	return cmd
}

func readLinksFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CacheIO, "open links file", err).With("path", path)
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := sc.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CacheIO, "read links file", err).With("path", path)
	}
	return urls, nil
}
