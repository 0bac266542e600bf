package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kraklabs/webconv/pkg/logging"
	"github.com/kraklabs/webconv/pkg/pipeline"
)

func newStatusCmd(flags *sharedFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print live telemetry counters and cache occupancy",
		Args:  cobra.NoArgs,
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

			st := p.Status()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fetch:    %d requests, %d errors\n", st.Telemetry.FetchTotal, st.Telemetry.FetchErrors)
			fmt.Fprintf(out, "cache:    %d hits, %d misses, %d hot items, %d cold bytes\n",
				st.Telemetry.CacheHits, st.Telemetry.CacheMisses, st.Cache.HotItems, st.Cache.ColdBytes)
			fmt.Fprintf(out, "urls:     %d converted, %d failed\n", st.Telemetry.URLsConverted, st.Telemetry.URLsFailed)
			fmt.Fprintf(out, "chunks:   %d emitted\n", st.Telemetry.ChunksEmitted)
			return nil
		},
	}
}
