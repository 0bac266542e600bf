// Command webconv is the thin CLI wrapper over the conversion core
// (spec §6): `convert`, `batch`, `sitemap`, `status`, and `config`,
// built with cobra/pflag the way caddy's own command tree is, even
// though this program is a standalone binary rather than a Caddy
// subcommand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kraklabs/webconv/pkg/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logging.Init("info", false)

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "webconv: interrupted")
			os.Exit(1)
		}
		log.Error().Err(err).Msg("[webconv] command failed")
		os.Exit(1)
	}
}
