// Command kbusd is the thin daemon shell around the core: it stands in
// for the out-of-scope character-device/module-init shim well enough to
// exercise Peer/Bus/Transaction end-to-end from a CLI, the way
// tiny_txn's cmd/driver exercises pkg/txn.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

func setMaxProcs() {
	if _, err := maxprocs.Set(); err != nil {
		log.Warn().Err(err).Msg("kbusd: setting GOMAXPROCS failed, leaving default")
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "kbusd",
		Short: "kbus core daemon: peer registry and send/recv demo traffic",
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newBenchCommand())
	return root
}

func configureLogging(level string) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func main() {
	setMaxProcs()
	if err := newRootCommand().Execute(); err != nil {
		log.Err(err).Msg("kbusd: command failed")
		os.Exit(1)
	}
}
