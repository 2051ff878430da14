package main

import (
	"github.com/spf13/cobra"

	"github.com/kbus-project/kbus/pkg/config"
)

// bindConfigFlags registers the shared config.Config flags on cmd and
// returns the loader to call once cmd's flags have been parsed.
func bindConfigFlags(cmd *cobra.Command) func() (config.Config, error) {
	return config.BindFlags(cmd.Flags())
}
