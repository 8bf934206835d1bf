// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/drphrozen/snowplow-rdb-loader/cmd/flags"
)

// Version is set at build time via -ldflags.
var Version = "development"

func init() {
	viper.SetEnvPrefix("LOADER")
	viper.AutomaticEnv()

	flags.Bind(rootCmd)
}

var rootCmd = &cobra.Command{
	Use:          "loader",
	Short:        "Warehouse loader daemon for Snowplow enriched event batches",
	SilenceUsage: true,
	Version:      Version,
}

// Execute runs the root command under ctx, so a cancellation (e.g. from
// os/signal.NotifyContext in main) unwinds every concurrent stream run
// wires up.
func Execute(ctx context.Context) error {
	rootCmd.AddCommand(runCmd())
	return rootCmd.ExecuteContext(ctx)
}
