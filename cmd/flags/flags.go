// SPDX-License-Identifier: Apache-2.0

// Package flags holds the small getter functions cmd/root.go binds its
// persistent flags through.
package flags

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func ConfigFile() string {
	return viper.GetString("CONFIG_FILE")
}

func IgluConfigFile() string {
	return viper.GetString("IGLU_CONFIG_FILE")
}

// Bind registers the loader's persistent flags on cmd and binds each to
// its viper key.
func Bind(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "path to the loader's YAML configuration file")
	cmd.PersistentFlags().String("iglu-config", "", "path to the Iglu schema catalogue file")

	bind("CONFIG_FILE", cmd.PersistentFlags().Lookup("config"))
	bind("IGLU_CONFIG_FILE", cmd.PersistentFlags().Lookup("iglu-config"))
}

func bind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
