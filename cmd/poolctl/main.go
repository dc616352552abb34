// Command poolctl exercises and inspects the buffer and worker pools.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var rootCmd = &cobra.Command{
		Use:   "poolctl",
		Short: "Drive and inspect hioload buffer and worker pools",
		Long: `poolctl builds the buffer pool and private worker pool from a config
file (or HIOPOOL_* environment variables) and either prints the effective
configuration or runs a soak workload against them.`,
		SilenceUsage: true,
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.Version = Version
	rootCmd.PersistentFlags().String("config", "", "path to a YAML or TOML config file")

	rootCmd.AddCommand(RunSoakCommand())
	rootCmd.AddCommand(RunConfigCommand())
	rootCmd.AddCommand(RunVersionCommand(Version))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "poolctl %s\n", version)
		},
	}
}
