package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - resource-admission layer over a shared key-value store",
	Long: `Aegis sits between API traffic and scarce backend resources. It
provides three admission mechanisms backed by one shared key-value store:

  - Tiered fixed-window rate limiting with per-path policies
  - Response caching with explicit invalidation
  - Background job dispatch with retries and lease reclamation

Every instance sharing the store shares the same limits, cache, and
job queue, so the layer scales horizontally without coordination.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
