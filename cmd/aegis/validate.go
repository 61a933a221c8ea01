package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"helios-hq/aegis/pkg/config"
)

var validateFlags struct {
	env bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without starting the service.

The command checks the store backend selection, tier and policy
definitions, job dispatcher bounds, and the reclaim cron schedule,
then prints a summary of the admission policies that would apply.

Examples:
  # Validate the default config
  aegis validate

  # Validate a specific file
  aegis validate --config /etc/aegis/config.yaml

  # Include AEGIS_* environment overrides in the validation
  aegis validate --env`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.env, "env", false, "apply AEGIS_* environment overrides before validating")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	load := config.Load
	if validateFlags.env {
		load = config.LoadWithEnvOverrides
	}

	cfg, err := load(cfgFile)
	if err != nil {
		return fmt.Errorf("validate %s: %w", cfgFile, err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Println()
	fmt.Printf("Store backend:  %s\n", cfg.Store.Backend)
	fmt.Printf("Failure mode:   fail-%s\n", cfg.Admission.FailureMode)
	fmt.Printf("Default tier:   %s\n", cfg.Admission.DefaultTier)
	fmt.Printf("Job workers:    %d\n", cfg.Jobs.Workers)
	if cfg.Jobs.ReclaimSchedule != "" {
		fmt.Printf("Reclaim sweep:  %s\n", cfg.Jobs.ReclaimSchedule)
	}
	fmt.Println()

	names := make([]string, 0, len(cfg.Admission.Tiers))
	for name := range cfg.Admission.Tiers {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Tiers (%d):\n", len(names))
	for _, name := range names {
		tierCfg := cfg.Admission.Tiers[name]
		if tierCfg.Default != nil {
			fmt.Printf("  %s: default %d/%s", name, tierCfg.Default.Limit, tierCfg.Default.Window)
		} else {
			fmt.Printf("  %s: no tier-wide limit", name)
		}
		if len(tierCfg.Paths) > 0 {
			fmt.Printf(", %d path policies", len(tierCfg.Paths))
		}
		fmt.Println()
	}

	return nil
}
