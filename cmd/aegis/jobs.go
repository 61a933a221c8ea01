package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"helios-hq/aegis/pkg/config"
	"helios-hq/aegis/pkg/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and maintain the background job queue",
	Long: `Operator commands for the store-backed job queue.

These commands open the configured store directly, so they see the same
queue as any running service instance sharing that store.`,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the persisted record for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  jobStatus,
}

var jobsReclaimCmd = &cobra.Command{
	Use:   "reclaim",
	Short: "Run one lease reclamation sweep",
	Long: `Scan the queue once and requeue jobs orphaned by dead workers.

The running service does this on its cron schedule; the command exists
for incident response when a faster sweep is wanted.`,
	RunE: jobReclaim,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsReclaimCmd)
}

func openDispatcher() (*jobs.Dispatcher, func(), error) {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	if cfg.Store.Backend == "memory" {
		return nil, nil, errors.New("the memory backend is process-local, there is no shared queue to inspect")
	}

	st, err := newStore(&cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize %s store: %w", cfg.Store.Backend, err)
	}
	return jobs.NewDispatcher(st, &cfg.Jobs), func() { st.Close() }, nil
}

func jobStatus(cmd *cobra.Command, args []string) error {
	d, closeStore, err := openDispatcher()
	if err != nil {
		return err
	}
	defer closeStore()

	job, err := d.Lookup(context.Background(), args[0])
	if errors.Is(err, jobs.ErrJobNotFound) {
		return fmt.Errorf("job %s not found (terminal records expire after the retention window)", args[0])
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(job)
}

func jobReclaim(cmd *cobra.Command, args []string) error {
	d, closeStore, err := openDispatcher()
	if err != nil {
		return err
	}
	defer closeStore()

	reclaimed, err := d.Reclaim(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("✓ Sweep complete, %d job(s) requeued\n", reclaimed)
	return nil
}
