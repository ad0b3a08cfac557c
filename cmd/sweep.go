package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abhisek/widen/internal/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the reconciliation sweeps once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		deadlineOnly, _ := cmd.Flags().GetBool("deadline")
		recoveryOnly, _ := cmd.Flags().GetBool("recovery")
		if deadlineOnly && recoveryOnly {
			return fmt.Errorf("--deadline and --recovery are mutually exclusive")
		}

		logger := newLogger("info")
		d, err := buildDeps(cmd, nil, prometheus.NewRegistry(), logger)
		if err != nil {
			return err
		}
		defer d.store.Close()

		sw := sweep.New(d.store, d.memory, d.pipeline, d.metrics, sweep.DefaultConfig(), logger)

		ctx := cmd.Context()
		if !recoveryOnly {
			sw.RunDeadline(ctx)
		}
		if !deadlineOnly {
			sw.RunRecovery(ctx)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().Bool("deadline", false, "Run only the deadline sweep")
	sweepCmd.Flags().Bool("recovery", false, "Run only the recovery sweep")
}
