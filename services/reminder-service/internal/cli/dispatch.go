package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/dispatch"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/payload"
)

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Run exactly one scan cycle",
		Long: `Run one scan cycle and print its summary.

Intended for cron-driven deployments. Overlapping invocations are safe: each
reminder is claimed by at most one cycle.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			cycleCtx := ctx
			if a.cfg.CycleTimeout > 0 {
				var cancel context.CancelFunc
				cycleCtx, cancel = context.WithTimeout(ctx, a.cfg.CycleTimeout)
				defer cancel()
			}

			summary, err := a.engine.RunScanCycle(cycleCtx)
			if err != nil {
				return err
			}

			return printSummary(cmd.OutOrStdout(), rootOpts.Format, summary)
		},
	}
}

func printSummary(w io.Writer, format string, summary dispatch.Summary) error {
	resp := payload.NewDispatchSummaryResponse(summary)

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(w, "dispatched=%d skipped=%d failed=%d contended=%d simulated=%d\n",
		resp.Dispatched, resp.Skipped, resp.Failed, resp.Contended, resp.Simulated)

	if len(resp.Outcomes) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REMINDER\tSTATUS\tERROR")
	for _, o := range resp.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ReminderID, o.Status, o.Error)
	}
	return tw.Flush()
}
