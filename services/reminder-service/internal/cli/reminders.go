package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/model"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/payload"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/usecase"
)

// RemindersListOptions holds flags for the reminders list command.
type RemindersListOptions struct {
	*RootOptions
	UserID  string
	Deleted bool
	Limit   uint64
}

// NewRemindersCommand creates the reminders command group.
func NewRemindersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Inspect stored reminders",
	}

	cmd.AddCommand(newRemindersListCommand(rootOpts))

	return cmd
}

func newRemindersListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RemindersListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's reminders",
		Example: `  reminder-service reminders list --user 6f1c...
  reminder-service reminders list --user 6f1c... --deleted --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			page := usecase.Page{Limit: opts.Limit}

			var reminders []*model.Reminder
			if opts.Deleted {
				reminders, err = a.reminders.ListDeleted(cmd.Context(), opts.UserID, page)
			} else {
				reminders, err = a.reminders.ListReminders(cmd.Context(), opts.UserID, page)
			}
			if err != nil {
				return err
			}

			return printReminders(cmd.OutOrStdout(), opts.Format, reminders)
		},
	}

	cmd.Flags().StringVar(&opts.UserID, "user", "", "owner user id (required)")
	cmd.Flags().BoolVar(&opts.Deleted, "deleted", false, "list the recycle bin instead")
	cmd.Flags().Uint64Var(&opts.Limit, "limit", 0, "maximum number of reminders (0 = all)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func printReminders(w io.Writer, format string, reminders []*model.Reminder) error {
	resp := payload.NewListRemindersResponse(reminders)

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tCOMPLETED\tTITLE")
	for _, r := range resp.Reminders {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", r.ID, r.ReminderTime, r.IsCompleted, r.Title)
	}
	return tw.Flush()
}
