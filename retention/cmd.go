package retention

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dungnx/chathist/internal/cli"
)

// NewCmd creates the cleanup command: a one-shot retention sweep.
func NewCmd(store Store) *cobra.Command {
	var opts struct {
		Yes bool
	}
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete conversations idle for more than three days",
		Long:  "Delete conversations idle for more than three days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.Yes && !cli.QueryUser("Delete all conversations idle for more than three days?") {
				cli.Info("Aborted\n")
				return nil
			}

			janitor := NewJanitor(store, slog.Default())
			deleted, err := janitor.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			cli.Info("Deleted %d conversation(s)\n", deleted)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}
