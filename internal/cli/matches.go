package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/younwookim/fightsquares/internal/infrastructure/store"
)

// MatchesOptions holds flags for the matches command.
type MatchesOptions struct {
	*RootOptions
	Limit int
}

// NewMatchesCommand creates the matches command.
func NewMatchesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List matches from the match log",
		Long: `List the newest matches recorded with --match-log.

Examples:
  fightsquares matches --match-log ./matches.db --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatches(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum matches to list")

	return cmd
}

func runMatches(opts *MatchesOptions, cmd *cobra.Command) error {
	if opts.MatchLog == "" {
		return WrapExitError(ExitCommandError, "--match-log is required", nil)
	}
	st, err := store.Open(opts.MatchLog)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open match log", err)
	}
	defer func() { _ = st.Close() }()

	matches, err := st.ListMatches(cmd.Context(), opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list matches", err)
	}
	if len(matches) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No matches found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTARTED\tMODE\tSEAT\tFRAMES\tWINNER\tDESYNCS\tEND")
	for _, m := range matches {
		desyncs, err := st.CountDesyncs(cmd.Context(), m.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count desyncs", err)
		}
		end := "running"
		switch {
		case m.EndError != "":
			end = m.EndError
		case m.Finished():
			end = "ok"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%d\t%s\n",
			m.ID, m.StartedAt.Local().Format(time.DateTime), m.Mode, m.Player, m.Frames, m.Winner, desyncs, end)
	}
	return tw.Flush()
}
