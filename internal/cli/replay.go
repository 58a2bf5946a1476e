package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/younwookim/fightsquares/internal/application/replay"
	"github.com/younwookim/fightsquares/internal/domain/fight"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay FILE",
		Short: "Re-simulate a recorded match and verify determinism",
		Long: `Re-simulate a replay file written with --record from the initial state and
check that it reaches the recorded final state.

Exit codes:
  0 - The replay reproduces the recorded state
  1 - The replay diverges or its frames are not contiguous
  2 - Command error (file missing or unreadable)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command, path string) error {
	logger := opts.newLogger(cmd.ErrOrStderr())

	data, err := replay.LoadReplay(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load replay", err)
	}
	logger.Debug("replay loaded", "match", data.MatchID, "frames", len(data.Frames), "version", data.Version)

	final, err := replay.Verify(*data, fight.Step)
	if err != nil {
		if errors.Is(err, replay.ErrMismatch) || errors.Is(err, replay.ErrFrameGap) {
			return WrapExitError(ExitFailure, "replay failed verification", err)
		}
		return WrapExitError(ExitCommandError, "failed to replay", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "match %s (%s, recorded by %s): %d frames\n", data.MatchID, data.Mode, data.Player, len(data.Frames))
	_, _ = fmt.Fprintf(out, "final: %s\n", final)
	if data.Final == nil {
		_, _ = fmt.Fprintln(out, "no recorded state to compare against")
	} else {
		_, _ = fmt.Fprintln(out, "deterministic: replay matches the recorded state")
	}
	if w := final.Winner(); w != fight.PlayerNone {
		_, _ = fmt.Fprintf(out, "winner: %s\n", w)
	}
	return nil
}
