package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/transport"
)

// JoinOptions holds flags for the join command.
type JoinOptions struct {
	*RootOptions
	Addr string
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JoinOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Connect to a host and play as player 2",
		Long: `Connect to a waiting host and play as player 2 in the mode the host
announces.

Examples:
  fightsquares join --addr 192.168.1.20:5000
  fightsquares join --transport ws --addr ws://example.org:5000/netcode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "host address (required)")
	_ = cmd.MarkFlagRequired("addr")

	return cmd
}

func runJoin(opts *JoinOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	kind := transport.Kind(opts.Transport)
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, err := transport.Dial(dialCtx, kind, opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to reach host", err)
	}

	mode, err := transport.Await(dialCtx, conn)
	if err != nil {
		_ = conn.Close()
		return WrapExitError(ExitCommandError, "handshake failed", err)
	}
	cfg.Mode = mode
	if err := cfg.Validate(); err != nil {
		_ = conn.Close()
		return WrapExitError(ExitCommandError, "host announced an unusable mode", err)
	}
	logger.Info("joined", "addr", conn.RemoteAddr(), "mode", mode)

	return playMatch(ctx, matchParams{
		opts:   opts.RootOptions,
		cfg:    cfg,
		role:   fight.Player2,
		conn:   conn,
		kind:   kind,
		logger: logger,
		out:    cmd.OutOrStdout(),
	})
}
