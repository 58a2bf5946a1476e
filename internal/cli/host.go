package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/config"
	"github.com/younwookim/fightsquares/internal/infrastructure/transport"
)

// handshakeTimeout bounds dialing and the HELLO/READY exchange
const handshakeTimeout = 10 * time.Second

// HostOptions holds flags for the host command.
type HostOptions struct {
	*RootOptions
	Port int
	Mode string // empty uses the configured mode
}

// NewHostCommand creates the host command.
func NewHostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Wait for an opponent and play as player 1",
		Long: `Listen for one opponent, announce the synchronization mode and play as
player 1.

Examples:
  fightsquares host --port 5000 --mode rollback
  fightsquares host --transport ws --headless --frames 600`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Port, "port", 5000, "port to listen on")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "synchronization mode (delay|rollback, default from config)")

	return cmd
}

func runHost(opts *HostOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	logger := opts.newLogger(cmd.ErrOrStderr())

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Mode != "" {
		cfg.Mode = opts.Mode
		if err := cfg.Validate(); err != nil {
			return WrapExitError(ExitCommandError, "invalid --mode", err)
		}
	}

	kind := transport.Kind(opts.Transport)
	ln, err := transport.Listen(kind, fmt.Sprintf(":%d", opts.Port), logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	defer func() { _ = ln.Close() }()

	logger.Info("waiting for opponent", "addr", ln.Addr(), "transport", kind, "mode", cfg.Mode)
	conn, err := ln.Accept(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to accept opponent", err)
	}
	_ = ln.Close()

	if err := offer(ctx, conn, cfg); err != nil {
		_ = conn.Close()
		return WrapExitError(ExitCommandError, "handshake failed", err)
	}

	return playMatch(ctx, matchParams{
		opts:   opts.RootOptions,
		cfg:    cfg,
		role:   fight.Player1,
		conn:   conn,
		kind:   kind,
		logger: logger,
		out:    cmd.OutOrStdout(),
	})
}

func offer(ctx context.Context, conn transport.Conn, cfg *config.NetcodeConfig) error {
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()
	return transport.Offer(ctx, conn, cfg.Mode)
}
