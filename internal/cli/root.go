// Package cli wires the fightsquares commands: host, join, replay and matches.
package cli

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/younwookim/fightsquares/internal/infrastructure/config"
	"github.com/younwookim/fightsquares/internal/infrastructure/transport"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	ConfigDir   string // empty uses the configs built into the binary
	Transport   string
	MetricsAddr string
	MatchLog    string
	Record      string
	Headless    bool
	Frames      int

	configFS fs.FS
}

// NewRootCommand creates the root command. configFS holds the built-in
// netcode.json.
func NewRootCommand(configFS fs.FS) *cobra.Command {
	opts := &RootOptions{configFS: configFS}

	cmd := &cobra.Command{
		Use:   "fightsquares",
		Short: "Fighting Squares - a two-player fighting game over the network",
		Long: `Two squares, one sword each. One player hosts, the other joins.

The host picks the synchronization mode: "delay" waits for the remote input
every frame, "rollback" predicts it and corrects history when it arrives.
"local" plays both sides on one keyboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch transport.Kind(opts.Transport) {
			case transport.KindTCP, transport.KindWebSocket:
			default:
				return fmt.Errorf("invalid transport %q: must be %s or %s", opts.Transport, transport.KindTCP, transport.KindWebSocket)
			}
			if opts.Frames < 0 {
				return fmt.Errorf("invalid frames %d", opts.Frames)
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&opts.ConfigDir, "config", "", "directory holding netcode.json (default: built-in)")
	flags.StringVar(&opts.Transport, "transport", string(transport.KindTCP), "transport (tcp|ws)")
	flags.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	flags.StringVar(&opts.MatchLog, "match-log", "", "SQLite file to log matches into")
	flags.StringVar(&opts.Record, "record", "", "write a replay file when the match ends")
	flags.BoolVar(&opts.Headless, "headless", false, "run without a window, using scripted input")
	flags.IntVar(&opts.Frames, "frames", 0, "stop after this many frames (0: until the peer leaves)")

	// Add subcommands
	cmd.AddCommand(NewHostCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewLocalCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewMatchesCommand(opts))

	return cmd
}

// newLogger builds the text logger every command writes to stderr
func (o *RootOptions) newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads netcode.json from --config or the built-in copy, then
// applies flag overrides
func (o *RootOptions) loadConfig() (*config.NetcodeConfig, error) {
	var loader *config.Loader
	if o.ConfigDir != "" {
		loader = config.NewLoader(o.ConfigDir)
	} else {
		loader = config.NewFSLoader(o.configFS, ".")
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if o.MetricsAddr != "" {
		cfg.Metrics.Addr = o.MetricsAddr
	}
	if o.MatchLog != "" {
		cfg.MatchLog.Path = o.MatchLog
	}
	return cfg, nil
}
