package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"github.com/younwookim/fightsquares/internal/application/game"
	"github.com/younwookim/fightsquares/internal/application/input"
	"github.com/younwookim/fightsquares/internal/application/netsync"
	"github.com/younwookim/fightsquares/internal/application/scene/match"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/config"
	"github.com/younwookim/fightsquares/internal/infrastructure/store"
)

// ModeLocal labels matches played by two players on one keyboard
const ModeLocal = "local"

// NewLocalCommand creates the local command.
func NewLocalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Play both sides on one keyboard",
		Long: `Play a match on this machine with no network. Player 1 uses A/D to move
and S to attack, player 2 uses J/L and K.

Examples:
  fightsquares local
  fightsquares local --headless --frames 600 --record local.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocalCommand(rootOpts, cmd)
		},
	}
}

func runLocalCommand(opts *RootOptions, cmd *cobra.Command) error {
	logger := opts.newLogger(cmd.ErrOrStderr())
	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	p1, p2 := localInputs(opts.Headless)
	res, err := runLocal(cmd.Context(), localParams{
		opts:   opts,
		cfg:    cfg,
		p1:     p1,
		p2:     p2,
		logger: logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "match failed", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "match %s: %d frames, %s, winner %s\n", res.ID, res.Frames, res.Final, res.Winner)
	return nil
}

// localInputs splits the keyboard, or scripts both players when headless
func localInputs(headless bool) (p1, p2 netsync.InputSource) {
	if headless {
		return input.NewCycle(input.Walk(fight.Player1, walkFrames, attackPeriod)...),
			input.NewCycle(input.Walk(fight.Player2, walkFrames, attackPeriod)...)
	}
	return input.NewKeyboard(input.Player1Keys), input.NewKeyboard(input.Player2Keys)
}

type localParams struct {
	opts   *RootOptions
	cfg    *config.NetcodeConfig
	p1, p2 netsync.InputSource
	logger *slog.Logger
}

func runLocal(ctx context.Context, p localParams) (MatchResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return MatchResult{}, fmt.Errorf("failed to create match id: %w", err)
	}
	res := MatchResult{ID: id.String()}
	logger := p.logger.With("match", res.ID)

	matchLog, err := openMatchLog(ctx, p.cfg.MatchLog.Path, store.Match{
		ID:        res.ID,
		Mode:      ModeLocal,
		Player:    fight.Player1,
		Transport: "none",
		StartedAt: time.Now(),
	})
	if err != nil {
		return res, err
	}
	defer func() { _ = matchLog.Close() }()

	ticker, err := netsync.NewLocal(netsync.Config{Input: p.p1, Logger: logger}, p.p2)
	if err != nil {
		return res, err
	}

	sc := match.New(ticker, match.Options{
		Local:     fight.Player1,
		Mode:      ModeLocal,
		MaxFrames: p.opts.Frames,
		ScreenW:   p.cfg.Display.ScreenWidth,
		ScreenH:   p.cfg.Display.ScreenHeight,
		Logger:    logger,
	})
	loop := game.New(sc, p.cfg.Display.ScreenWidth, p.cfg.Display.ScreenHeight, p.cfg.TickRate)

	var matchErr error
	if p.opts.Headless {
		matchErr = runHeadless(ctx, loop)
	} else {
		ebiten.SetWindowSize(p.cfg.Display.ScreenWidth*p.cfg.Display.Scale, p.cfg.Display.ScreenHeight*p.cfg.Display.Scale)
		ebiten.SetWindowTitle("Fighting Squares - local")
		ebiten.SetTPS(loop.TickRate())
		matchErr = ebiten.RunGame(loop)
	}
	matchErr = classifyEnd(ctx, matchErr, logger)

	records := ticker.History().Snapshot()
	res.Frames, res.Final = lastSimulated(records)
	res.Winner = res.Final.Winner()

	if err := writeRecording(p.opts.Record, res.ID, ModeLocal, fight.Player1, records); err != nil {
		logger.Error("failed to save replay", "path", p.opts.Record, "error", err)
	}
	if err := matchLog.finish(res, fight.Player1, records, matchErr); err != nil {
		logger.Error("failed to log match", "error", err)
	}

	logger.Info("match over", "frames", res.Frames, "winner", res.Winner, "error", matchErr)
	return res, matchErr
}

