package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/younwookim/fightsquares/internal/application/game"
	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/application/input"
	"github.com/younwookim/fightsquares/internal/application/netsync"
	"github.com/younwookim/fightsquares/internal/application/replay"
	"github.com/younwookim/fightsquares/internal/application/scene/match"
	"github.com/younwookim/fightsquares/internal/domain/fight"
	"github.com/younwookim/fightsquares/internal/infrastructure/config"
	"github.com/younwookim/fightsquares/internal/infrastructure/metrics"
	"github.com/younwookim/fightsquares/internal/infrastructure/store"
	"github.com/younwookim/fightsquares/internal/infrastructure/transport"
	"github.com/younwookim/fightsquares/internal/infrastructure/wire"
)

// Headless peers walk toward each other, then swing every attackPeriod frames
const (
	walkFrames   = 25
	attackPeriod = 75
)

// matchParams is everything playMatch needs once the peers are connected
type matchParams struct {
	opts   *RootOptions
	cfg    *config.NetcodeConfig
	role   fight.Player
	conn   transport.Conn
	kind   transport.Kind
	logger *slog.Logger
	out    io.Writer

	// input overrides the keyboard or the headless script
	input netsync.InputSource
}

// MatchResult summarizes a finished match
type MatchResult struct {
	ID     string
	Frames int // last simulated frame
	Final  fight.SimState
	Winner fight.Player
}

// playMatch runs one match over a connected, handshaken conn and closes it
func playMatch(ctx context.Context, p matchParams) error {
	res, err := runMatch(ctx, p)
	if err != nil {
		if errors.Is(err, netsync.ErrDesync) || errors.Is(err, wire.ErrStreamCorrupt) {
			return WrapExitError(ExitFailure, "match failed", err)
		}
		return WrapExitError(ExitCommandError, "match failed", err)
	}
	_, _ = fmt.Fprintf(p.out, "match %s: %d frames, %s, winner %s\n", res.ID, res.Frames, res.Final, res.Winner)
	return nil
}

func runMatch(ctx context.Context, p matchParams) (MatchResult, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return MatchResult{}, fmt.Errorf("failed to create match id: %w", err)
	}
	res := MatchResult{ID: id.String()}
	mode := p.cfg.Mode
	logger := p.logger.With("match", res.ID, "player", p.role)

	conn := p.conn
	if bc := p.cfg.BadConnection; bc.Enabled && fight.Player(bc.Player) == p.role {
		// lockstep stalls the sender, rollback lets messages overtake each other
		conn = transport.WithJitter(conn, bc.MaxDelay(mode), mode == config.ModeRollback, logger)
		logger.Info("simulating a bad connection", "max_delay", bc.MaxDelay(mode))
	}
	defer func() { _ = conn.Close() }()

	m := metrics.New(metrics.WithConstLabels(prometheus.Labels{
		"strategy": mode,
		"player":   p.role.String(),
	}))

	matchLog, err := openMatchLog(ctx, p.cfg.MatchLog.Path, store.Match{
		ID:        res.ID,
		Mode:      mode,
		Player:    p.role,
		Transport: string(p.kind),
		Peer:      p.conn.RemoteAddr(),
		StartedAt: time.Now(),
	})
	if err != nil {
		return res, err
	}
	defer func() { _ = matchLog.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	if addr := p.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, addr, m.Registry(), logger)
		})
	}
	desyncs := make(chan netsync.DesyncEvent, 64)
	g.Go(func() error {
		matchLog.drainDesyncs(desyncs, logger)
		return nil
	})
	stop := func() {
		cancel()
		_ = conn.Close()
	}

	syncer, err := newSynchronizer(mode, netsync.Config{
		Input:       p.localInput(),
		RenderDelay: renderDelay(p.cfg.RenderDelay),
		Desync: netsync.ObserveDesync(desyncPolicy(p.cfg.Desync), func(ev netsync.DesyncEvent) {
			select {
			case desyncs <- ev:
			default:
			}
		}),
		Metrics: m,
		Logger:  logger,
		ReaderOptions: []wire.ReaderOption{
			wire.WithMaxBuffer(p.cfg.Wire.MaxBufferBytes),
			wire.WithMaxMalformed(p.cfg.Wire.MaxMalformed),
		},
	})
	if err == nil {
		err = syncer.Start(gctx, p.role, conn)
	}
	if err != nil {
		stop()
		close(desyncs)
		_ = g.Wait()
		return res, fmt.Errorf("failed to start %s synchronizer: %w", mode, err)
	}
	// unblocks a lockstep tick waiting on the peer
	context.AfterFunc(gctx, func() { _ = conn.Close() })

	sc := match.New(syncer, match.Options{
		Local:     p.role,
		Mode:      mode,
		MaxFrames: p.opts.Frames,
		ScreenW:   p.cfg.Display.ScreenWidth,
		ScreenH:   p.cfg.Display.ScreenHeight,
		Logger:    logger,
	})
	loop := game.New(sc, p.cfg.Display.ScreenWidth, p.cfg.Display.ScreenHeight, p.cfg.TickRate)

	var matchErr error
	if p.opts.Headless {
		matchErr = runHeadless(gctx, loop)
	} else {
		ebiten.SetWindowSize(p.cfg.Display.ScreenWidth*p.cfg.Display.Scale, p.cfg.Display.ScreenHeight*p.cfg.Display.Scale)
		ebiten.SetWindowTitle(fmt.Sprintf("Fighting Squares - %s (%s)", p.role, mode))
		ebiten.SetTPS(loop.TickRate())
		matchErr = ebiten.RunGame(loop)
	}
	matchErr = classifyEnd(ctx, matchErr, logger)

	// The receiver must be gone before desyncs is closed: it is the only sender.
	stop()
	if w, ok := syncer.(interface{ Wait() error }); ok {
		if err := w.Wait(); err != nil && matchErr == nil {
			matchErr = err
		}
	}
	close(desyncs)
	if err := g.Wait(); err != nil && matchErr == nil && ctx.Err() == nil {
		matchErr = err
	}

	records := syncer.History().Snapshot()
	res.Frames, res.Final = lastSimulated(records)
	res.Winner = res.Final.Winner()

	if err := writeRecording(p.opts.Record, res.ID, mode, p.role, records); err != nil {
		logger.Error("failed to save replay", "path", p.opts.Record, "error", err)
	}
	if err := matchLog.finish(res, p.role, records, matchErr); err != nil {
		logger.Error("failed to log match", "error", err)
	}

	logger.Info("match over", "frames", res.Frames, "winner", res.Winner, "error", matchErr)
	return res, matchErr
}

func (p matchParams) localInput() netsync.InputSource {
	switch {
	case p.input != nil:
		return p.input
	case p.opts.Headless:
		return input.NewCycle(input.Walk(p.role, walkFrames, attackPeriod)...)
	default:
		return input.NewKeyboard(input.DefaultBindings)
	}
}

func newSynchronizer(mode string, cfg netsync.Config) (netsync.Synchronizer, error) {
	switch mode {
	case config.ModeDelay:
		return netsync.NewLockstep(cfg)
	case config.ModeRollback:
		return netsync.NewRollback(cfg)
	default:
		return nil, fmt.Errorf("%w: mode %q", config.ErrInvalid, mode)
	}
}

// renderDelay maps the config value, where 0 means none, onto netsync's,
// where 0 means the default
func renderDelay(frames int) int {
	if frames == 0 {
		return -1
	}
	return frames
}

func desyncPolicy(cfg config.DesyncConfig) netsync.DesyncPolicy {
	if cfg.Policy == config.DesyncHold {
		return netsync.NewHoldEarlyInput(cfg.MaxHeld)
	}
	return netsync.DropEarlyInput
}

// runHeadless drives g at its tick rate without a window
func runHeadless(ctx context.Context, g *game.Game) error {
	ticker := time.NewTicker(time.Second / time.Duration(g.TickRate()))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := g.Update(); err != nil {
			return err
		}
	}
}

// classifyEnd turns the ways a match normally ends into nil: the frame limit,
// the window closing, the peer leaving and an interrupt
func classifyEnd(ctx context.Context, err error, logger *slog.Logger) error {
	switch {
	case match.Done(err):
		return nil
	case ctx.Err() != nil:
		logger.Info("match interrupted")
		return nil
	case peerGone(err):
		logger.Info("opponent left", "reason", err)
		return nil
	default:
		return err
	}
}

func peerGone(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// lastSimulated returns the newest frame both peers' inputs were applied to
func lastSimulated(records []history.FrameRecord) (int, fight.SimState) {
	last := 0
	for i := 1; i < len(records) && records[i].Simulated; i++ {
		last = i
	}
	if len(records) == 0 {
		return 0, fight.NewSimState()
	}
	return last, records[last].State
}

func writeRecording(path, id, mode string, role fight.Player, records []history.FrameRecord) error {
	if path == "" {
		return nil
	}
	rec := replay.NewRecorder(id, mode, role)
	rec.RecordHistory(records)
	rec.Stop()
	return rec.Save(path)
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("serving metrics", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
