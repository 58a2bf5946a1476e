// Package match provides the scene that runs and renders a networked match.
package match

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/younwookim/fightsquares/internal/application/netsync"
	"github.com/younwookim/fightsquares/internal/application/scene"
	"github.com/younwookim/fightsquares/internal/domain/fight"
)

// Colors for rendering
var (
	colorBG       = color.RGBA{255, 255, 255, 255}
	colorP1       = color.RGBA{40, 80, 220, 255}
	colorP2       = color.RGBA{40, 170, 70, 255}
	colorSword    = color.RGBA{0, 0, 0, 255}
	colorHealthBG = color.RGBA{200, 200, 200, 255}
	colorHealthFG = color.RGBA{220, 60, 60, 255}
	colorOverlay  = color.RGBA{0, 0, 0, 140}
)

const (
	swordThickness = 5
	healthBarW     = 150
	healthBarH     = 8
)

// Ticker advances the match by one frame
type Ticker interface {
	AdvanceTick() (netsync.Frame, error)
}

// Options configure a match scene
type Options struct {
	Local     fight.Player // seat of this peer
	Mode      string       // shown in the header
	MaxFrames int          // stop after this frame, 0 runs until the peer leaves
	ScreenW   int
	ScreenH   int
	Logger    *slog.Logger
	// OnFrame is called after every tick with the frame to present
	OnFrame func(netsync.Frame)
}

// Match is the scene that ticks a synchronizer and draws its frames
type Match struct {
	ticker Ticker
	opts   Options
	logger *slog.Logger

	frame   netsync.Frame
	ticks   int
	winner  fight.Player
	entered bool
}

// New creates a match scene
func New(ticker Ticker, opts Options) *Match {
	if opts.ScreenW <= 0 {
		opts.ScreenW = fight.ArenaWidth
	}
	if opts.ScreenH <= 0 {
		opts.ScreenH = fight.ArenaHeight
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Match{
		ticker: ticker,
		opts:   opts,
		logger: logger,
		frame:  netsync.Frame{State: fight.NewSimState()},
	}
}

// Update advances one tick. It returns ebiten.Termination once MaxFrames
// ticks have run.
func (m *Match) Update(_ float64) (scene.Scene, error) {
	if m.opts.MaxFrames > 0 && m.ticks >= m.opts.MaxFrames {
		return nil, ebiten.Termination
	}

	frame, err := m.ticker.AdvanceTick()
	if err != nil {
		return nil, fmt.Errorf("failed to advance tick %d: %w", m.ticks+1, err)
	}
	m.ticks++
	m.frame = frame

	if w := frame.State.Winner(); w != fight.PlayerNone && m.winner == fight.PlayerNone {
		m.winner = w
		m.logger.Info("knockout", "winner", w, "frame", frame.Number)
	}
	if m.opts.OnFrame != nil {
		m.opts.OnFrame(frame)
	}
	return nil, nil
}

// Frame returns the frame presented last
func (m *Match) Frame() netsync.Frame {
	return m.frame
}

// Ticks returns how many ticks have run
func (m *Match) Ticks() int {
	return m.ticks
}

// Winner returns the first player to win by knockout, or PlayerNone
func (m *Match) Winner() fight.Player {
	return m.winner
}

// Draw renders the presented frame
func (m *Match) Draw(screen *ebiten.Image) {
	screen.Fill(colorBG)

	st := m.frame.State
	floorY := float64(m.opts.ScreenH - fight.PlayerSize)
	m.drawFighter(screen, fight.Player1, st.P1X, st.P1AttackFrame, floorY, colorP1)
	m.drawFighter(screen, fight.Player2, st.P2X, st.P2AttackFrame, floorY, colorP2)

	m.drawUI(screen, st)

	if m.winner != fight.PlayerNone {
		m.drawKnockoutOverlay(screen)
	}
}

func (m *Match) drawFighter(screen *ebiten.Image, p fight.Player, x, attackFrame int, floorY float64, c color.Color) {
	half := float64(fight.PlayerSize) / 2
	ebitenutil.DrawRect(screen, float64(x)-half, floorY, fight.PlayerSize, fight.PlayerSize, c)

	if attackFrame == 0 {
		return
	}
	cx, cy := float64(x), floorY+half
	tx, ty := SwordTip(p, cx, cy, attackFrame)
	vector.StrokeLine(screen, float32(cx), float32(cy), float32(tx), float32(ty), swordThickness, colorSword, true)
}

// SwordTip returns where the sword of p ends for a fighter centred at
// (cx, cy). The sword sweeps from 45 degrees behind the fighter to straight
// ahead over the attack.
func SwordTip(p fight.Player, cx, cy float64, attackFrame int) (x, y float64) {
	step := 135.0 / fight.AttackFrames
	var deg float64
	if p == fight.Player2 {
		deg = 45 + step*float64(attackFrame)
	} else {
		deg = step * float64(fight.AttackFrames-attackFrame)
	}
	rad := deg * math.Pi / 180
	return cx + math.Cos(rad)*fight.AttackRange, cy - math.Sin(rad)*fight.AttackRange
}

func (m *Match) drawUI(screen *ebiten.Image, st fight.SimState) {
	m.drawStats(screen, fight.Player1, st.P1HP, st.P1X, st.P1AttackFrame, 10)
	m.drawStats(screen, fight.Player2, st.P2HP, st.P2X, st.P2AttackFrame, m.opts.ScreenW-healthBarW-10)

	header := fmt.Sprintf("You: %s  Mode: %s  Frame: %d  TPS: %0.1f", m.opts.Local, m.opts.Mode, m.frame.Number, ebiten.ActualTPS())
	ebitenutil.DebugPrintAt(screen, header, m.opts.ScreenW/2-130, 10)
}

func (m *Match) drawStats(screen *ebiten.Image, p fight.Player, hp, x, attackFrame, left int) {
	barX, barY := float64(left), 30.0
	ratio := max(float64(hp), 0) / fight.MaxHP
	ebitenutil.DrawRect(screen, barX, barY, healthBarW, healthBarH, colorHealthBG)
	ebitenutil.DrawRect(screen, barX, barY, healthBarW*ratio, healthBarH, colorHealthFG)

	text := fmt.Sprintf("%s HP: %d\n%s X: %d\n%s Attack: %d", p, hp, p, x, p, attackFrame)
	ebitenutil.DebugPrintAt(screen, text, left, 42)
}

func (m *Match) drawKnockoutOverlay(screen *ebiten.Image) {
	ebitenutil.DrawRect(screen, 0, 0, float64(m.opts.ScreenW), float64(m.opts.ScreenH), colorOverlay)

	text := fmt.Sprintf("K.O.  %s WINS", m.winner)
	if m.winner == m.opts.Local {
		text += "  (you)"
	}
	ebitenutil.DebugPrintAt(screen, text, m.opts.ScreenW/2-60, m.opts.ScreenH/2-20)
}

// OnEnter is called when the scene becomes active
func (m *Match) OnEnter() {
	if m.entered {
		return
	}
	m.entered = true
	m.logger.Info("match started", "player", m.opts.Local, "mode", m.opts.Mode)
}

// OnExit is called when leaving the scene
func (m *Match) OnExit() {
	m.logger.Info("match left", "ticks", m.ticks, "frame", m.frame.Number, "winner", m.winner)
}

// Done reports whether err from Update ends the match without a failure
func Done(err error) bool {
	return err == nil || errors.Is(err, ebiten.Termination)
}
