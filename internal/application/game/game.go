// Package game provides the main game loop manager that handles Scene transitions.
package game

import (
	"github.com/hajimehoshi/ebiten/v2"

	"github.com/younwookim/fightsquares/internal/application/scene"
)

// DefaultTickRate is the simulation rate when none is configured
const DefaultTickRate = 30

// Game implements ebiten.Game and manages Scene transitions.
type Game struct {
	current  scene.Scene
	screenW  int
	screenH  int
	tickRate int
	dt       float64
	err      error
}

// New creates a new Game with the given initial scene.
// The initial scene's OnEnter is called immediately.
// tickRate <= 0 selects DefaultTickRate.
func New(initialScene scene.Scene, screenW, screenH, tickRate int) *Game {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	g := &Game{
		current:  initialScene,
		screenW:  screenW,
		screenH:  screenH,
		tickRate: tickRate,
		dt:       1.0 / float64(tickRate),
	}
	g.current.OnEnter()
	return g
}

// Update updates the current scene and handles scene transitions.
// Once a scene fails, the same error is returned on every later call.
// Implements ebiten.Game interface.
func (g *Game) Update() error {
	if g.err != nil {
		return g.err
	}

	next, err := g.current.Update(g.dt)
	if err != nil {
		g.err = err
		g.current.OnExit()
		return err
	}

	// Handle scene transition
	if next != nil {
		g.current.OnExit()
		g.current = next
		g.current.OnEnter()
	}

	return nil
}

// Draw renders the current scene.
// Implements ebiten.Game interface.
func (g *Game) Draw(screen *ebiten.Image) {
	g.current.Draw(screen)
}

// Layout returns the game's logical screen dimensions.
// Implements ebiten.Game interface.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.screenW, g.screenH
}

// TickRate returns the updates per second the game expects.
// Pass it to ebiten.SetTPS before running.
func (g *Game) TickRate() int {
	return g.tickRate
}

// Current returns the active scene
func (g *Game) Current() scene.Scene {
	return g.current
}

// Err returns the error that stopped the game, if any
func (g *Game) Err() error {
	return g.err
}
