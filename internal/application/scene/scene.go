// Package scene defines the Scene interface for game screens.
//
// The running match is a scene; the game loop only knows this interface, so
// screens can be swapped without touching the netcode.
package scene

import "github.com/hajimehoshi/ebiten/v2"

// Scene represents a game screen.
//
// The game loop delegates Update and Draw calls to the current scene.
// Scene transitions are handled by returning a new Scene from Update.
type Scene interface {
	// Update runs one tick of the scene.
	// dt is the tick length in seconds (1/tickRate).
	// Returns the next scene if a transition is needed, nil to stay on current scene.
	// Returns an error to terminate the game.
	Update(dt float64) (next Scene, err error)

	// Draw renders the scene to the screen.
	Draw(screen *ebiten.Image)

	// OnEnter is called when entering this scene.
	OnEnter()

	// OnExit is called when leaving this scene, including when the game
	// stops because Update failed.
	OnExit()
}
