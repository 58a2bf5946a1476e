package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

var (
	// ErrFrameGap is returned when recorded frames are not numbered 1..N
	ErrFrameGap = errors.New("replay frames are not contiguous")
	// ErrMismatch is returned when replaying does not reach the recorded state
	ErrMismatch = errors.New("replay does not reproduce the recorded state")
)

// Replayer handles input playback from recorded data
type Replayer struct {
	data  ReplayData
	frame int
}

// NewReplayer creates a new replayer from replay data
func NewReplayer(data ReplayData) *Replayer {
	return &Replayer{
		data:  data,
		frame: 0,
	}
}

// LoadReplay loads replay data from a file
func LoadReplay(filename string) (*ReplayData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var data ReplayData
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode replay: %w", err)
	}

	return &data, nil
}

// GetInput returns the next frame's controls and advances
func (r *Replayer) GetInput() (frame int, p1, p2 fight.ControlState, ok bool) {
	if r.frame >= len(r.data.Frames) {
		return 0, fight.ControlState{}, fight.ControlState{}, false
	}

	fi := r.data.Frames[r.frame]
	r.frame++

	p1, p2 = fi.Controls()
	return fi.F, p1, p2, true
}

// CurrentFrame returns how many frames have been played back
func (r *Replayer) CurrentFrame() int {
	return r.frame
}

// TotalFrames returns the total number of frames
func (r *Replayer) TotalFrames() int {
	return len(r.data.Frames)
}

// MatchID returns the recorded match ID
func (r *Replayer) MatchID() string {
	return r.data.MatchID
}

// Reset resets the replayer to the beginning
func (r *Replayer) Reset() {
	r.frame = 0
}

// Run plays every remaining frame through fn from initial and returns the
// state after each one, frame 0 first
func (r *Replayer) Run(fn fight.TransitionFunc, initial fight.SimState) ([]fight.SimState, error) {
	states := []fight.SimState{initial}
	for {
		frame, p1, p2, ok := r.GetInput()
		if !ok {
			return states, nil
		}
		if frame != len(states) {
			return states, fmt.Errorf("%w: expected frame %d, got %d", ErrFrameGap, len(states), frame)
		}
		states = append(states, fn(states[len(states)-1], p1, p2))
	}
}

// Verify replays data from the initial state and checks it reaches the
// recorded final state. It returns the replayed final state.
func Verify(data ReplayData, fn fight.TransitionFunc) (fight.SimState, error) {
	states, err := NewReplayer(data).Run(fn, fight.NewSimState())
	final := states[len(states)-1]
	if err != nil {
		return final, err
	}
	if data.Final != nil && *data.Final != final {
		return final, fmt.Errorf("%w: got %s, recorded %s", ErrMismatch, final, *data.Final)
	}
	return final, nil
}

// CreateTestReplayData creates replay data for testing (idle players)
func CreateTestReplayData(frames int) ReplayData {
	data := ReplayData{
		Version:   FormatVersion,
		MatchID:   "test",
		Mode:      "rollback",
		Player:    fight.Player1,
		StartTime: time.Now().Format(time.RFC3339),
		Frames:    make([]FrameInput, frames),
	}

	for i := 0; i < frames; i++ {
		data.Frames[i] = FrameInput{F: i + 1}
	}

	return data
}
