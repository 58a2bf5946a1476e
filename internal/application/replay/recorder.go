package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/younwookim/fightsquares/internal/application/history"
	"github.com/younwookim/fightsquares/internal/domain/fight"
)

// ErrNoFrames is returned when saving an empty recording
var ErrNoFrames = errors.New("no frames to save")

// Recorder handles input recording for replay
type Recorder struct {
	data      ReplayData
	recording bool
}

// NewRecorder creates a new recorder for one peer's view of a match
func NewRecorder(matchID, mode string, player fight.Player) *Recorder {
	return &Recorder{
		data: ReplayData{
			Version:   FormatVersion,
			MatchID:   matchID,
			Mode:      mode,
			Player:    player,
			StartTime: time.Now().Format(time.RFC3339),
			Frames:    make([]FrameInput, 0, 1800), // Pre-allocate for ~1 minute at 30fps
		},
		recording: true,
	}
}

// RecordFrame records one frame's controls. Recording a frame again replaces
// it, so rollback corrections can be written through.
func (r *Recorder) RecordFrame(frame int, p1, p2 fight.ControlState) {
	if !r.recording || frame < 1 {
		return
	}

	fi := NewFrameInput(frame, p1, p2)
	if i := frame - 1; i < len(r.data.Frames) {
		r.data.Frames[i] = fi
		return
	}
	if frame != len(r.data.Frames)+1 {
		// frames must stay contiguous
		return
	}
	r.data.Frames = append(r.data.Frames, fi)
}

// RecordHistory replaces the recording with every simulated frame of records
// and remembers the last state
func (r *Recorder) RecordHistory(records []history.FrameRecord) {
	if !r.recording {
		return
	}

	r.data.Frames = r.data.Frames[:0]
	r.data.Final = nil
	for i := 1; i < len(records); i++ {
		rec := records[i]
		if !rec.Simulated {
			break
		}
		p1, p2 := r.data.Player.Order(rec.Local, rec.Remote)
		r.data.Frames = append(r.data.Frames, NewFrameInput(i, p1, p2))
		final := rec.State
		r.data.Final = &final
	}
}

// Save writes the replay data to a file
func (r *Recorder) Save(filename string) error {
	if len(r.data.Frames) == 0 {
		return ErrNoFrames
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r.data); err != nil {
		return fmt.Errorf("failed to encode replay: %w", err)
	}

	return nil
}

// Stop stops recording
func (r *Recorder) Stop() {
	r.recording = false
}

// IsRecording returns whether recording is active
func (r *Recorder) IsRecording() bool {
	return r.recording
}

// FrameCount returns the number of recorded frames
func (r *Recorder) FrameCount() int {
	return len(r.data.Frames)
}

// GetData returns the replay data (for testing)
func (r *Recorder) GetData() ReplayData {
	return r.data
}

// GenerateFilename creates a filename based on current time
func GenerateFilename() string {
	return fmt.Sprintf("replay_%s.json", time.Now().Format("20060102_150405"))
}
