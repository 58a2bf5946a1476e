package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/fightsquares/internal/application/replay"
	"github.com/younwookim/fightsquares/internal/domain/fight"
)

func writeReplay(t *testing.T, corrupt bool) string {
	t.Helper()
	data := replay.ReplayData{
		Version: replay.FormatVersion,
		MatchID: "m-replay",
		Mode:    "rollback",
		Player:  fight.Player1,
	}
	st := fight.NewSimState()
	for f := 1; f <= 70; f++ {
		p1 := fight.ControlState{MoveRight: f <= 30, Attack: f == 31}
		data.Frames = append(data.Frames, replay.NewFrameInput(f, p1, fight.Neutral))
		st = fight.Step(st, p1, fight.Neutral)
	}
	if corrupt {
		st.P2HP++
	}
	data.Final = &st

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "replay.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func TestReplayCommand(t *testing.T) {
	tests := []struct {
		name     string
		corrupt  bool
		wantCode int
	}{
		{"deterministic", false, ExitSuccess},
		{"diverged", true, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeReplay(t, tt.corrupt)

			buf := &bytes.Buffer{}
			cmd := NewRootCommand(nil)
			cmd.SetOut(buf)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"replay", path})

			err := cmd.Execute()
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			if tt.wantCode == ExitSuccess {
				require.NoError(t, err)
				assert.Contains(t, buf.String(), "match m-replay (rollback, recorded by P1): 70 frames")
				assert.Contains(t, buf.String(), "deterministic")
			} else {
				assert.ErrorIs(t, err, replay.ErrMismatch)
			}
		})
	}
}

func TestReplayCommand_MissingFile(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"replay", filepath.Join(t.TempDir(), "missing.json")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplayCommand_RequiresFile(t *testing.T) {
	cmd := NewRootCommand(nil)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"replay"})

	assert.Error(t, cmd.Execute())
}
