package fight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlState_FlagsOrder(t *testing.T) {
	c := ControlState{MoveLeft: true, Attack: true}
	assert.Equal(t, []bool{true, false, true}, c.Flags())
}

func TestControlStateFromFlags(t *testing.T) {
	c, err := ControlStateFromFlags([]bool{false, true, true})
	require.NoError(t, err)
	assert.Equal(t, ControlState{MoveRight: true, Attack: true}, c)

	_, err = ControlStateFromFlags([]bool{true, false})
	assert.Error(t, err)

	_, err = ControlStateFromFlags([]bool{true, false, false, true})
	assert.Error(t, err)
}

func TestControlState_String(t *testing.T) {
	assert.Equal(t, "---", Neutral.String())
	assert.Equal(t, "LRA", ControlState{MoveLeft: true, MoveRight: true, Attack: true}.String())
	assert.True(t, Neutral.IsNeutral())
	assert.False(t, ControlState{Attack: true}.IsNeutral())
}

func TestPlayer_Order(t *testing.T) {
	local := ControlState{MoveLeft: true}
	remote := ControlState{Attack: true}

	p1, p2 := Player1.Order(local, remote)
	assert.Equal(t, local, p1)
	assert.Equal(t, remote, p2)

	p1, p2 = Player2.Order(local, remote)
	assert.Equal(t, remote, p1)
	assert.Equal(t, local, p2)
}

func TestPlayer_String(t *testing.T) {
	tests := []struct {
		player   Player
		expected string
	}{
		{Player1, "P1"},
		{Player2, "P2"},
		{PlayerNone, "none"},
		{Player(7), "none"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.player.String())
		})
	}
	assert.Equal(t, Player2, Player1.Opponent())
	assert.Equal(t, Player1, Player2.Opponent())
	assert.False(t, PlayerNone.Valid())
}
