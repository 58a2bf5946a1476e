package netsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younwookim/fightsquares/internal/domain/fight"
)

func TestNewLocal_RequiresBothInputs(t *testing.T) {
	_, err := NewLocal(Config{}, &script{})
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = NewLocal(Config{Input: &script{}}, nil)
	assert.ErrorIs(t, err, ErrNoInput)
}

func TestLocal_AdvanceTick(t *testing.T) {
	p1 := cycleInputs(40, 0)
	p2 := cycleInputs(40, 3)

	l, err := NewLocal(Config{Input: &script{inputs: p1}, Logger: quietLogger()}, &script{inputs: p2})
	require.NoError(t, err)

	want := replayOffline(p1, p2)
	for i := 1; i <= len(p1); i++ {
		f, err := l.AdvanceTick()
		require.NoError(t, err)
		assert.Equal(t, i, f.Number)
		assert.Equal(t, want[i], f.State, "frame %d", i)
	}

	assert.Equal(t, len(p1)+1, l.History().Len())
	assert.Equal(t, fight.Player1, l.History().Player())
	assertConsistent(t, l.History())
}
