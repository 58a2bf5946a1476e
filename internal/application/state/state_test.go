package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTickPhase_String(t *testing.T) {
	tests := []struct {
		phase    TickPhase
		expected string
	}{
		{AwaitingLocalInput, "AwaitingLocalInput"},
		{Sent, "Sent"},
		{AwaitingRemote, "AwaitingRemote"},
		{Advanced, "Advanced"},
		{TickPhase(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.phase.String())
		})
	}
}

func TestTickPhaseConstants(t *testing.T) {
	// Verify the iota ordering
	assert.Equal(t, TickPhase(0), AwaitingLocalInput)
	assert.Equal(t, TickPhase(1), Sent)
	assert.Equal(t, TickPhase(2), AwaitingRemote)
	assert.Equal(t, TickPhase(3), Advanced)
}

func TestTickPhase_Next(t *testing.T) {
	p := AwaitingLocalInput
	seen := []TickPhase{p}
	for i := 0; i < 4; i++ {
		p = p.Next()
		seen = append(seen, p)
	}

	assert.Equal(t, []TickPhase{AwaitingLocalInput, Sent, AwaitingRemote, Advanced, AwaitingLocalInput}, seen)
}
