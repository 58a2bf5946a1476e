package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetcode_Counters(t *testing.T) {
	m := New(WithConstLabels(prometheus.Labels{"strategy": "rollback"}))

	m.FrameAdvanced(1)
	m.FrameAdvanced(2)
	m.LateInput()
	m.Rollback(3, true)
	m.Rollback(2, false)
	m.Desync(4)
	m.DecodeError()
	m.EchoDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesAdvanced))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.currentFrame))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lateInputs))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rollbacks))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.framesResimulated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.shortCircuits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.desyncs))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.remoteLead))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decodeErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.echoesDropped))
}

func TestNetcode_SeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration
	a := New()
	b := New()
	require.NotSame(t, a.Registry(), b.Registry())

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "fightsquares_netcode_frames_advanced_total")
}

func TestNetcode_NilIsNoop(t *testing.T) {
	var m *Netcode
	assert.NotPanics(t, func() {
		m.FrameAdvanced(1)
		m.LateInput()
		m.Rollback(1, true)
		m.Desync(1)
		m.DecodeError()
		m.EchoDropped()
	})
	assert.Nil(t, m.Registry())
}
