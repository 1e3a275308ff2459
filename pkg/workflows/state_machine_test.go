package workflows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationStateMachine(t *testing.T) {
	sm := NewVerificationStateMachine()

	assert.True(t, sm.CanTransition(StateStart, StateQRDecoded))
	assert.False(t, sm.CanTransition(StateStart, StateSignatureChecked))
	assert.False(t, sm.CanTransition(StateQRDecoded, StateStart))
	assert.False(t, sm.CanTransition("UNKNOWN", StateDone))
	assert.Empty(t, sm.GetAllowedTransitions(StateDone))
	assert.Empty(t, sm.GetAllowedTransitions("UNKNOWN"))
	assert.Equal(t, []State{StateFingerprintsRecomputed}, sm.GetAllowedTransitions(StateQRDecoded))
}

func TestRunFollowsLinearOrder(t *testing.T) {
	run := NewVerificationStateMachine().Start()
	assert.Equal(t, StateStart, run.Current())

	for _, next := range []State{StateQRDecoded, StateFingerprintsRecomputed, StateSignatureChecked, StateDone} {
		require.NoError(t, run.Advance(next))
	}
	assert.Equal(t, StateDone, run.Current())
	assert.Equal(t, []State{StateStart, StateQRDecoded, StateFingerprintsRecomputed, StateSignatureChecked, StateDone}, run.History())
}

func TestRunRejectsSkips(t *testing.T) {
	run := NewVerificationStateMachine().Start()
	require.NoError(t, run.Advance(StateQRDecoded))

	err := run.Advance(StateSignatureChecked)
	assert.Error(t, err)
	assert.Equal(t, StateQRDecoded, run.Current())

	err = run.Advance(StateQRDecoded)
	assert.Error(t, err)
}
