package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_HappyPath(t *testing.T) {
	m := NewMachine()
	require.Equal(t, StateIdle, m.State())

	steps := []struct {
		trigger Trigger
		want    State
	}{
		{TriggerUpload, StateUploading},
		{TriggerExtract, StateExtracting},
		{TriggerAnalyze, StateAnalyzing},
		{TriggerAnalyzed, StateReadyForReview},
		{TriggerSave, StateSaving},
		{TriggerFiled, StateFiled},
	}

	for _, step := range steps {
		require.NoError(t, m.Fire(step.trigger))
		assert.Equal(t, step.want, m.State())
	}

	assert.True(t, m.State().IsTerminal())
	assert.Error(t, m.Fire(TriggerUpload))
}

func TestMachine_UploadFromMidFlightStates(t *testing.T) {
	tests := []struct {
		name     string
		advance  []Trigger
		canReset bool
	}{
		{"from uploading", []Trigger{TriggerUpload}, true},
		{"from extracting", []Trigger{TriggerUpload, TriggerExtract}, true},
		{"from analyzing", []Trigger{TriggerUpload, TriggerExtract, TriggerAnalyze}, true},
		{"from review", []Trigger{TriggerUpload, TriggerExtract, TriggerAnalyze, TriggerAnalyzed}, true},
		{"from saving", []Trigger{TriggerUpload, TriggerExtract, TriggerAnalyze, TriggerAnalyzed, TriggerSave}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			for _, tr := range tt.advance {
				require.NoError(t, m.Fire(tr))
			}

			if tt.canReset {
				require.NoError(t, m.Fire(TriggerUpload))
				assert.Equal(t, StateUploading, m.State())
			} else {
				assert.Error(t, m.Fire(TriggerUpload))
			}
		})
	}
}

func TestMachine_FailureAndRetry(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Fire(TriggerUpload))
	require.NoError(t, m.Fire(TriggerExtract))
	require.NoError(t, m.Fire(TriggerFail))
	assert.Equal(t, StateFailed, m.State())

	// Retry returns to idle for a fresh run
	require.NoError(t, m.Fire(TriggerRetry))
	assert.Equal(t, StateIdle, m.State())
}

func TestMachine_DiscardIsTerminal(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Fire(TriggerUpload))
	require.NoError(t, m.Fire(TriggerExtract))
	require.NoError(t, m.Fire(TriggerAnalyze))
	require.NoError(t, m.Fire(TriggerAnalyzed))
	require.NoError(t, m.Fire(TriggerDiscard))

	assert.Equal(t, StateDiscarded, m.State())
	assert.True(t, m.State().IsTerminal())
	assert.Empty(t, m.PermittedTriggers())
}

func TestMachine_InvalidTransition(t *testing.T) {
	m := NewMachine()
	err := m.Fire(TriggerSave)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.CanFire(TriggerFiled))
}
