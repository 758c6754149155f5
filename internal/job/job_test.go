package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseTransitionsAreMonotonic(t *testing.T) {
	tests := []struct {
		from Phase
		to   Phase
		want bool
	}{
		{PhasePending, PhaseDownloadInProgress, true},
		{PhasePending, PhaseTranslateInProgress, false},
		{PhaseDownloadInProgress, PhaseDownloadCompleted, true},
		{PhaseDownloadInProgress, PhaseCompleted, true},
		{PhaseDownloadInProgress, PhaseTranslateInProgress, true},
		{PhaseDownloadCompleted, PhaseTranslateInProgress, true},
		{PhaseDownloadCompleted, PhaseCompleted, true},
		{PhaseTranslateInProgress, PhaseCompleted, true},
		{PhaseCompleted, PhaseDownloadInProgress, false},
		{PhaseFailed, PhaseCompleted, false},
	}
	for _, tt := range tests {
		got := tt.from.CanTransitionTo(tt.to)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestFailedReachableFromAnyNonTerminalPhase(t *testing.T) {
	nonTerminal := []Phase{PhasePending, PhaseDownloadInProgress, PhaseDownloadCompleted, PhaseTranslateInProgress}
	for _, p := range nonTerminal {
		assert.True(t, p.CanTransitionTo(PhaseFailed), "%s -> FAILED should be allowed", p)
	}
}

func TestTerminalPhasesRejectAllTransitions(t *testing.T) {
	terminal := []Phase{PhaseCompleted, PhaseFailed}
	for _, p := range terminal {
		assert.False(t, p.CanTransitionTo(PhaseDownloadInProgress))
		assert.False(t, p.CanTransitionTo(PhaseFailed))
	}
}

func TestFingerprintIsStableAndDistinguishesInputs(t *testing.T) {
	a := Fingerprint("/media/x.mkv", "en", "es")
	b := Fingerprint("/media/x.mkv", "en", "es")
	c := Fingerprint("/media/x.mkv", "en", "fr")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestNewIDProducesDistinctValues(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
