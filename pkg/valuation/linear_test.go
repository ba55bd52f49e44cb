package valuation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearRoundTrip(t *testing.T) {
	t.Parallel()

	l := NewLinear(map[string]float64{"amp": 2.5, "synth": 1})
	fn := l.GenerateScoringFunction()

	score, err := l.GetScore(fn, []string{"amp", "synth", "unknown_good"})
	require.NoError(t, err)
	require.Equal(t, 3.5, score)
}

func TestLinearScoringFunctionIsDeterministic(t *testing.T) {
	t.Parallel()

	l := NewLinear(map[string]float64{"b": 1, "a": 2, "c": 3})
	require.Equal(t, "a=2,b=1,c=3", l.GenerateScoringFunction())
}

func TestLinearMalformedScoringFunction(t *testing.T) {
	t.Parallel()

	l := NewLinear(nil)
	_, err := l.GetScore("not-a-term", []string{"amp"})
	require.Error(t, err)
}
