package recognize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linesWithConfidence(n int, conf float64, text string) []Line {
	out := make([]Line, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Line{Text: text, Confidence: conf})
	}
	return out
}

func TestEstimateEmptyResultScoresZero(t *testing.T) {
	e := NewEstimator(8, 150)
	score := e.Estimate(Result{})
	assert.Zero(t, score.Combined)
	assert.Zero(t, score.Base)
}

func TestEstimateDenseConfidentDocument(t *testing.T) {
	// 10 lines of 20 chars at 0.9 base: density and length both saturate,
	// so combined = 0.5*0.9 + 0.25 + 0.25 = 0.95.
	e := NewEstimator(8, 150)
	res := NewResult(linesWithConfidence(10, 0.9, strings.Repeat("x", 20)))
	require.GreaterOrEqual(t, len(res.FullText), 150)

	score := e.Estimate(res)
	assert.InDelta(t, 0.95, score.Combined, 1e-9)
	assert.InDelta(t, 0.9, score.Base, 1e-9)
	assert.Equal(t, 1.0, score.Density)
	assert.Equal(t, 1.0, score.Length)
}

func TestEstimateSparseRecognitionIsPenalized(t *testing.T) {
	// Confident but sparse: 2 lines, 45 chars total (including the joining
	// newline). Base alone would route to text; the composite must not.
	e := NewEstimator(8, 150)
	res := NewResult([]Line{
		{Text: strings.Repeat("a", 22), Confidence: 0.4},
		{Text: strings.Repeat("b", 22), Confidence: 0.4},
	})
	require.Equal(t, 45, len(res.FullText))

	score := e.Estimate(res)
	// 0.5*0.4 + 0.25*(2/8) + 0.25*(45/150) = 0.3375
	assert.InDelta(t, 0.3375, score.Combined, 1e-9)
	assert.InDelta(t, 0.25, score.Density, 1e-9)
	assert.InDelta(t, 0.3, score.Length, 1e-9)
}

func TestEstimateStaysInUnitInterval(t *testing.T) {
	e := NewEstimator(1, 1)
	res := NewResult(linesWithConfidence(50, 1.0, strings.Repeat("x", 100)))
	score := e.Estimate(res)
	assert.LessOrEqual(t, score.Combined, 1.0)
	assert.GreaterOrEqual(t, score.Combined, 0.0)
}

func TestNewEstimatorAppliesDomainDefaults(t *testing.T) {
	e := NewEstimator(0, -5)
	assert.Equal(t, 8, e.ExpectedMinLines)
	assert.Equal(t, 150, e.ExpectedMinChars)
}
