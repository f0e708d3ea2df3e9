package recognize

// ConfidenceScore is the composite routing signal plus the component
// sub-scores that produced it. Components are retained for audit and are
// never recomputed downstream.
type ConfidenceScore struct {
	Combined float64 `json:"combined"`
	Base     float64 `json:"base"`
	Density  float64 `json:"density"`
	Length   float64 `json:"length"`
}

// Estimator turns a recognition result into a composite confidence.
//
// Raw per-character confidence is a poor proxy for "is this document
// legible": sparse, confident-but-wrong recognition on handwriting must not
// score as well as dense, confident recognition on print. The density and
// length components penalize recognition that found less content than a
// well-recognized prescription is expected to carry.
type Estimator struct {
	// ExpectedMinLines and ExpectedMinChars are domain calibration knobs,
	// not universal constants.
	ExpectedMinLines int
	ExpectedMinChars int
}

// NewEstimator applies the domain defaults (8 lines, 150 chars) for any
// non-positive knob.
func NewEstimator(expectedMinLines, expectedMinChars int) *Estimator {
	if expectedMinLines <= 0 {
		expectedMinLines = 8
	}
	if expectedMinChars <= 0 {
		expectedMinChars = 150
	}
	return &Estimator{ExpectedMinLines: expectedMinLines, ExpectedMinChars: expectedMinChars}
}

// Estimate computes 0.5*base + 0.25*density + 0.25*length, clamped to [0,1].
// A degenerate (empty) result scores 0.
func (e *Estimator) Estimate(res Result) ConfidenceScore {
	if res.LineCount == 0 {
		return ConfidenceScore{}
	}

	var sum float64
	for _, ln := range res.Lines {
		sum += ln.Confidence
	}
	base := sum / float64(res.LineCount)

	density := float64(res.LineCount) / float64(e.ExpectedMinLines)
	if density > 1.0 {
		density = 1.0
	}
	length := float64(len(res.FullText)) / float64(e.ExpectedMinChars)
	if length > 1.0 {
		length = 1.0
	}

	combined := 0.5*base + 0.25*density + 0.25*length
	if combined > 1.0 {
		combined = 1.0
	}
	if combined < 0 {
		combined = 0
	}
	return ConfidenceScore{Combined: combined, Base: base, Density: density, Length: length}
}
