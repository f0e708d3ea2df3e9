package extract

import (
	"context"
	"errors"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/common"
	"github.com/docuvault/rxtract/internal/llm"
	"github.com/docuvault/rxtract/internal/recognize"
	"github.com/docuvault/rxtract/internal/record"
)

// Input carries everything any backend may need for one document. Backends
// take what they use and ignore the rest.
type Input struct {
	ImagePath   string
	Recognition recognize.Result
	Confidence  recognize.ConfidenceScore
}

// Backend turns a document into a candidate record by one extraction method.
// Implementations must be safe for concurrent use.
type Backend interface {
	Method() constants.ExtractionMethod
	Available() bool
	Extract(ctx context.Context, in Input) (record.Candidate, error)
}

// UsesLLM reports whether a method involves a language-model call.
func UsesLLM(m constants.ExtractionMethod) bool {
	return m != constants.MethodPatternFallback
}

// Registry maps each extraction method to its backend. Methods with a nil
// backend are unavailable.
type Registry map[constants.ExtractionMethod]Backend

// NewRegistry wires the three backends. Any of text/vision may be nil when
// the corresponding collaborator is not configured; pattern must not be.
func NewRegistry(text, vision, pattern Backend) Registry {
	r := Registry{}
	for _, b := range []Backend{text, vision, pattern} {
		if b != nil {
			r[b.Method()] = b
		}
	}
	return r
}

// Lookup returns the backend for a method, or false when none is wired.
func (r Registry) Lookup(m constants.ExtractionMethod) (Backend, bool) {
	b, ok := r[m]
	return b, ok && b != nil
}

// Has reports whether a method is wired and its backend reports available.
func (r Registry) Has(m constants.ExtractionMethod) bool {
	b, ok := r.Lookup(m)
	return ok && b.Available()
}

// classify folds backend transport failures into the pipeline's retry
// taxonomy: rate limits, 5xx and deadline expiry are transient, everything
// else is terminal for the attempt.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *llm.StatusError
	if errors.As(err, &se) && se.Retryable() {
		return common.Transient(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.Transient(err)
	}
	return err
}
