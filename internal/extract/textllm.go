package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/common"
	"github.com/docuvault/rxtract/internal/llm"
	"github.com/docuvault/rxtract/internal/record"
)

// TextBackend structures already-recognized text through a language model.
// Cheapest LLM path; used when recognition confidence is high enough that
// re-reading the image would add nothing.
type TextBackend struct {
	structurer llm.TextStructurer
	logger     *slog.Logger
}

func NewTextBackend(s llm.TextStructurer, logger *slog.Logger) *TextBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextBackend{structurer: s, logger: logger}
}

func (b *TextBackend) Method() constants.ExtractionMethod {
	return constants.MethodTextStructuring
}

func (b *TextBackend) Available() bool {
	return b.structurer != nil && b.structurer.Available()
}

func (b *TextBackend) Extract(ctx context.Context, in Input) (record.Candidate, error) {
	cand, _, err := b.structurer.StructureText(ctx, llm.TextRequest{
		RecognizedText: in.Recognition.FullText,
		Confidence:     in.Confidence.Combined,
	})
	if err != nil {
		return record.Candidate{}, fmt.Errorf("%w: %w", common.ErrExtraction, classify(err))
	}
	return cand, nil
}
