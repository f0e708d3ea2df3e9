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

// VisionBackend extracts directly from the image with a vision-capable
// model. The recognized text, when any exists, rides along as a hint the
// model is told to distrust where it disagrees with the image.
type VisionBackend struct {
	extractor llm.VisionExtractor
	logger    *slog.Logger
}

func NewVisionBackend(e llm.VisionExtractor, logger *slog.Logger) *VisionBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &VisionBackend{extractor: e, logger: logger}
}

func (b *VisionBackend) Method() constants.ExtractionMethod {
	return constants.MethodDirectVision
}

func (b *VisionBackend) Available() bool {
	return b.extractor != nil && b.extractor.Available()
}

func (b *VisionBackend) Extract(ctx context.Context, in Input) (record.Candidate, error) {
	cand, _, err := b.extractor.ExtractImage(ctx, llm.VisionRequest{
		ImagePath:      in.ImagePath,
		RecognizedText: in.Recognition.FullText,
		Confidence:     in.Confidence.Combined,
	})
	if err != nil {
		return record.Candidate{}, fmt.Errorf("%w: %w", common.ErrExtraction, classify(err))
	}
	return cand, nil
}
