package llm

import (
	"context"

	"github.com/docuvault/rxtract/internal/record"
)

// TextRequest asks a language model to structure recognized text into the
// prescription shape. No image is involved.
type TextRequest struct {
	RecognizedText string
	// Confidence is the composite recognition confidence, forwarded for
	// logging only; the text path never changes behavior on it.
	Confidence float64
}

// VisionRequest asks a vision-capable model to extract directly from the
// image. RecognizedText, when non-empty, is supplied as a hint the model is
// instructed to distrust where it disagrees with the image.
type VisionRequest struct {
	ImagePath      string
	RecognizedText string
	Confidence     float64
}

// TextStructurer is the text-to-JSON structuring collaborator.
type TextStructurer interface {
	StructureText(ctx context.Context, req TextRequest) (record.Candidate, []byte, error)
	Available() bool
}

// VisionExtractor is the image-to-JSON extraction collaborator.
type VisionExtractor interface {
	ExtractImage(ctx context.Context, req VisionRequest) (record.Candidate, []byte, error)
	Available() bool
}

// SignatureAnalyzer is the dedicated signature-detection collaborator.
// Always a fresh vision call: presence and legibility of a handwritten mark
// are not reliably inferable from recognized text.
type SignatureAnalyzer interface {
	AnalyzeSignature(ctx context.Context, imagePath string) (record.SignatureRecord, error)
	Available() bool
}
