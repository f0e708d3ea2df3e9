package recognize

import (
	"context"
	"strings"
)

// Box is a word- or line-level bounding box in image pixel coordinates.
type Box struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Line is a single recognized text line with its mean confidence in 0..1.
type Line struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
}

// Result is the output of one text-recognition pass. Treat as immutable
// once built; FullText and LineCount are derived in NewResult.
type Result struct {
	Lines     []Line
	FullText  string
	LineCount int
}

// NewResult derives FullText and LineCount from lines.
func NewResult(lines []Line) Result {
	texts := make([]string, 0, len(lines))
	for _, ln := range lines {
		texts = append(texts, ln.Text)
	}
	return Result{
		Lines:     lines,
		FullText:  strings.Join(texts, "\n"),
		LineCount: len(lines),
	}
}

// Recognizer is the external text-recognition collaborator.
// A totally unreadable image (no detected text) is a fatal failure for the
// document and must return an error wrapping common.ErrRecognition.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (Result, error)
}
