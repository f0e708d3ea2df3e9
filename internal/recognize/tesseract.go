package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docuvault/rxtract/internal/common"
)

// Config holds tesseract invocation options.
type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang        string // default "eng"
	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// TesseractRecognizer runs tesseract in TSV mode and groups word rows into
// per-line text with mean word confidence and a union bounding box.
type TesseractRecognizer struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewTesseractRecognizer(cfg Config, logger *slog.Logger) *TesseractRecognizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &TesseractRecognizer{cfg: cfg, runner: execRunner{}, logger: logger}
}

func (t *TesseractRecognizer) Recognize(ctx context.Context, path string) (Result, error) {
	args := []string{path, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", fmt.Sprintf("%d", t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", fmt.Sprintf("%d", t.cfg.OEM))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	// TSV output
	args = append(args, "tsv")

	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return Result{}, common.NewAppError("RECOGNITION_FAILED",
			fmt.Sprintf("tesseract: %s", strings.TrimSpace(string(errb))),
			fmt.Errorf("%w: %w", common.ErrRecognition, err))
	}

	res := ParseTSV(string(out))
	if res.LineCount == 0 || strings.TrimSpace(res.FullText) == "" {
		return Result{}, common.NewAppError("RECOGNITION_EMPTY",
			"no text detected in image", common.ErrRecognition)
	}

	t.logger.Debug("recognize.ok",
		"path", path,
		"lines", res.LineCount,
		"chars", len(res.FullText),
	)
	return res, nil
}

// ParseTSV converts tesseract TSV output into a Result. Word rows with conf
// -1 (structural rows) are skipped; words sharing (page, block, paragraph,
// line) collapse into one Line.
func ParseTSV(tsv string) Result {
	type lineAcc struct {
		words   []string
		confSum float64
		confN   float64
		box     Box
	}

	var order []string
	acc := map[string]*lineAcc{}

	rows := strings.Split(tsv, "\n")
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue // skip header
		}
		cols := strings.Split(row, "\t")
		if len(cols) < 12 {
			continue // malformed row
		}
		confStr := cols[10]
		word := strings.TrimSpace(cols[11])
		if confStr == "" || confStr == "-1" || word == "" {
			continue
		}
		conf, err := strconv.ParseFloat(confStr, 64)
		if err != nil {
			continue
		}
		left, _ := strconv.Atoi(cols[6])
		top, _ := strconv.Atoi(cols[7])
		width, _ := strconv.Atoi(cols[8])
		height, _ := strconv.Atoi(cols[9])

		key := cols[1] + "/" + cols[2] + "/" + cols[3] + "/" + cols[4]
		la, ok := acc[key]
		if !ok {
			la = &lineAcc{box: Box{Left: left, Top: top, Width: width, Height: height}}
			acc[key] = la
			order = append(order, key)
		}
		la.words = append(la.words, word)
		la.confSum += conf
		la.confN++
		la.box = unionBox(la.box, Box{Left: left, Top: top, Width: width, Height: height})
	}

	lines := make([]Line, 0, len(order))
	for _, key := range order {
		la := acc[key]
		text := normalizeLine(strings.Join(la.words, " "))
		if text == "" {
			continue
		}
		lines = append(lines, Line{
			Text:       text,
			Confidence: la.confSum / la.confN / 100.0, // TSV conf is 0..100
			Box:        la.box,
		})
	}
	return NewResult(lines)
}

func unionBox(a, b Box) Box {
	right := max(a.Left+a.Width, b.Left+b.Width)
	bottom := max(a.Top+a.Height, b.Top+b.Height)
	left := min(a.Left, b.Left)
	top := min(a.Top, b.Top)
	return Box{Left: left, Top: top, Width: right - left, Height: bottom - top}
}
