package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuvault/rxtract/internal/async"
	"github.com/docuvault/rxtract/internal/common"
	"github.com/docuvault/rxtract/internal/export"
	"github.com/docuvault/rxtract/internal/extract"
	"github.com/docuvault/rxtract/internal/llm/openai"
	"github.com/docuvault/rxtract/internal/pipeline"
	"github.com/docuvault/rxtract/internal/recognize"
)

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "", "directory of prescription images to process (required)")
		out     = flag.String("out", "", "output XLSX file path (defaults to <dir parent>/prescriptions.xlsx)")
		jsonDir = flag.String("json-dir", "", "also write one JSON record per document into this directory")
		workers = flag.Int("workers", 0, "worker count (defaults to RX_WORKERS)")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "prescriptions.xlsx")
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *workers <= 0 {
		*workers = cfg.Pipeline.Workers
	}

	paths, err := listImages(*dir)
	if err != nil {
		logger.Error("failed to scan directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		logger.Warn("no images found", "dir", *dir)
		return
	}
	logger.Info("starting batch", "dir", *dir, "documents", len(paths), "workers", *workers)

	proc := buildProcessor(cfg, logger)

	var (
		mu       sync.Mutex
		outcomes []async.Outcome
	)
	queue := async.NewProcessorQueue(proc, func(o async.Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
	}, logger,
		async.WithWorkers(*workers),
		async.WithQueueSize(len(paths)),
		async.WithProcessTimeout(cfg.Pipeline.StageTimeout*4),
	)

	ctx := context.Background()
	for _, p := range paths {
		_ = queue.Enqueue(ctx, async.Job{Path: p})
	}

	drainCtx, cancel := context.WithTimeout(ctx, time.Duration(len(paths))*cfg.Pipeline.StageTimeout*4)
	queue.Shutdown(drainCtx)
	cancel()

	// Stable report order regardless of worker completion order.
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Path < outcomes[j].Path })

	processed, failures := 0, 0
	rows := make([]export.Row, 0, len(outcomes))
	for _, o := range outcomes {
		rows = append(rows, export.Row{Path: o.Path, Record: o.Record, Err: o.Err})
		if o.Err != nil {
			failures++
		} else {
			processed++
		}
	}

	svc := export.NewService(logger)
	xlsxBytes, err := svc.BatchXLSX(rows)
	if err != nil {
		logger.Error("failed to build XLSX report", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0o644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}

	if *jsonDir != "" {
		for _, row := range rows {
			if row.Err != nil {
				continue
			}
			if _, err := svc.WriteJSON(*jsonDir, row); err != nil {
				logger.Error("failed to write JSON record", "path", row.Path, "error", err)
			}
		}
	}

	logger.Info("batch complete",
		"documents", len(paths),
		"processed", processed,
		"failures", failures,
		"output", *out,
	)
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// buildProcessor wires the recognizer, the backend registry and the
// signature analyzer from configuration.
func buildProcessor(cfg *common.Config, logger *slog.Logger) *pipeline.Processor {
	recognizer := recognize.NewTesseractRecognizer(recognize.Config{
		Tesseract:   cfg.Recognizer.Tesseract,
		Lang:        cfg.Recognizer.Lang,
		TessdataDir: cfg.Recognizer.TessdataDir,
		PSM:         cfg.Recognizer.PSM,
		OEM:         cfg.Recognizer.OEM,
	}, logger)

	var (
		text     extract.Backend
		vision   extract.Backend
		analyzer *openai.Client
	)
	if cfg.LLM.APIKey != "" {
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			VisionModel: cfg.LLM.VisionModel,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		text = extract.NewTextBackend(client, logger)
		vision = extract.NewVisionBackend(client, logger)
		analyzer = client
		logger.Info("language-model backends initialized",
			"model", cfg.LLM.Model, "vision_model", cfg.LLM.VisionModel)
	} else {
		logger.Warn("OPENAI_API_KEY not configured, extraction degrades to pattern fallback")
	}

	registry := extract.NewRegistry(text, vision, extract.NewPatternBackend(logger))

	if analyzer != nil {
		return pipeline.NewProcessor(logger, recognizer, registry, analyzer, cfg.Pipeline)
	}
	return pipeline.NewProcessor(logger, recognizer, registry, nil, cfg.Pipeline)
}
