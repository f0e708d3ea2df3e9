package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/docuvault/rxtract/internal/common"
	"github.com/docuvault/rxtract/internal/extract"
	"github.com/docuvault/rxtract/internal/llm/openai"
	"github.com/docuvault/rxtract/internal/pipeline"
	"github.com/docuvault/rxtract/internal/recognize"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		image       = flag.String("image", "", "prescription image to process (required)")
		out         = flag.String("out", "", "output JSON path (defaults to stdout)")
		forceVision = flag.Bool("force-vision", false, "route to direct vision regardless of confidence")
		verbose     = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *image == "" {
		printError("Error: --image is required\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if *forceVision {
		cfg.Pipeline.ForceVision = true
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	proc := buildProcessor(cfg, logger)

	rec, err := proc.Process(context.Background(), *image)
	if err != nil {
		logger.Error("processing failed", "path", *image, "error", err)
		os.Exit(1)
	}

	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		logger.Error("failed to encode record", "error", err)
		os.Exit(1)
	}
	if *out == "" {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("failed to write output file", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("record written", "path", *out)
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
