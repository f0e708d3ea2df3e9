package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/common"
	"github.com/docuvault/rxtract/internal/extract"
	"github.com/docuvault/rxtract/internal/llm"
	"github.com/docuvault/rxtract/internal/recognize"
	"github.com/docuvault/rxtract/internal/record"
)

// Processor runs one document through recognize, route, extract, signature
// analysis and reconciliation. All per-document state is local to Process;
// the same input always yields the same canonical record, so reprocessing a
// document is safe.
type Processor struct {
	logger     *slog.Logger
	recognizer recognize.Recognizer
	estimator  *recognize.Estimator
	backends   extract.Registry
	analyzer   llm.SignatureAnalyzer
	reconciler *record.Reconciler
	cfg        common.PipelineConfig
}

func NewProcessor(
	logger *slog.Logger,
	recognizer recognize.Recognizer,
	backends extract.Registry,
	analyzer llm.SignatureAnalyzer,
	cfg common.PipelineConfig,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:     logger,
		recognizer: recognizer,
		estimator:  recognize.NewEstimator(cfg.ExpectedMinLines, cfg.ExpectedMinChars),
		backends:   backends,
		analyzer:   analyzer,
		reconciler: record.NewReconciler(logger),
		cfg:        cfg,
	}
}

// Process runs the full pipeline for one document image. The only failures
// that surface as errors are recognition failures (a totally unreadable
// image) and caller cancellation; extraction and signature defects degrade
// into provenance instead.
func (p *Processor) Process(ctx context.Context, path string) (record.CanonicalRecord, error) {
	docID := uuid.New().String()
	ctx = common.WithDocumentID(ctx, docID)
	log := p.logger.With("doc_id", docID, "path", path)
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		log = log.With("req_id", rid)
	}

	var stages []record.StageTiming
	timed := func(stage string, start time.Time) {
		stages = append(stages, record.StageTiming{
			Stage:     stage,
			ElapsedMS: time.Since(start).Milliseconds(),
		})
	}

	p.setStatus(log, constants.StatusReceived)

	// Recognize. The one stage whose failure fails the document.
	p.setStatus(log, constants.StatusRecognizing)
	recStart := time.Now()
	res, err := p.recognize(ctx, path)
	timed(constants.StageRecognize, recStart)
	if err != nil {
		p.setStatus(log, constants.StatusFailed)
		log.Error("pipeline.recognize.failed", "error", err)
		return record.CanonicalRecord{}, err
	}

	// Route on the composite confidence.
	p.setStatus(log, constants.StatusRouting)
	routeStart := time.Now()
	score := p.estimator.Estimate(res)
	method := Route(score.Combined, RouteOptions{
		ForceVision:     p.cfg.ForceVision,
		VisionAvailable: p.backends.Has(constants.MethodDirectVision),
		TextAvailable:   p.backends.Has(constants.MethodTextStructuring),
		Threshold:       p.cfg.ConfidenceThreshold,
	})
	timed(constants.StageRoute, routeStart)
	log.Info("pipeline.routed",
		"method", method,
		"confidence", score.Combined,
		"base", score.Base,
		"lines", res.LineCount,
		"chars", len(res.FullText),
	)

	// Extract with the routed backend; degrade to the pattern fallback on
	// failure rather than failing the document.
	p.setStatus(log, constants.StatusExtracting)
	extStart := time.Now()
	in := extract.Input{ImagePath: path, Recognition: res, Confidence: score}
	cand, usedMethod, preferredFailed, err := p.extract(ctx, log, method, in)
	timed(constants.StageExtract, extStart)
	if err != nil {
		// Only caller cancellation reaches here; the fallback chain absorbs
		// everything else.
		p.setStatus(log, constants.StatusFailed)
		return record.CanonicalRecord{}, err
	}

	// Signature analysis is always a fresh vision call, independent of the
	// extraction method. Its failure is recorded, never fatal.
	p.setStatus(log, constants.StatusAnalyzingSignature)
	sigStart := time.Now()
	sig, analyzed := p.analyzeSignature(ctx, log, path)
	timed(constants.StageSignature, sigStart)

	p.setStatus(log, constants.StatusReconciling)
	recoStart := time.Now()
	rec := p.reconciler.Reconcile(record.ReconcileInput{
		Candidate:             cand,
		Signature:             sig,
		SignatureAnalyzed:     analyzed,
		Confidence:            score,
		Method:                usedMethod,
		Stages:                stages,
		LLMUsed:               extract.UsesLLM(usedMethod),
		PreferredMethodFailed: preferredFailed,
	})
	rec.Provenance.Stages = append(rec.Provenance.Stages, record.StageTiming{
		Stage:     constants.StageReconcile,
		ElapsedMS: time.Since(recoStart).Milliseconds(),
	})

	p.setStatus(log, constants.StatusDone)
	log.Info("pipeline.done",
		"method", usedMethod,
		"medications", len(rec.Items),
		"document_class", rec.DocumentClass,
		"preferred_method_failed", preferredFailed,
		"warnings", len(rec.Provenance.Warnings),
	)
	return rec, nil
}

func (p *Processor) setStatus(log *slog.Logger, s constants.DocStatus) {
	log.Info("pipeline.status", "status", s)
}

func (p *Processor) recognize(ctx context.Context, path string) (recognize.Result, error) {
	ctx, cancel := p.stageCtx(ctx)
	defer cancel()
	return p.recognizer.Recognize(ctx, path)
}

// extract runs the routed backend with one retry on transient failure, then
// walks the fallback chain down to the pattern backend. Returns the method
// that actually produced the candidate.
func (p *Processor) extract(
	ctx context.Context,
	log *slog.Logger,
	method constants.ExtractionMethod,
	in extract.Input,
) (record.Candidate, constants.ExtractionMethod, bool, error) {
	backend, ok := p.backends.Lookup(method)
	if !ok {
		// Routing already checked availability; an unwired method here means
		// the registry was built without a pattern backend.
		log.Error("pipeline.extract.no_backend", "method", method)
		method = constants.MethodPatternFallback
		if backend, ok = p.backends.Lookup(method); !ok {
			return record.Candidate{}, method, false, fmt.Errorf("no extraction backend wired for %s", method)
		}
	}

	cand, err := p.attempt(ctx, log, backend, in)
	if err == nil {
		return cand, method, false, nil
	}
	if ctx.Err() != nil {
		return record.Candidate{}, method, false, ctx.Err()
	}
	if method == constants.MethodPatternFallback {
		// The anchor backend only errors on cancellation, handled above.
		return record.Candidate{}, method, false, err
	}

	log.Warn("pipeline.extract.preferred_failed",
		"method", method, "error", err, "fallback", constants.MethodPatternFallback)

	fallback, _ := p.backends.Lookup(constants.MethodPatternFallback)
	cand, err = p.attempt(ctx, log, fallback, in)
	if err != nil {
		return record.Candidate{}, constants.MethodPatternFallback, true, err
	}
	return cand, constants.MethodPatternFallback, true, nil
}

// attempt runs one backend with per-attempt stage timeouts, retrying
// transient failures up to the configured count.
func (p *Processor) attempt(
	ctx context.Context,
	log *slog.Logger,
	backend extract.Backend,
	in extract.Input,
) (record.Candidate, error) {
	var lastErr error
	for i := 0; i <= p.cfg.RetryCount; i++ {
		attemptCtx, cancel := p.stageCtx(ctx)
		cand, err := backend.Extract(attemptCtx, in)
		cancel()
		if err == nil {
			return cand, nil
		}
		lastErr = err
		if ctx.Err() != nil || !common.IsTransient(err) {
			break
		}
		log.Warn("pipeline.extract.retry",
			"method", backend.Method(), "attempt", i+1, "error", err)
	}
	return record.Candidate{}, lastErr
}

// analyzeSignature returns the analyzer's finding and whether the analysis
// actually ran. An unavailable or failing analyzer degrades to (nil, false);
// the reconciler records the distinction in provenance.
func (p *Processor) analyzeSignature(ctx context.Context, log *slog.Logger, path string) (*record.SignatureRecord, bool) {
	if p.analyzer == nil || !p.analyzer.Available() {
		log.Info("pipeline.signature.skipped", "reason", common.ErrSignature.Error())
		return nil, false
	}

	sigCtx, cancel := p.stageCtx(ctx)
	defer cancel()
	sig, err := p.analyzer.AnalyzeSignature(sigCtx, path)
	if err != nil {
		log.Warn("pipeline.signature.failed", "error", err)
		return nil, false
	}
	return &sig, true
}

func (p *Processor) stageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return common.WithTimeout(ctx, p.cfg.StageTimeout)
}
