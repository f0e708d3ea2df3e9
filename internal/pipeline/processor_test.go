package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/common"
	"github.com/docuvault/rxtract/internal/extract"
	"github.com/docuvault/rxtract/internal/recognize"
	"github.com/docuvault/rxtract/internal/record"
)

type stubRecognizer struct {
	res recognize.Result
	err error
}

func (s *stubRecognizer) Recognize(context.Context, string) (recognize.Result, error) {
	return s.res, s.err
}

type stubBackend struct {
	method constants.ExtractionMethod
	cand   record.Candidate
	calls  int

	// failures to burn before succeeding; each consumes one call
	failN   int
	failErr error
}

func (s *stubBackend) Method() constants.ExtractionMethod { return s.method }
func (s *stubBackend) Available() bool                    { return true }

func (s *stubBackend) Extract(context.Context, extract.Input) (record.Candidate, error) {
	s.calls++
	if s.failN > 0 {
		s.failN--
		return record.Candidate{}, s.failErr
	}
	return s.cand, nil
}

type stubAnalyzer struct {
	sig   record.SignatureRecord
	err   error
	calls int
}

func (s *stubAnalyzer) AnalyzeSignature(context.Context, string) (record.SignatureRecord, error) {
	s.calls++
	return s.sig, s.err
}
func (s *stubAnalyzer) Available() bool { return true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func denseResult(conf float64) recognize.Result {
	lines := make([]recognize.Line, 0, 10)
	for i := 0; i < 10; i++ {
		lines = append(lines, recognize.Line{Text: strings.Repeat("x", 20), Confidence: conf})
	}
	return recognize.NewResult(lines)
}

func sparseResult() recognize.Result {
	return recognize.NewResult([]recognize.Line{
		{Text: "Rx", Confidence: 0.4},
		{Text: "John", Confidence: 0.4},
	})
}

func testConfig() common.PipelineConfig {
	return common.PipelineConfig{
		ConfidenceThreshold: 0.6,
		ExpectedMinLines:    8,
		ExpectedMinChars:    150,
		RetryCount:          1,
		StageTimeout:        time.Second,
	}
}

func newTestProcessor(rec recognize.Recognizer, reg extract.Registry, analyzer *stubAnalyzer) *Processor {
	if analyzer == nil {
		return NewProcessor(testLogger(), rec, reg, nil, testConfig())
	}
	return NewProcessor(testLogger(), rec, reg, analyzer, testConfig())
}

func TestProcessRoutesHighConfidenceToTextStructuring(t *testing.T) {
	text := &stubBackend{
		method: constants.MethodTextStructuring,
		cand:   record.Candidate{Items: []record.LineItem{{Name: "Amoxicillin", Dosage: "500mg"}}},
	}
	vision := &stubBackend{method: constants.MethodDirectVision}
	reg := extract.NewRegistry(text, vision, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, &stubAnalyzer{})

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	assert.Equal(t, constants.MethodTextStructuring, rec.Provenance.Method)
	assert.True(t, rec.Provenance.LLMUsed)
	assert.False(t, rec.Provenance.PreferredMethodFailed)
	assert.Equal(t, 1, text.calls)
	assert.Zero(t, vision.calls)
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "Amoxicillin", rec.Items[0].Name)
}

func TestProcessRoutesLowConfidenceToVision(t *testing.T) {
	text := &stubBackend{method: constants.MethodTextStructuring}
	vision := &stubBackend{
		method: constants.MethodDirectVision,
		cand:   record.Candidate{DocumentClass: "handwritten"},
	}
	reg := extract.NewRegistry(text, vision, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: sparseResult()}, reg, &stubAnalyzer{})

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	assert.Equal(t, constants.MethodDirectVision, rec.Provenance.Method)
	assert.Equal(t, constants.ClassHandwritten, rec.DocumentClass)
	assert.Equal(t, 1, vision.calls)
	assert.Zero(t, text.calls)
}

func TestProcessRecognitionFailureFailsDocument(t *testing.T) {
	recErr := common.NewAppError("RECOGNITION_FAILED", "tesseract exploded", common.ErrRecognition)
	reg := extract.NewRegistry(nil, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{err: recErr}, reg, &stubAnalyzer{})

	_, err := proc.Process(context.Background(), "blank.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecognition)
}

func TestProcessRetriesTransientFailureOnce(t *testing.T) {
	text := &stubBackend{
		method:  constants.MethodTextStructuring,
		cand:    record.Candidate{Items: []record.LineItem{{Name: "Metformin"}}},
		failN:   1,
		failErr: common.Transient(fmt.Errorf("status 429")),
	}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, &stubAnalyzer{})

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	assert.Equal(t, 2, text.calls)
	assert.Equal(t, constants.MethodTextStructuring, rec.Provenance.Method)
	assert.False(t, rec.Provenance.PreferredMethodFailed)
}

func TestProcessFallsBackToPatternAfterRetryExhaustion(t *testing.T) {
	// Transient failure on the attempt and its single retry; the document
	// must still complete through the pattern fallback, flagged in
	// provenance.
	text := &stubBackend{
		method:  constants.MethodTextStructuring,
		failN:   2,
		failErr: common.Transient(context.DeadlineExceeded),
	}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, &stubAnalyzer{})

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	assert.Equal(t, 2, text.calls)
	assert.Equal(t, constants.MethodPatternFallback, rec.Provenance.Method)
	assert.True(t, rec.Provenance.PreferredMethodFailed)
	assert.False(t, rec.Provenance.LLMUsed)
}

func TestProcessTerminalBackendFailureSkipsRetry(t *testing.T) {
	text := &stubBackend{
		method:  constants.MethodTextStructuring,
		failN:   5,
		failErr: errors.New("schema validation failed"),
	}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, &stubAnalyzer{})

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	assert.Equal(t, 1, text.calls, "non-transient failure must not be retried")
	assert.Equal(t, constants.MethodPatternFallback, rec.Provenance.Method)
	assert.True(t, rec.Provenance.PreferredMethodFailed)
}

func TestProcessSignatureAnalyzerRunsRegardlessOfMethod(t *testing.T) {
	name := "Dr. Tran"
	analyzer := &stubAnalyzer{sig: record.SignatureRecord{Present: true, SignerName: &name}}
	text := &stubBackend{method: constants.MethodTextStructuring}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, analyzer)

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	assert.Equal(t, 1, analyzer.calls)
	assert.True(t, rec.Provenance.SignatureAnalyzed)
	require.NotNil(t, rec.Signature)
	assert.True(t, rec.Signature.Present)
	require.NotNil(t, rec.Signature.SignerName)
	assert.Equal(t, "Dr. Tran", *rec.Signature.SignerName)
}

func TestProcessSignatureFailureDegradesNotFails(t *testing.T) {
	analyzer := &stubAnalyzer{err: errors.New("vision backend down")}
	text := &stubBackend{method: constants.MethodTextStructuring}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, analyzer)

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	// Distinguishable from "analyzed and absent": the provenance flag is
	// down while the signature record itself reads as absent.
	assert.False(t, rec.Provenance.SignatureAnalyzed)
	require.NotNil(t, rec.Signature)
	assert.False(t, rec.Signature.Present)
	assert.Nil(t, rec.Signature.SignerName)
}

func TestProcessWithoutAnalyzerSkipsSignatureStage(t *testing.T) {
	text := &stubBackend{method: constants.MethodTextStructuring}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, nil)

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)
	assert.False(t, rec.Provenance.SignatureAnalyzed)
}

func TestProcessIsIdempotent(t *testing.T) {
	mk := func() *Processor {
		text := &stubBackend{
			method: constants.MethodTextStructuring,
			cand: record.Candidate{
				IssueDate: "15/03/2024",
				Patient:   record.Party{record.AttrName: "Nguyen Van A"},
				Items:     []record.LineItem{{Name: "Amoxicillin", Dosage: "500mg"}},
			},
		}
		reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))
		return newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, &stubAnalyzer{})
	}

	first, err := mk().Process(context.Background(), "rx.jpg")
	require.NoError(t, err)
	second, err := mk().Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	// Stage timings are wall clock; everything else must match exactly.
	first.Provenance.Stages = nil
	second.Provenance.Stages = nil
	assert.Equal(t, first, second)
	assert.Equal(t, "2024-03-15", first.IssueDate)
}

func TestProcessRecordsAllEnteredStages(t *testing.T) {
	text := &stubBackend{method: constants.MethodTextStructuring}
	reg := extract.NewRegistry(text, nil, extract.NewPatternBackend(testLogger()))

	proc := newTestProcessor(&stubRecognizer{res: denseResult(0.9)}, reg, &stubAnalyzer{})

	rec, err := proc.Process(context.Background(), "rx.jpg")
	require.NoError(t, err)

	var names []string
	for _, st := range rec.Provenance.Stages {
		names = append(names, st.Stage)
	}
	assert.Equal(t, []string{
		constants.StageRecognize,
		constants.StageRoute,
		constants.StageExtract,
		constants.StageSignature,
		constants.StageReconcile,
	}, names)
}
