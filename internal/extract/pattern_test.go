package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/recognize"
	"github.com/docuvault/rxtract/internal/record"
)

func inputFromText(text string, confidence float64) Input {
	var lines []recognize.Line
	for _, t := range splitLines(text) {
		lines = append(lines, recognize.Line{Text: t, Confidence: confidence})
	}
	return Input{
		Recognition: recognize.NewResult(lines),
		Confidence:  recognize.ConfidenceScore{Combined: confidence, Base: confidence},
	}
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}

const sampleText = `Bệnh viện Bạch Mai
Khoa Nội
Số: 123456
Họ tên: Nguyen Van A
Tuổi: 45
Giới tính: Nam
Địa chỉ: Hà Nội
Chẩn đoán: Viêm họng cấp
Bác sĩ: TS.BS Nguyen Van C
Ngày: 15/03/2024
1. Amoxicillin 500mg x30 viên, ngày 2 lần sau ăn
- Paracetamol 500mg, 20 viên, sau ăn`

func TestPatternBackendParsesLabeledFields(t *testing.T) {
	b := NewPatternBackend(nil)
	cand, err := b.Extract(context.Background(), inputFromText(sampleText, 0.42))
	require.NoError(t, err)

	assert.Equal(t, "123456", cand.PrescriptionNumber)
	assert.Equal(t, "15/03/2024", cand.IssueDate)
	assert.Equal(t, "Viêm họng cấp", cand.Diagnosis)

	require.NotNil(t, cand.Patient)
	assert.Equal(t, "Nguyen Van A", cand.Patient[record.AttrName])
	assert.Equal(t, "45", cand.Patient[record.AttrAge])
	assert.Equal(t, "Nam", cand.Patient[record.AttrGender])
	assert.Equal(t, "Hà Nội", cand.Patient[record.AttrAddress])

	require.NotNil(t, cand.Prescriber)
	assert.Equal(t, "TS.BS", cand.Prescriber[record.AttrTitle])
	assert.Equal(t, "Nguyen Van C", cand.Prescriber[record.AttrName])

	require.NotNil(t, cand.Facility)
	assert.Equal(t, "Bạch Mai", cand.Facility[record.AttrName])

	assert.InDelta(t, 0.42, cand.ModelConfidence, 1e-9)
}

func TestPatternBackendParsesMedicationLines(t *testing.T) {
	b := NewPatternBackend(nil)
	cand, err := b.Extract(context.Background(), inputFromText(sampleText, 0.42))
	require.NoError(t, err)
	require.Len(t, cand.Items, 2)

	first := cand.Items[0]
	assert.Contains(t, first.Name, "Amoxicillin")
	assert.Equal(t, "500mg", first.Dosage)
	assert.Equal(t, "30", first.Quantity)
	assert.Contains(t, first.Frequency, "ngày 2 lần")
	assert.Nil(t, first.Handwritten, "pattern parsing cannot know handwriting")

	second := cand.Items[1]
	assert.Contains(t, second.Name, "Paracetamol")
	assert.Equal(t, "500mg", second.Dosage)
	assert.Equal(t, "20", second.Quantity)
}

func TestPatternBackendKeywordFallbackForUnstructuredLines(t *testing.T) {
	// No numbering, no bullets, one medication keyword only: the first pass
	// finds nothing and the keyword fallback kicks in.
	b := NewPatternBackend(nil)
	cand, err := b.Extract(context.Background(), inputFromText("Vitamin C 1000 thuốc sáng", 0.3))
	require.NoError(t, err)

	require.Len(t, cand.Items, 1)
	assert.Contains(t, cand.Items[0].Name, "Vitamin C")
}

func TestPatternBackendNeverErrorsOnGarbage(t *testing.T) {
	b := NewPatternBackend(nil)
	for _, text := range []string{"", "   ", "!!!###\n@@@", "x"} {
		cand, err := b.Extract(context.Background(), inputFromText(text, 0.1))
		require.NoError(t, err)
		assert.Empty(t, cand.Items)
	}
}

func TestPatternBackendIdentity(t *testing.T) {
	b := NewPatternBackend(nil)
	assert.Equal(t, constants.MethodPatternFallback, b.Method())
	assert.True(t, b.Available())
}

func TestRegistryLookupAndAvailability(t *testing.T) {
	pattern := NewPatternBackend(nil)
	reg := NewRegistry(nil, nil, pattern)

	_, ok := reg.Lookup(constants.MethodTextStructuring)
	assert.False(t, ok)
	assert.False(t, reg.Has(constants.MethodDirectVision))

	got, ok := reg.Lookup(constants.MethodPatternFallback)
	require.True(t, ok)
	assert.Equal(t, pattern, got)
	assert.True(t, reg.Has(constants.MethodPatternFallback))
}
