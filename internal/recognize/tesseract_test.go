package recognize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/rxtract/internal/common"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"4\t1\t1\t1\t1\t0\t10\t10\t200\t20\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t10\t10\t80\t20\t96\tCITY\n" +
	"5\t1\t1\t1\t1\t2\t100\t10\t110\t20\t92\tHOSPITAL\n" +
	"5\t1\t1\t1\t2\t1\t10\t40\t90\t18\t88\tPatient:\n" +
	"5\t1\t1\t1\t2\t2\t110\t40\t120\t18\t84\tJohn\n" +
	"5\t1\t1\t1\t2\t3\t240\t40\t60\t18\t80\tDoe\n"

func TestParseTSVGroupsWordsIntoLines(t *testing.T) {
	res := ParseTSV(sampleTSV)
	require.Equal(t, 2, res.LineCount)

	assert.Equal(t, "CITY HOSPITAL", res.Lines[0].Text)
	assert.InDelta(t, 0.94, res.Lines[0].Confidence, 1e-9) // (96+92)/2/100

	assert.Equal(t, "Patient: John Doe", res.Lines[1].Text)
	assert.InDelta(t, 0.84, res.Lines[1].Confidence, 1e-9) // (88+84+80)/3/100

	assert.Equal(t, "CITY HOSPITAL\nPatient: John Doe", res.FullText)
}

func TestParseTSVUnionsWordBoxes(t *testing.T) {
	res := ParseTSV(sampleTSV)
	require.Equal(t, 2, res.LineCount)

	box := res.Lines[1].Box
	assert.Equal(t, 10, box.Left)
	assert.Equal(t, 40, box.Top)
	assert.Equal(t, 290, box.Width) // 240+60-10
	assert.Equal(t, 18, box.Height)
}

func TestParseTSVSkipsStructuralAndMalformedRows(t *testing.T) {
	tsv := "header\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t0\t0\t-1\t\n" + // structural row
		"bad row without tabs\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\tnot-a-number\tword\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\tAmoxicillin\n"
	res := ParseTSV(tsv)
	require.Equal(t, 1, res.LineCount)
	assert.Equal(t, "Amoxicillin", res.Lines[0].Text)
	assert.InDelta(t, 0.70, res.Lines[0].Confidence, 1e-9)
}

func TestParseTSVEmptyInput(t *testing.T) {
	res := ParseTSV("")
	assert.Zero(t, res.LineCount)
	assert.Empty(t, strings.TrimSpace(res.FullText))
}

type stubRunner struct {
	stdout string
	stderr string
	err    error

	gotName string
	gotArgs []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.gotName = name
	s.gotArgs = args
	return []byte(s.stdout), []byte(s.stderr), s.err
}

func TestRecognizeBuildsTesseractInvocation(t *testing.T) {
	runner := &stubRunner{stdout: sampleTSV}
	rec := NewTesseractRecognizer(Config{Lang: "vie", PSM: 6, OEM: 1, TessdataDir: "/opt/tessdata"}, nil)
	rec.runner = runner

	res, err := rec.Recognize(context.Background(), "rx.jpg")
	require.NoError(t, err)
	assert.Equal(t, 2, res.LineCount)

	assert.Equal(t, "tesseract", runner.gotName)
	assert.Equal(t, []string{
		"rx.jpg", "stdout", "-l", "vie",
		"--psm", "6", "--oem", "1",
		"--tessdata-dir", "/opt/tessdata",
		"tsv",
	}, runner.gotArgs)
}

func TestRecognizeCommandFailureWrapsRecognitionError(t *testing.T) {
	rec := NewTesseractRecognizer(Config{}, nil)
	rec.runner = &stubRunner{stderr: "cannot open image", err: errors.New("exit status 1")}

	_, err := rec.Recognize(context.Background(), "missing.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecognition)
	assert.Contains(t, err.Error(), "cannot open image")
}

func TestRecognizeEmptyOutputIsRecognitionFailure(t *testing.T) {
	rec := NewTesseractRecognizer(Config{}, nil)
	rec.runner = &stubRunner{stdout: "level\tpage\n"}

	_, err := rec.Recognize(context.Background(), "blank.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrRecognition)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "RECOGNITION_EMPTY", appErr.Code)
}
