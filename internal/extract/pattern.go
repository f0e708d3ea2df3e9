package extract

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/record"
)

// Label patterns for the regex fallback, ordered most-specific first. The
// corpus is Vietnamese prescriptions, so Vietnamese labels come alongside
// their English equivalents.
var (
	patientNamePatterns = compileAll(
		`(?im)(?:Họ\s*(?:và\s*)?tên|Họ tên|Tên\s*BN|Bệnh\s*nhân|Patient)[:\s]*([^\n\d]+)`,
		`(?im)(?:HỌ\s*TÊN|HO TEN)[:\s]*([^\n\d]+)`,
	)
	patientAgePatterns = compileAll(
		`(?im)(?:Tuổi|Năm sinh|Age|NS)[:\s]*(\d+)`,
		`(?im)(\d{1,3})\s*(?:tuổi|t\b)`,
	)
	patientGenderPatterns = compileAll(
		`(?im)(?:Giới|Giới tính|GT|Sex|Gender)[:\s]*(Nam|Nữ|Male|Female)`,
		`(?im)\b(Nam|Nữ)\b`,
	)
	patientAddressPatterns = compileAll(
		`(?im)(?:Địa chỉ|Đ/c|Address)[:\s]*([^\n]+)`,
	)
	doctorNamePatterns = compileAll(
		`(?im)(?:Bác sĩ|BS|ThS\.?BS|TS\.?BS|PGS\.?TS|GS\.?TS|Dr\.?)[:\s]*([^\n]+)`,
		`(?im)(?:Người kê đơn|Bác sĩ điều trị)[:\s]*([^\n]+)`,
	)
	facilityPatterns = compileAll(
		`(?im)(?:Bệnh viện|BV|Phòng khám|PK|Hospital|Clinic)[:\s]*([^\n]+)`,
		`(?im)(Bệnh Viện[^\n]+)`,
	)
	departmentPatterns = compileAll(
		`(?im)(?:Khoa|K\.|Department)[:\s]*([^\n]+)`,
	)
	diagnosisPatterns = compileAll(
		`(?im)(?:Chẩn đoán|CĐ|Diagnosis)[:\s]*([^\n]+)`,
		`(?im)(?:CHẨN ĐOÁN)[:\s]*([^\n]+)`,
	)
	datePatterns = compileAll(
		`(?im)(?:Ngày|Date)[:\s]*(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
		`(?im)(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
	)
	numberPatterns = compileAll(
		`(?im)(?:Số|Mã|No\.?|Number)[:\s]*(\d{6,})`,
		`(?im)(?:Mã đơn thuốc)[:\s]*(\d+)`,
	)

	doctorTitleRe     = regexp.MustCompile(`^(ThS\.?BS|TS\.?BS|PGS\.?TS|GS\.?TS|BS|Dr\.?)`)
	numberedItemRe    = regexp.MustCompile(`^\d+[.\)]\s*`)
	bulletItemRe      = regexp.MustCompile(`^[-•*]\s*`)
	dosageRe          = regexp.MustCompile(`(?i)(\d+\s*(?:mg|ml|g|mcg|iu))`)
	quantityRe        = regexp.MustCompile(`(?i)(?:x|SL:?|số lượng:?)\s*(\d+)|(\d+)\s*(?:viên|tablet|capsule|gói|ống)`)
	frequencyPatterns = compileAll(
		`(?i)(ngày\s*(?:uống\s*)?\d+\s*(?:lần|viên)[^\n]*)`,
		`(?i)(sáng\s*\d+\s*viên[^\n]*)`,
		`(?i)((?:sáng|trưa|tối)[^\n]*viên[^\n]*)`,
		`(?i)(sau ăn[^\n]*)`,
		`(?i)(trước ăn[^\n]*)`,
	)

	medicationKeywords = []string{
		"mg", "ml", "viên", "tablet", "capsule", "gói", "ống", "chai",
		"ngày", "lần", "sáng", "trưa", "tối", "sau ăn", "trước ăn",
		"uống", "tiêm", "bôi", "nhỏ",
	}
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(e))
	}
	return out
}

// PatternBackend structures recognized text with label regexes and line
// heuristics. No network, no model; the last-resort path that never errors.
// Low recall by construction, so the reconciler still gets the raw text's
// medication lines even when labels are garbled.
type PatternBackend struct {
	logger *slog.Logger
}

func NewPatternBackend(logger *slog.Logger) *PatternBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &PatternBackend{logger: logger}
}

func (b *PatternBackend) Method() constants.ExtractionMethod {
	return constants.MethodPatternFallback
}

// Available is unconditionally true: the pattern path has no external
// collaborator and anchors every fallback chain.
func (b *PatternBackend) Available() bool { return true }

func (b *PatternBackend) Extract(ctx context.Context, in Input) (record.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return record.Candidate{}, err
	}
	text := in.Recognition.FullText

	cand := record.Candidate{
		PrescriptionNumber: firstMatch(text, numberPatterns),
		IssueDate:          firstMatch(text, datePatterns),
		Patient:            b.parsePatient(text),
		Prescriber:         b.parsePrescriber(text),
		Facility:           b.parseFacility(text),
		Diagnosis:          cleanField(firstMatch(text, diagnosisPatterns)),
		Items:              b.parseMedications(text),
		ModelConfidence:    in.Confidence.Combined,
	}

	b.logger.Info("extract.pattern.ok",
		"medications", len(cand.Items),
		"has_patient", len(cand.Patient) > 0,
		"has_prescriber", len(cand.Prescriber) > 0,
	)
	return cand, nil
}

func (b *PatternBackend) parsePatient(text string) record.Party {
	p := record.Party{}
	setAttr(p, record.AttrName, cleanField(firstMatch(text, patientNamePatterns)))
	setAttr(p, record.AttrAge, firstMatch(text, patientAgePatterns))
	setAttr(p, record.AttrGender, firstMatch(text, patientGenderPatterns))
	setAttr(p, record.AttrAddress, cleanField(firstMatch(text, patientAddressPatterns)))
	if len(p) == 0 {
		return nil
	}
	return p
}

func (b *PatternBackend) parsePrescriber(text string) record.Party {
	name := firstMatch(text, doctorNamePatterns)
	if name == "" {
		return nil
	}
	p := record.Party{}
	if m := doctorTitleRe.FindString(name); m != "" {
		setAttr(p, record.AttrTitle, m)
		name = strings.TrimSpace(name[len(m):])
	}
	setAttr(p, record.AttrName, cleanField(name))
	if len(p) == 0 {
		return nil
	}
	return p
}

func (b *PatternBackend) parseFacility(text string) record.Party {
	p := record.Party{}
	setAttr(p, record.AttrName, cleanField(firstMatch(text, facilityPatterns)))
	setAttr(p, record.AttrDepartment, cleanField(firstMatch(text, departmentPatterns)))
	if len(p) == 0 {
		return nil
	}
	return p
}

func (b *PatternBackend) parseMedications(text string) []record.LineItem {
	var items []record.LineItem
	lines := strings.Split(text, "\n")

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !isMedicationLine(line) {
			continue
		}
		if item, ok := parseMedicationLine(line); ok {
			items = append(items, item)
		}
	}
	if len(items) > 0 {
		return items
	}

	// No structured entries found; fall back to any line carrying at least
	// one medication keyword.
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || !hasKeyword(line, 1) {
			continue
		}
		if item, ok := parseMedicationLine(line); ok {
			items = append(items, item)
		}
	}
	return items
}

func isMedicationLine(line string) bool {
	if numberedItemRe.MatchString(line) {
		return true
	}
	if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "•") || strings.HasPrefix(line, "*") {
		return true
	}
	return hasKeyword(line, 2)
}

func hasKeyword(line string, min int) bool {
	lower := strings.ToLower(line)
	n := 0
	for _, kw := range medicationKeywords {
		if strings.Contains(lower, kw) {
			n++
			if n >= min {
				return true
			}
		}
	}
	return false
}

func parseMedicationLine(line string) (record.LineItem, bool) {
	line = numberedItemRe.ReplaceAllString(line, "")
	line = bulletItemRe.ReplaceAllString(line, "")
	line = strings.TrimSpace(line)
	if len(line) < 3 {
		return record.LineItem{}, false
	}

	item := record.LineItem{Name: line}

	if m := dosageRe.FindStringSubmatch(line); m != nil {
		item.Dosage = m[1]
	}
	if m := quantityRe.FindStringSubmatch(line); m != nil {
		if m[1] != "" {
			item.Quantity = m[1]
		} else {
			item.Quantity = m[2]
		}
	}
	for _, re := range frequencyPatterns {
		if m := re.FindStringSubmatch(line); m != nil {
			item.Frequency = strings.TrimSpace(m[1])
			break
		}
	}

	// Strip the extracted parts back out of the name.
	name := line
	if item.Dosage != "" {
		name = strings.Replace(name, item.Dosage, "", 1)
	}
	if item.Frequency != "" {
		name = strings.Replace(name, item.Frequency, "", 1)
	}
	name = strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))
	name = strings.TrimRight(name, ", ")
	if len(name) < 2 {
		name = line
	}
	item.Name = name

	return item, true
}

var spaceRe = regexp.MustCompile(`\s+`)

// firstMatch returns the first capture of the first pattern that matches.
func firstMatch(text string, patterns []*regexp.Regexp) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// cleanField collapses whitespace and trims trailing label punctuation.
func cleanField(s string) string {
	if s == "" {
		return ""
	}
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	return strings.TrimRight(s, ":, ")
}

func setAttr(p record.Party, key, val string) {
	if val != "" {
		p[key] = val
	}
}
