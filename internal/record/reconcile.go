package record

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/recognize"
)

// ReconcileInput carries everything one document produced across stages.
type ReconcileInput struct {
	Candidate Candidate

	// Signature is the dedicated analyzer's output; nil when the analysis
	// was not performed (analyzer unavailable or failed).
	Signature         *SignatureRecord
	SignatureAnalyzed bool

	Confidence            recognize.ConfidenceScore
	Method                constants.ExtractionMethod
	Stages                []StageTiming
	LLMUsed               bool
	PreferredMethodFailed bool
}

// Reconciler merges stage outputs into one canonical, schema-valid record.
// It is the single place where "best effort, never fail the whole document
// for a partial field defect" is enforced: bad items are dropped, bad dates
// are nulled, out-of-range confidences are clamped, each with a recorded
// data-quality warning and never an error.
type Reconciler struct {
	Logger *slog.Logger
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{Logger: logger}
}

func (r *Reconciler) Reconcile(in ReconcileInput) CanonicalRecord {
	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		warnings = append(warnings, msg)
		r.Logger.Warn("reconcile.data_quality", "warning", msg)
	}

	cand := in.Candidate

	items := make([]LineItem, 0, len(cand.Items))
	for _, it := range cand.Items {
		if strings.TrimSpace(it.Name) == "" {
			warn("dropped line item with empty name")
			continue
		}
		it.Name = strings.TrimSpace(it.Name)
		items = append(items, it)
	}

	issueDate := normalizeDate(cand.IssueDate, "issue_date", warn)
	followUp := normalizeDate(cand.FollowUpDate, "follow_up_date", warn)

	sig := normalizeSignature(in.Signature, in.SignatureAnalyzed, warn)

	prov := Provenance{
		Method:                in.Method,
		RoutingConfidence:     clampScore(in.Confidence, warn),
		Stages:                in.Stages,
		LLMUsed:               in.LLMUsed,
		PreferredMethodFailed: in.PreferredMethodFailed,
		SignatureAnalyzed:     in.SignatureAnalyzed,
	}

	rec := CanonicalRecord{
		DocumentClass:      classify(cand.DocumentClass, in.Confidence, warn),
		PrescriptionNumber: strings.TrimSpace(cand.PrescriptionNumber),
		IssueDate:          issueDate,
		Patient:            cleanParty(cand.Patient),
		Prescriber:         cleanParty(cand.Prescriber),
		Facility:           cleanParty(cand.Facility),
		Diagnosis:          strings.TrimSpace(cand.Diagnosis),
		Items:              items,
		Signature:          sig,
		Handwriting:        cand.Handwriting,
		Notes:              strings.TrimSpace(cand.Notes),
		FollowUpDate:       followUp,
		Provenance:         prov,
	}
	rec.Provenance.Warnings = warnings
	return rec
}

// classify derives the document class from explicit backend output when it
// names a known class, else from the recognition base confidence alone.
// File-path conventions are never consulted.
func classify(explicit string, score recognize.ConfidenceScore, warn func(string, ...any)) constants.DocumentClass {
	explicit = strings.ToLower(strings.TrimSpace(explicit))
	if explicit != "" {
		if constants.IsDocumentClass(explicit) {
			return constants.DocumentClass(explicit)
		}
		warn("unknown document class %q, deriving from confidence", explicit)
	}
	switch {
	case score.Base < 0.5:
		return constants.ClassHandwritten
	case score.Base < 0.7:
		return constants.ClassMixed
	default:
		return constants.ClassPrinted
	}
}

func normalizeDate(s, field string, warn func(string, ...any)) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	canon, ok := CanonicalDate(s)
	if !ok {
		warn("unparseable %s %q, dropped", field, s)
		return ""
	}
	return canon
}

// normalizeSignature enforces the absence invariant: Present=false means
// every other field is nil. The default when the analyzer did not run is an
// absent signature, distinguished from "looked and found nothing" by the
// provenance SignatureAnalyzed flag.
func normalizeSignature(sig *SignatureRecord, analyzed bool, warn func(string, ...any)) *SignatureRecord {
	if sig == nil || !analyzed {
		return &SignatureRecord{Present: false}
	}
	out := *sig
	if !out.Present {
		return &SignatureRecord{Present: false}
	}
	if out.SignerName != nil && strings.TrimSpace(*out.SignerName) == "" {
		out.SignerName = nil
	}
	if out.SignerTitle != nil && strings.TrimSpace(*out.SignerTitle) == "" {
		out.SignerTitle = nil
	}
	if out.Location != nil && strings.TrimSpace(*out.Location) == "" {
		out.Location = nil
	}
	if out.Confidence != nil {
		c := clamp01(*out.Confidence)
		if c != *out.Confidence {
			warn("signature confidence %v out of range, clamped", *out.Confidence)
		}
		out.Confidence = &c
	}
	return &out
}

func cleanParty(p Party) Party {
	if len(p) == 0 {
		return nil
	}
	out := make(Party, len(p))
	for k, v := range p {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[strings.TrimSpace(k)] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func clampScore(s recognize.ConfidenceScore, warn func(string, ...any)) recognize.ConfidenceScore {
	orig := s
	s.Combined = clamp01(s.Combined)
	s.Base = clamp01(s.Base)
	s.Density = clamp01(s.Density)
	s.Length = clamp01(s.Length)
	if s != orig {
		warn("confidence score out of range, clamped")
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
