package record

import (
	"github.com/docuvault/rxtract/constants"
	"github.com/docuvault/rxtract/internal/recognize"
)

// Party is a set of named optional string attributes describing one party on
// the document (patient, prescriber, facility). Absent attributes are absent
// keys, never empty strings.
type Party map[string]string

// Common party attribute keys.
const (
	AttrName       = "name"
	AttrAge        = "age"
	AttrGender     = "gender"
	AttrAddress    = "address"
	AttrPhone      = "phone"
	AttrIdentifier = "identifier"
	AttrTitle      = "title"
	AttrSpecialty  = "specialty"
	AttrLicense    = "license_number"
	AttrDepartment = "department"
)

// LineItem is one prescribed medication entry. Name is required; an item
// with an empty name is dropped by the reconciler, not nulled.
type LineItem struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	Frequency    string `json:"frequency,omitempty"`
	Duration     string `json:"duration,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Handwritten  *bool  `json:"is_handwritten,omitempty"`
}

// SignatureRecord describes a detected (or absent) signature. When Present
// is false every other field must be nil: "we looked and found nothing" is
// an empty record, not a record of empty strings.
type SignatureRecord struct {
	Present     bool     `json:"is_present"`
	SignerName  *string  `json:"signer_name,omitempty"`
	SignerTitle *string  `json:"signer_title,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Legible     *bool    `json:"is_legible,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

// HandwritingAssessment summarizes handwritten content found by a vision
// backend.
type HandwritingAssessment struct {
	HasHandwrittenContent bool     `json:"has_handwritten_content"`
	Sections              []string `json:"handwritten_sections,omitempty"`
	UnclearText           []string `json:"unclear_text,omitempty"`
	Interpretation        string   `json:"llm_interpretation,omitempty"`
}

// StageTiming is elapsed wall time for one pipeline stage that was entered.
type StageTiming struct {
	Stage     string `json:"stage"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Provenance records how a canonical record was produced: which method
// actually ran, at what routing confidence, with what timings, and whether
// any stage degraded.
type Provenance struct {
	Method                constants.ExtractionMethod `json:"extraction_method"`
	RoutingConfidence     recognize.ConfidenceScore  `json:"routing_confidence"`
	Stages                []StageTiming              `json:"stages"`
	LLMUsed               bool                       `json:"llm_used"`
	PreferredMethodFailed bool                       `json:"preferred_method_failed,omitempty"`
	SignatureAnalyzed     bool                       `json:"signature_analyzed"`
	Warnings              []string                   `json:"warnings,omitempty"`
}

// Candidate is a backend's pre-reconciliation output. Field tags match the
// JSON shape requested from the language-model backends, so a validated
// response unmarshals directly into it.
type Candidate struct {
	DocumentClass      string                 `json:"document_class,omitempty"`
	PrescriptionNumber string                 `json:"prescription_number,omitempty"`
	IssueDate          string                 `json:"issue_date,omitempty"`
	Patient            Party                  `json:"patient,omitempty"`
	Prescriber         Party                  `json:"prescriber,omitempty"`
	Facility           Party                  `json:"facility,omitempty"`
	Diagnosis          string                 `json:"diagnosis,omitempty"`
	Items              []LineItem             `json:"medications,omitempty"`
	Signature          *SignatureRecord       `json:"signature,omitempty"`
	Handwriting        *HandwritingAssessment `json:"handwriting_analysis,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	FollowUpDate       string                 `json:"follow_up_date,omitempty"`
	ModelConfidence    float64                `json:"confidence,omitempty"`
}

// CanonicalRecord is the pipeline's output aggregate for one document.
// Constructed fresh per document by the reconciler and handed immutably to
// the caller; the pipeline keeps no record state after returning it.
type CanonicalRecord struct {
	DocumentClass      constants.DocumentClass `json:"document_class"`
	PrescriptionNumber string                  `json:"prescription_number,omitempty"`
	IssueDate          string                  `json:"issue_date,omitempty"`
	Patient            Party                   `json:"patient,omitempty"`
	Prescriber         Party                   `json:"prescriber,omitempty"`
	Facility           Party                   `json:"facility,omitempty"`
	Diagnosis          string                  `json:"diagnosis,omitempty"`
	Items              []LineItem              `json:"medications"`
	Signature          *SignatureRecord        `json:"signature,omitempty"`
	Handwriting        *HandwritingAssessment  `json:"handwriting_analysis,omitempty"`
	Notes              string                  `json:"notes,omitempty"`
	FollowUpDate       string                  `json:"follow_up_date,omitempty"`
	Provenance         Provenance              `json:"provenance"`
}
