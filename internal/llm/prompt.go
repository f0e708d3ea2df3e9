package llm

import (
	"fmt"
	"strings"
)

// BuildTextSystemPrompt composes the system message for text-to-JSON
// structuring of recognized prescription text.
func BuildTextSystemPrompt() string {
	parts := []string{
		"You are a medical prescription parser. Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD); convert from any source format (e.g., '30-Aug-2023' becomes '2023-08-30').",
		"Extract patient, prescriber and facility attributes as string maps (name, age, gender, address, phone, identifier, title, specialty, license_number, department).",
		"Extract EVERY medication with name, dosage, quantity, frequency, duration, instructions.",
		"Set 'is_handwritten' per medication only when the text gives an explicit signal; omit it otherwise.",
		"Put any advice or general instructions into 'notes' and a follow-up date into 'follow_up_date'.",
		"Set 'document_class' to one of: handwritten, printed, mixed, digital.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildTextUserPrompt packages the recognized text. Long inputs are
// truncated; prescriptions that matter fit well under the cap.
func BuildTextUserPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Recognized text (first ~6k chars):\n")
	if len(text) > 6000 {
		b.WriteString(text[:6000])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	return b.String()
}

// BuildVisionSystemPrompt composes the system message for direct-vision
// extraction, including handwriting and signature duties.
func BuildVisionSystemPrompt() string {
	parts := []string{
		"You are a medical prescription analyzer that reads HANDWRITTEN text and detects SIGNATURES that text recognition cannot process.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Use ISO-8601 dates (YYYY-MM-DD).",
		"Carefully read all handwritten portions: medication names, dosages, patient names, notes.",
		"Report handwriting findings under 'handwriting_analysis' and list text you could not read under 'unclear_text'.",
		"Mark each medication with 'is_handwritten' true or false.",
		"Set 'document_class' to one of: handwritten, printed, mixed, digital.",
		"Never output null. If a field is not present, omit it.",
	}
	return strings.Join(parts, " ")
}

// BuildVisionUserPrompt attaches the optional recognized-text hint. The
// model is told to trust the image over the hint when they disagree.
func BuildVisionUserPrompt(recognizedText string, confidence float64) string {
	var b strings.Builder
	b.WriteString("Analyze the attached prescription image and extract all information.\n")
	if strings.TrimSpace(recognizedText) != "" {
		if confidence > 0 {
			fmt.Fprintf(&b, "\nText-recognition output (confidence %.0f%%) follows as a hint. ", confidence*100)
		} else {
			b.WriteString("\nText-recognition output follows as a hint. ")
		}
		b.WriteString("Trust the image over this hint wherever they disagree:\n\n")
		hint := recognizedText
		if len(hint) > 4000 {
			hint = hint[:4000] + "\n…(truncated)"
		}
		b.WriteString(hint)
	}
	return b.String()
}

// BuildSignaturePrompt is the dedicated signature-only analysis prompt.
func BuildSignaturePrompt() string {
	return strings.Join([]string{
		"Analyze this document image and focus ONLY on signature detection.",
		"Look for handwritten signatures (cursive writing that looks like a name), signature lines or boxes,",
		"labels like 'Signature' or 'Signed by', and any name printed near or under the signature.",
		"Return ONLY JSON matching the provided schema.",
		"If no signature is present, return {\"is_present\": false} and nothing else; do not emit empty strings.",
	}, " ")
}

// BuildPrescriptionJSONSchema returns a JSON-Schema (draft 2020-12 subset)
// as a generic map. We pass it to the model as an output constraint and use
// it locally to validate; any response that does not match is an extraction
// failure, never silently partially accepted.
func BuildPrescriptionJSONSchema() map[string]any {
	party := map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	}
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":           map[string]any{"type": "string", "minLength": 1},
			"dosage":         map[string]any{"type": "string"},
			"quantity":       map[string]any{"type": "string"},
			"frequency":      map[string]any{"type": "string"},
			"duration":       map[string]any{"type": "string"},
			"instructions":   map[string]any{"type": "string"},
			"is_handwritten": map[string]any{"type": "boolean"},
		},
		"required": []string{"name"},
	}
	handwriting := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"has_handwritten_content": map[string]any{"type": "boolean"},
			"handwritten_sections":    map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"unclear_text":            map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"llm_interpretation":      map[string]any{"type": "string"},
		},
		"required": []string{"has_handwritten_content"},
	}

	props := map[string]any{
		"document_class": map[string]any{
			"type": "string",
			"enum": []string{"handwritten", "printed", "mixed", "digital"},
		},
		"prescription_number":  map[string]any{"type": "string"},
		"issue_date":           map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"patient":              party,
		"prescriber":           party,
		"facility":             party,
		"diagnosis":            map[string]any{"type": "string"},
		"medications":          map[string]any{"type": "array", "items": item},
		"signature":            BuildSignatureJSONSchema(),
		"handwriting_analysis": handwriting,
		"notes":                map[string]any{"type": "string"},
		"follow_up_date":       map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
		"confidence":           map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"medications"},
	}
}

// BuildSignatureJSONSchema is the schema for the signature-only call and
// the inline signature object of the full prescription schema.
func BuildSignatureJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"is_present":   map[string]any{"type": "boolean"},
			"signer_name":  map[string]any{"type": "string"},
			"signer_title": map[string]any{"type": "string"},
			"location":     map[string]any{"type": "string"},
			"is_legible":   map[string]any{"type": "boolean"},
			"confidence":   map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
		},
		"required": []string{"is_present"},
	}
}
