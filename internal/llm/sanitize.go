package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// NormalizeAndSanitizeJSON
// - Renames known synonyms (doctor -> prescriber, hospital -> facility)
// - Drops null/empty optionals
// - Coerces numeric party attributes (e.g., age) to strings
// - Removes unknown keys (strict additionalProperties = false friendliness)
// It does NOT repair structurally broken output; a response that still fails
// schema validation after this pass is an extraction failure.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite existing value if already present
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("doctor", "prescriber")
	renamed("physician", "prescriber")
	renamed("hospital", "facility")
	renamed("clinic", "facility")
	renamed("doctor_signature", "signature")
	renamed("prescription_type", "document_class")
	renamed("document_type", "document_class")
	renamed("medicines", "medications")
	renamed("confidence_score", "confidence")

	// 2) sanitize party sub-objects: keep string-coercible attrs only
	for _, party := range []string{"patient", "prescriber", "facility"} {
		v, ok := m[party]
		if !ok {
			continue
		}
		obj, ok := v.(map[string]any)
		if !ok {
			delete(m, party)
			dropped = append(dropped, party+"(type)")
			continue
		}
		for k, av := range obj {
			switch t := av.(type) {
			case string:
				s := strings.TrimSpace(t)
				if s == "" {
					delete(obj, k)
					dropped = append(dropped, party+"."+k+"(empty)")
				} else {
					obj[k] = s
				}
			case float64:
				obj[k] = trimFloat(t)
			case bool:
				obj[k] = fmt.Sprintf("%t", t)
			case nil:
				delete(obj, k)
				dropped = append(dropped, party+"."+k+"(null)")
			default:
				delete(obj, k)
				dropped = append(dropped, party+"."+k+"(type)")
			}
		}
		if len(obj) == 0 {
			delete(m, party)
		}
	}

	// 3) sanitize medications: null/empty optionals out, numbers to strings
	if v, ok := m["medications"]; ok {
		items, ok := v.([]any)
		if !ok {
			delete(m, "medications")
			dropped = append(dropped, "medications(type)")
		} else {
			cleaned := make([]any, 0, len(items))
			for i, iv := range items {
				obj, ok := iv.(map[string]any)
				if !ok {
					dropped = append(dropped, fmt.Sprintf("medications[%d](type)", i))
					continue
				}
				for k, av := range obj {
					if k == "is_handwritten" {
						if _, isBool := av.(bool); !isBool {
							delete(obj, k)
							dropped = append(dropped, fmt.Sprintf("medications[%d].%s(type)", i, k))
						}
						continue
					}
					switch t := av.(type) {
					case string:
						s := strings.TrimSpace(t)
						if s == "" {
							delete(obj, k)
						} else {
							obj[k] = s
						}
					case float64:
						obj[k] = trimFloat(t)
					case nil:
						delete(obj, k)
					default:
						delete(obj, k)
						dropped = append(dropped, fmt.Sprintf("medications[%d].%s(type)", i, k))
					}
				}
				cleaned = append(cleaned, obj)
			}
			m["medications"] = cleaned
		}
	} else {
		// schema requires the array; an empty one is a valid "nothing found"
		m["medications"] = []any{}
	}

	// 4) drop null / "" top-level optionals
	for k, v := range m {
		switch t := v.(type) {
		case nil:
			delete(m, k)
			dropped = append(dropped, k+"(null)")
		case string:
			s := strings.TrimSpace(t)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		}
	}

	// 5) normalize document_class lightly
	if v, ok := m["document_class"].(string); ok {
		m["document_class"] = strings.ToLower(strings.TrimSpace(v))
	}

	// 6) remove unknown keys (everything not in the schema set below)
	allowed := map[string]struct{}{
		"document_class": {}, "prescription_number": {}, "issue_date": {},
		"patient": {}, "prescriber": {}, "facility": {},
		"diagnosis": {}, "medications": {}, "signature": {},
		"handwriting_analysis": {}, "notes": {}, "follow_up_date": {},
		"confidence": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
