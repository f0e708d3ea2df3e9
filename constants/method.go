package constants

// ExtractionMethod identifies which backend produced a document's fields.
// Chosen once per document by the routing policy.
type ExtractionMethod string

// Stable values (these exact strings appear in provenance and exports).
const (
	MethodTextStructuring ExtractionMethod = "text-structuring"
	MethodDirectVision    ExtractionMethod = "direct-vision"
	MethodPatternFallback ExtractionMethod = "pattern-fallback"
)

// DocumentClass classifies the physical nature of a prescription.
type DocumentClass string

const (
	ClassHandwritten DocumentClass = "handwritten"
	ClassPrinted     DocumentClass = "printed"
	ClassMixed       DocumentClass = "mixed"
	ClassDigital     DocumentClass = "digital"
)

// IsDocumentClass reports whether s is one of the known class values.
func IsDocumentClass(s string) bool {
	switch DocumentClass(s) {
	case ClassHandwritten, ClassPrinted, ClassMixed, ClassDigital:
		return true
	}
	return false
}
