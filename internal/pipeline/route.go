package pipeline

import "github.com/docuvault/rxtract/constants"

// RouteOptions are the inputs the routing policy is allowed to see. The
// policy is a pure function of these; it never probes the environment.
type RouteOptions struct {
	// ForceVision overrides confidence-based routing entirely when a vision
	// backend is available.
	ForceVision bool

	VisionAvailable bool
	TextAvailable   bool

	// Threshold is the routing boundary. Confidence at or above it routes to
	// text-structuring; the boundary itself is inclusive toward text.
	Threshold float64
}

// Route picks the extraction method for one document from its composite
// recognition confidence. Unavailable preferred backends degrade to the
// pattern fallback, never to an error.
func Route(confidence float64, opts RouteOptions) constants.ExtractionMethod {
	if opts.ForceVision && opts.VisionAvailable {
		return constants.MethodDirectVision
	}

	if confidence < opts.Threshold {
		if opts.VisionAvailable {
			return constants.MethodDirectVision
		}
		return constants.MethodPatternFallback
	}

	if opts.TextAvailable {
		return constants.MethodTextStructuring
	}
	return constants.MethodPatternFallback
}
