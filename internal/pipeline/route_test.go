package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docuvault/rxtract/constants"
)

func TestRoute(t *testing.T) {
	allAvailable := RouteOptions{VisionAvailable: true, TextAvailable: true, Threshold: 0.6}

	tests := []struct {
		name       string
		confidence float64
		opts       RouteOptions
		want       constants.ExtractionMethod
	}{
		{
			name:       "high confidence routes to text structuring",
			confidence: 0.85,
			opts:       allAvailable,
			want:       constants.MethodTextStructuring,
		},
		{
			name:       "low confidence routes to direct vision",
			confidence: 0.3,
			opts:       allAvailable,
			want:       constants.MethodDirectVision,
		},
		{
			name:       "boundary is inclusive toward text structuring",
			confidence: 0.6,
			opts:       allAvailable,
			want:       constants.MethodTextStructuring,
		},
		{
			name:       "just below boundary routes to vision",
			confidence: 0.599999,
			opts:       allAvailable,
			want:       constants.MethodDirectVision,
		},
		{
			name:       "force vision overrides high confidence",
			confidence: 0.99,
			opts:       RouteOptions{ForceVision: true, VisionAvailable: true, TextAvailable: true, Threshold: 0.6},
			want:       constants.MethodDirectVision,
		},
		{
			name:       "force vision without vision backend falls through to confidence routing",
			confidence: 0.99,
			opts:       RouteOptions{ForceVision: true, TextAvailable: true, Threshold: 0.6},
			want:       constants.MethodTextStructuring,
		},
		{
			name:       "low confidence without vision degrades to pattern fallback",
			confidence: 0.2,
			opts:       RouteOptions{TextAvailable: true, Threshold: 0.6},
			want:       constants.MethodPatternFallback,
		},
		{
			name:       "high confidence without text degrades to pattern fallback",
			confidence: 0.9,
			opts:       RouteOptions{VisionAvailable: true, Threshold: 0.6},
			want:       constants.MethodPatternFallback,
		},
		{
			name:       "nothing available always yields pattern fallback",
			confidence: 0.9,
			opts:       RouteOptions{Threshold: 0.6},
			want:       constants.MethodPatternFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.confidence, tt.opts)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteIsDeterministic(t *testing.T) {
	opts := RouteOptions{VisionAvailable: true, TextAvailable: true, Threshold: 0.6}
	first := Route(0.42, opts)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Route(0.42, opts))
	}
}
