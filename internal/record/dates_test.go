package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-15", "2024-03-15", true},
		{"2024/03/15", "2024-03-15", true},
		{"15/03/2024", "2024-03-15", true},
		{"15-03-2024", "2024-03-15", true},
		{"15.03.2024", "2024-03-15", true},
		{"15 Mar 2024", "2024-03-15", true},
		{"March 15, 2024", "2024-03-15", true},
		// day-first wins when both readings are plausible
		{"05/03/2024", "2024-03-05", true},
		// month-first only resolves what day-first rejects
		{"09/14/2022", "2022-09-14", true},
		{"15/03/24", "2024-03-15", true},
		{"  2024-03-15  ", "2024-03-15", true},
		{"", "", false},
		{"not a date", "", false},
		{"32/13/2024", "", false},
		{"2024-13-45", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalDate(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
