package prediction

import (
	"testing"
)

func TestSeverityFor(t *testing.T) {
	cases := []struct {
		confidence float64
		want       SeverityLevel
	}{
		{1.0, SeverityHigh},
		{0.92, SeverityHigh},
		{0.8, SeverityHigh},
		{0.79999, SeverityMedium},
		{0.6, SeverityMedium},
		{0.59999, SeverityLow},
		{0.4, SeverityLow},
		{0.39999, SeverityVeryLow},
		{0.0, SeverityVeryLow},
		{-0.5, SeverityVeryLow},
		{1.5, SeverityHigh},
	}

	for _, tc := range cases {
		if got := SeverityFor(tc.confidence); got != tc.want {
			t.Errorf("SeverityFor(%v) = %q, want %q", tc.confidence, got, tc.want)
		}
	}
}
