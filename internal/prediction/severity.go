package prediction

// SeverityLevel is a coarse confidence bucket used for display. It says
// how sure the classifier was, not how dangerous the pest is.
type SeverityLevel string

const (
	SeverityHigh    SeverityLevel = "High Confidence"
	SeverityMedium  SeverityLevel = "Medium Confidence"
	SeverityLow     SeverityLevel = "Low Confidence"
	SeverityVeryLow SeverityLevel = "Very Low Confidence"
)

// SeverityFor buckets a confidence score. Boundary values belong to the
// higher bucket. Out-of-range inputs are not rejected; they fall through
// the same comparisons.
func SeverityFor(confidence float64) SeverityLevel {
	switch {
	case confidence >= 0.8:
		return SeverityHigh
	case confidence >= 0.6:
		return SeverityMedium
	case confidence >= 0.4:
		return SeverityLow
	default:
		return SeverityVeryLow
	}
}
