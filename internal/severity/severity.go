// Package severity maps CVSS scores to alert severity tiers and card colors.
package severity

// Severity labels produced by Classify.
const (
	LabelCritical = "Critical"
	LabelHigh     = "High"
	LabelMedium   = "Medium"
	LabelLow      = "Low"
	LabelUnknown  = "Unknown"
)

// Classification is the severity tier derived from a CVSS v3 score.
type Classification struct {
	Label string
	Color string // hex color with leading '#'
}

// Classify maps a CVSS score to its severity tier. A score of zero (or
// below) means the source supplied no usable score and classifies as Unknown.
// Boundaries are inclusive on the lower bound of each tier.
func Classify(score float64) Classification {
	switch {
	case score >= 9.0:
		return Classification{Label: LabelCritical, Color: "#FF0000"}
	case score >= 7.0:
		return Classification{Label: LabelHigh, Color: "#FFA500"}
	case score >= 4.0:
		return Classification{Label: LabelMedium, Color: "#FFFFE0"}
	case score > 0.0:
		return Classification{Label: LabelLow, Color: "#90EE90"}
	default:
		return Classification{Label: LabelUnknown, Color: "#D3D3D3"}
	}
}
