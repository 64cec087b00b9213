package domain

import "strings"

// ExpiryRisk is the qualitative chance that stock spoils before it sells.
type ExpiryRisk string

const (
	RiskUnknown ExpiryRisk = "Unknown"
	RiskLow     ExpiryRisk = "Low"
	RiskMedium  ExpiryRisk = "Medium"
	RiskHigh    ExpiryRisk = "High"
)

var riskDiscounts = map[ExpiryRisk]string{
	RiskHigh:   "30%",
	RiskMedium: "10%",
}

var riskLossFactors = map[ExpiryRisk]float64{
	RiskHigh:   0.6,
	RiskMedium: 0.25,
}

// Discount returns the suggested markdown for a risk class.
func (r ExpiryRisk) Discount() string {
	if d, ok := riskDiscounts[r]; ok {
		return d
	}

	return "0%"
}

// LossFactor returns the share of current stock expected to be written off.
func (r ExpiryRisk) LossFactor() float64 {
	return riskLossFactors[r]
}

// ParseExpiryRisk returns the risk class for a label (case-insensitive).
func ParseExpiryRisk(label string) (ExpiryRisk, bool) {
	for _, r := range []ExpiryRisk{RiskUnknown, RiskLow, RiskMedium, RiskHigh} {
		if strings.EqualFold(string(r), strings.TrimSpace(label)) {
			return r, true
		}
	}

	return RiskUnknown, false
}
