// Package risk aggregates anomalies into numeric risk scores for
// reporting and threshold decisions.
package risk

import (
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// vulnerabilityFactor inflates the score of anomalies flagged as
// potential vulnerabilities.
const vulnerabilityFactor = 1.5

// Risk categories assigned by Categorize.
const (
	CategoryCritical = "Critical"
	CategoryHigh     = "High"
	CategoryMedium   = "Medium"
	CategoryLow      = "Low"
	CategoryMinimal  = "Minimal"
)

// AnomalyRisk scores a single anomaly in [0, 10]. The score grows with
// severity weight and confidence, with a 1.5x factor for potential
// vulnerabilities, capped at 10.
func AnomalyRisk(a *types.Anomaly) float64 {
	score := a.Severity.Weight() * a.ConfidenceScore
	if a.IsPotentialVulnerability {
		score *= vulnerabilityFactor
	}
	if score > 10 {
		return 10
	}
	return score
}

// FlowRisk aggregates anomalies into one flow-level score in [0, 10]:
// the severity-weighted average of per-anomaly risks, capped at 10.
// An empty list scores 0. The result does not depend on input order.
func FlowRisk(anomalies []types.Anomaly) float64 {
	if len(anomalies) == 0 {
		return 0
	}
	var weighted, total float64
	for i := range anomalies {
		w := anomalies[i].Severity.Weight()
		weighted += AnomalyRisk(&anomalies[i]) * w
		total += w
	}
	if total == 0 {
		return 0
	}
	score := weighted / total
	if score > 10 {
		return 10
	}
	return score
}

// Categorize maps a risk score to a reporting category.
func Categorize(score float64) string {
	switch {
	case score >= 8:
		return CategoryCritical
	case score >= 6:
		return CategoryHigh
	case score >= 4:
		return CategoryMedium
	case score >= 2:
		return CategoryLow
	}
	return CategoryMinimal
}
