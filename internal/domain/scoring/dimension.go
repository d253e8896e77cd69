// Package scoring turns a patient snapshot into a healthcare data-quality
// score: seven weighted dimensions, each scored by named validation rules
// amplified by clinical criticality.
package scoring

import "fmt"

// Dimension is one of the seven quality axes a snapshot is scored on.
type Dimension string

const (
	DimCompleteness      Dimension = "completeness"
	DimAccuracy          Dimension = "accuracy"
	DimConsistency       Dimension = "consistency"
	DimTimeliness        Dimension = "timeliness"
	DimValidity          Dimension = "validity"
	DimClinicalRelevance Dimension = "clinical_relevance"
	DimHIPAACompliance   Dimension = "hipaa_compliance"
)

// Dimensions lists every dimension in a stable order.
func Dimensions() []Dimension {
	return []Dimension{
		DimCompleteness, DimAccuracy, DimConsistency, DimTimeliness,
		DimValidity, DimClinicalRelevance, DimHIPAACompliance,
	}
}

// DimensionWeights are the fixed contributions of each dimension to the
// overall score. They must sum to exactly 1.0.
var DimensionWeights = map[Dimension]float64{
	DimCompleteness:      0.25,
	DimAccuracy:          0.25,
	DimConsistency:       0.15,
	DimTimeliness:        0.10,
	DimValidity:          0.15,
	DimClinicalRelevance: 0.05,
	DimHIPAACompliance:   0.05,
}

func init() {
	sum := 0.0
	for _, w := range DimensionWeights {
		sum += w
	}
	if sum < 0.999999 || sum > 1.000001 {
		panic(fmt.Sprintf("scoring: dimension weights sum to %v, want 1.0", sum))
	}
}

// Criticality amplifies a rule's contribution to its dimension score based
// on clinical importance.
type Criticality string

const (
	CriticalityCritical Criticality = "critical"
	CriticalityHigh     Criticality = "high"
	CriticalityMedium   Criticality = "medium"
	CriticalityLow      Criticality = "low"
)

// Multiplier returns the weight applied to a rule's raw predicate result.
func (c Criticality) Multiplier() float64 {
	switch c {
	case CriticalityCritical:
		return 4.0
	case CriticalityHigh:
		return 2.0
	case CriticalityLow:
		return 0.5
	default:
		return 1.0
	}
}
