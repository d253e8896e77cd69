// Package degradation simulates clinical-data corruption caused by
// migration stage failures. Scenarios are independent probabilistic
// mutations targeted at specific snapshot fields; each triggered mutation
// yields a human-readable description for the audit trail.
package degradation

// Category tags a scenario with the kind of damage it models.
type Category string

const (
	CategoryCorruption     Category = "corruption"
	CategoryDataLoss       Category = "data_loss"
	CategoryTruncation     Category = "truncation"
	CategoryFormatError    Category = "format_error"
	CategoryMappingError   Category = "mapping_error"
	CategorySecurityBreach Category = "security_breach"
	CategoryPrecisionLoss  Category = "precision_loss"
)

// Scenario is an immutable degradation pattern.
type Scenario struct {
	Name            string
	BaseProbability float64
	SeverityWeight  float64
	Fields          []string
	Category        Category
}

// FailureContext describes the stage/substage failure that triggered a
// degradation pass. Severity is drawn Uniform(0.3, 0.8) by the orchestrator.
type FailureContext struct {
	FailureType string
	Stage       string
	Substage    string
	Severity    float64
}

// DefaultScenarios returns the built-in scenario table. Callers must not
// mutate the returned slice.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{
			Name:            "medication_dosage_corruption",
			BaseProbability: 0.20,
			SeverityWeight:  0.9,
			Fields:          []string{"medications.dosage"},
			Category:        CategoryCorruption,
		},
		{
			Name:            "allergy_entry_loss",
			BaseProbability: 0.12,
			SeverityWeight:  1.0,
			Fields:          []string{"allergies"},
			Category:        CategoryDataLoss,
		},
		{
			Name:            "demographic_truncation",
			BaseProbability: 0.15,
			SeverityWeight:  0.4,
			Fields:          []string{"name", "address"},
			Category:        CategoryTruncation,
		},
		{
			Name:            "date_format_rewrite",
			BaseProbability: 0.18,
			SeverityWeight:  0.5,
			Fields:          []string{"birth_date", "observations.taken"},
			Category:        CategoryFormatError,
		},
		{
			Name:            "terminology_code_corruption",
			BaseProbability: 0.14,
			SeverityWeight:  0.7,
			Fields:          []string{"conditions.code", "observations.value"},
			Category:        CategoryMappingError,
		},
		{
			Name:            "phi_encryption_strip",
			BaseProbability: 0.08,
			SeverityWeight:  1.0,
			Fields:          []string{"ssn", "phone", "email"},
			Category:        CategorySecurityBreach,
		},
		{
			Name:            "vital_precision_loss",
			BaseProbability: 0.16,
			SeverityWeight:  0.3,
			Fields:          []string{"observations.value"},
			Category:        CategoryPrecisionLoss,
		},
	}
}

// stageAffinity weights a scenario category by the pipeline stage the
// failure occurred in. Unlisted combinations default to 1.0.
var stageAffinity = map[Category]map[string]float64{
	CategoryCorruption:     {"extract": 1.2, "transform": 1.5, "load": 1.1},
	CategoryDataLoss:       {"extract": 1.5, "load": 1.4},
	CategoryTruncation:     {"extract": 1.4, "transform": 1.1},
	CategoryFormatError:    {"transform": 1.6},
	CategoryMappingError:   {"transform": 1.5, "validate": 1.3},
	CategorySecurityBreach: {"load": 1.5, "extract": 1.2},
	CategoryPrecisionLoss:  {"transform": 1.4},
}

// StageAffinity returns the multiplier for a scenario category in a stage.
func StageAffinity(cat Category, stage string) float64 {
	if m, ok := stageAffinity[cat]; ok {
		if v, ok := m[stage]; ok {
			return v
		}
	}
	return 1.0
}
