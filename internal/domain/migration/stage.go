// Package migration drives the per-patient stage state machine and the
// batch orchestrator that ties the scorer, degradation simulator, HIPAA
// tracker, and quality monitor together.
package migration

// Stage is one of the four fixed pipeline stages.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageTransform Stage = "transform"
	StageValidate  Stage = "validate"
	StageLoad      Stage = "load"
)

// Stages returns the fixed stage order.
func Stages() []Stage {
	return []Stage{StageExtract, StageTransform, StageValidate, StageLoad}
}

// substages lists the fixed ordered sub-steps per stage.
var substages = map[Stage][]string{
	StageExtract:   {"connect_source", "read_records", "parse_records", "stage_records"},
	StageTransform: {"map_fields", "normalize_codes", "convert_formats", "enrich_data"},
	StageValidate:  {"schema_check", "clinical_rules", "referential_check", "quality_gate"},
	StageLoad:      {"connect_target", "write_records", "verify_load", "finalize"},
}

// Substages returns the ordered sub-steps of a stage.
func Substages(stage Stage) []string {
	return substages[stage]
}

// StageState is the status of a single stage for one patient.
type StageState string

const (
	StatePending                  StageState = "PENDING"
	StateInProgress               StageState = "IN_PROGRESS"
	StateCompleted                StageState = "COMPLETED"
	StateFailed                   StageState = "FAILED"
	StatePartiallyCompleted       StageState = "PARTIALLY_COMPLETED"
	StateRequiresIntervention     StageState = "REQUIRES_INTERVENTION"
	StateHIPAAViolationDetected   StageState = "HIPAA_VIOLATION_DETECTED"
	StateClinicalValidationFailed StageState = "CLINICAL_VALIDATION_FAILED"
)

// FailureTypes enumerates the simulated substage failure modes.
var FailureTypes = []string{
	"connection_timeout",
	"data_truncation",
	"encoding_mismatch",
	"mapping_conflict",
	"schema_drift",
	"duplicate_record",
	"security_violation",
	"resource_exhaustion",
}

// RateTable supplies the configured success rate per stage and substage.
// A missing entry falls back to the stage default, then to 0.9.
type RateTable struct {
	StageDefaults map[Stage]float64
	Substage      map[Stage]map[string]float64
}

// DefaultRates returns the built-in success-rate table.
func DefaultRates() RateTable {
	return RateTable{
		StageDefaults: map[Stage]float64{
			StageExtract:   0.95,
			StageTransform: 0.90,
			StageValidate:  0.92,
			StageLoad:      0.94,
		},
	}
}

// Rate returns the configured success rate for a stage/substage pair.
func (rt RateTable) Rate(stage Stage, substage string) float64 {
	if m, ok := rt.Substage[stage]; ok {
		if v, ok := m[substage]; ok {
			return v
		}
	}
	if v, ok := rt.StageDefaults[stage]; ok {
		return v
	}
	return 0.9
}
