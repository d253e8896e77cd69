package migration

import (
	"time"

	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/record"
	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// Terminal per-patient outcomes derived after all four stages have run.
const (
	OutcomeCompleted          = "completed"
	OutcomeFailed             = "failed"
	OutcomePartiallyCompleted = "partially_completed"
)

// DegradationEvent records one substage failure's effect on data quality.
// Events are causally ordered and append-only.
type DegradationEvent struct {
	Timestamp     time.Time `json:"timestamp"`
	Stage         Stage     `json:"stage"`
	Substage      string    `json:"substage"`
	FailureType   string    `json:"failure_type"`
	QualityChange float64   `json:"quality_change"`
	PreviousScore float64   `json:"previous_score"`
	NewScore      float64   `json:"new_score"`
	SubEvents     []string  `json:"sub_events"`
}

// MigrationEvent is one entry in the per-patient audit log.
type MigrationEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     Stage     `json:"stage,omitempty"`
	Substage  string    `json:"substage,omitempty"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail,omitempty"`
}

// PatientStatus is the per-patient state record mutated by the orchestrator
// while that patient's simulation runs, and read-only afterward. All scores
// are in [0,1].
type PatientStatus struct {
	PatientID string `json:"patient_id"`
	MRN       string `json:"mrn"`
	Name      string `json:"name"`
	BatchID   string `json:"batch_id"`

	StageStatuses    map[Stage]StageState    `json:"stage_statuses"`
	StageTimestamps  map[Stage]time.Time     `json:"stage_timestamps"`
	StageDurations   map[Stage]time.Duration `json:"stage_durations"`
	StageErrorCounts map[Stage]int           `json:"stage_error_counts"`

	InitialQualityScore float64                       `json:"initial_quality_score"`
	CurrentQualityScore float64                       `json:"current_quality_score"`
	QualityByDimension  map[scoring.Dimension]float64 `json:"quality_by_dimension"`

	DegradationEvents        []DegradationEvent `json:"quality_degradation_events"`
	ClinicalValidationErrors []string           `json:"clinical_validation_errors"`
	CriticalDataIntact       bool               `json:"critical_data_intact"`

	// PHI summary
	PHIElementsProtected int     `json:"phi_elements_protected"`
	PHIElementsExposed   int     `json:"phi_elements_exposed"`
	ComplianceScore      float64 `json:"compliance_score"`
	ViolationCount       int     `json:"violation_count"`

	OverallStatus string           `json:"overall_status"`
	Events        []MigrationEvent `json:"migration_events"`

	Alerts []*monitor.Alert `json:"alerts,omitempty"`

	// FinalSnapshot is the post-migration record handed to export
	// collaborators. Shared by read-only reference once the run finishes.
	FinalSnapshot *record.Snapshot `json:"-"`
}

// NewPatientStatus creates the status record for one patient run with every
// stage PENDING.
func NewPatientStatus(snap *record.Snapshot, batchID string) *PatientStatus {
	st := &PatientStatus{
		PatientID:        snap.PatientID,
		MRN:              snap.MRN,
		Name:             snap.Name,
		BatchID:          batchID,
		StageStatuses:    make(map[Stage]StageState, 4),
		StageTimestamps:  make(map[Stage]time.Time, 4),
		StageDurations:   make(map[Stage]time.Duration, 4),
		StageErrorCounts: make(map[Stage]int, 4),
		ComplianceScore:  1.0,
	}
	for _, stage := range Stages() {
		st.StageStatuses[stage] = StatePending
	}
	return st
}

// appendEvent records an audit-log entry. The log is append-only and never
// reordered.
func (st *PatientStatus) appendEvent(stage Stage, substage, event, detail string) {
	st.Events = append(st.Events, MigrationEvent{
		Timestamp: time.Now().UTC(),
		Stage:     stage,
		Substage:  substage,
		Event:     event,
		Detail:    detail,
	})
}

// deriveOutcome computes the terminal per-patient status: completed if
// every stage COMPLETED, failed if any stage FAILED, else partially
// completed. Stage-level PARTIALLY_COMPLETED deliberately never occurs:
// any substage failure forces the whole stage to FAILED.
func (st *PatientStatus) deriveOutcome() string {
	completed := 0
	for _, stage := range Stages() {
		switch st.StageStatuses[stage] {
		case StateFailed:
			return OutcomeFailed
		case StateCompleted:
			completed++
		}
	}
	if completed == len(Stages()) {
		return OutcomeCompleted
	}
	return OutcomePartiallyCompleted
}

// TotalStageErrors sums the per-stage error counters.
func (st *PatientStatus) TotalStageErrors() int {
	total := 0
	for _, n := range st.StageErrorCounts {
		total += n
	}
	return total
}
