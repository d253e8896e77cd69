package migration

import (
	"fmt"
	"math/rand"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/migration-sim/internal/domain/degradation"
	"github.com/ehr/migration-sim/internal/domain/hipaa"
	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/record"
	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// criticalIntactFloor is the per-dimension minimum for a patient's critical
// data to count as intact.
const criticalIntactFloor = 0.9

// Config tunes the orchestrator.
type Config struct {
	Rates RateTable
	// SubstageLatency is the simulated I/O latency per substage. Zero
	// disables sleeping (used by tests and large batches).
	SubstageLatency time.Duration
	// Seed makes runs reproducible. Zero selects a time-based seed.
	Seed int64
}

// Simulator is the batch orchestrator: it runs the stage state machine per
// patient, invoking the scorer, the degradation simulator, the HIPAA
// tracker, and the quality monitor. Per-patient state is private to each
// SimulatePatient call; the simulator itself only shares the seeded random
// source, which is mutex-guarded so concurrent batch calls stay safe.
type Simulator struct {
	scorer   *scoring.Scorer
	degrader *degradation.Simulator
	monitor  *monitor.Monitor
	sink     hipaa.AuditSink
	cfg      Config
	log      zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator wires the orchestrator. A nil sink disables audit
// forwarding.
func NewSimulator(cfg Config, scorer *scoring.Scorer, degrader *degradation.Simulator,
	mon *monitor.Monitor, sink hipaa.AuditSink, log zerolog.Logger) *Simulator {

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Rates.StageDefaults == nil && cfg.Rates.Substage == nil {
		cfg.Rates = DefaultRates()
	}
	return &Simulator{
		scorer:   scorer,
		degrader: degrader,
		monitor:  mon,
		sink:     sink,
		cfg:      cfg,
		log:      log,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (s *Simulator) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

func (s *Simulator) pickFailureType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return FailureTypes[s.rng.Intn(len(FailureTypes))]
}

// SimulatePatient runs the four-stage state machine for one patient and
// returns its status record. Unexpected panics are isolated: the patient is
// marked failed with quality 0 and the caller's batch continues.
func (s *Simulator) SimulatePatient(snap *record.Snapshot, batchID string) (st *PatientStatus) {
	defer func() {
		if r := recover(); r != nil {
			if st == nil {
				st = NewPatientStatus(&record.Snapshot{}, batchID)
			}
			s.log.Error().
				Str("patient_id", st.PatientID).
				Str("batch_id", batchID).
				Interface("panic", r).
				Msg("patient simulation fault, isolating")
			st.OverallStatus = OutcomeFailed
			st.CurrentQualityScore = 0
			st.CriticalDataIntact = false
			st.appendEvent("", "", "processing_fault", fmt.Sprint(r))
		}
	}()

	st = NewPatientStatus(snap, batchID)
	s.runPatient(st, snap)
	return st
}

func (s *Simulator) runPatient(st *PatientStatus, snap *record.Snapshot) {
	tracker := hipaa.NewTracker(snap.PatientID, snap.SensitivePHI(), s.sink)
	tracker.LogAccess("migration-engine", "read", "demographics", "migration baseline scoring")

	initial, byDim := s.scorer.Score(snap)
	st.InitialQualityScore = initial
	st.CurrentQualityScore = initial
	st.QualityByDimension = byDim
	st.appendEvent("", "", "patient_started", fmt.Sprintf("baseline quality %.3f", initial))

	working := snap.Clone()
	for _, stage := range Stages() {
		working = s.runStage(st, stage, working, tracker)
	}

	st.ClinicalValidationErrors = ValidateClinicalIntegrity(working)
	for _, msg := range st.ClinicalValidationErrors {
		st.appendEvent(StageValidate, "clinical_rules", "clinical_validation_error", msg)
	}
	tracker.CheckAuditCompleteness()

	res := s.monitor.Check(monitor.CheckContext{PatientID: st.PatientID}, working)
	st.CurrentQualityScore = res.Overall
	st.QualityByDimension = res.ByDimension
	st.Alerts = res.Alerts

	st.CriticalDataIntact =
		res.ByDimension[scoring.DimAccuracy] >= criticalIntactFloor &&
			res.ByDimension[scoring.DimHIPAACompliance] >= criticalIntactFloor &&
			res.ByDimension[scoring.DimClinicalRelevance] >= criticalIntactFloor

	st.ComplianceScore = tracker.ComplianceScore()
	st.ViolationCount = len(tracker.Violations())
	for _, v := range working.PHIElements() {
		if hipaa.Protected(v) {
			st.PHIElementsProtected++
		} else {
			st.PHIElementsExposed++
		}
	}

	st.OverallStatus = st.deriveOutcome()
	st.FinalSnapshot = working
	st.appendEvent("", "", "patient_finished", st.OverallStatus)

	s.log.Debug().
		Str("patient_id", st.PatientID).
		Str("outcome", st.OverallStatus).
		Float64("quality", st.CurrentQualityScore).
		Int("errors", st.TotalStageErrors()).
		Msg("patient simulated")
}

// runStage executes one stage's substages in order. Each substage is a
// Bernoulli trial whose success probability drops by 0.1 for every error
// already recorded in the stage, floored at 0.1. A stage with any substage
// failure ends FAILED; it is never marked PARTIALLY_COMPLETED.
func (s *Simulator) runStage(st *PatientStatus, stage Stage, working *record.Snapshot, tracker *hipaa.Tracker) *record.Snapshot {
	st.StageStatuses[stage] = StateInProgress
	start := time.Now().UTC()
	st.StageTimestamps[stage] = start
	st.appendEvent(stage, "", "stage_started", "")

	failures := 0
	for _, sub := range Substages(stage) {
		if s.cfg.SubstageLatency > 0 {
			time.Sleep(s.cfg.SubstageLatency)
		}

		rate := s.cfg.Rates.Rate(stage, sub) - 0.1*float64(st.StageErrorCounts[stage])
		if rate < 0.1 {
			rate = 0.1
		}
		if s.chance(rate) {
			st.appendEvent(stage, sub, "substage_completed", "")
			continue
		}

		failures++
		st.StageErrorCounts[stage]++
		working = s.failSubstage(st, stage, sub, working, tracker)
	}

	st.StageDurations[stage] = time.Since(start)
	if failures > 0 {
		st.StageStatuses[stage] = StateFailed
	} else {
		st.StageStatuses[stage] = StateCompleted
	}
	return working
}

// failSubstage handles one substage failure: degradation, rescoring, event
// logging, and HIPAA checks, all against the same failure context.
func (s *Simulator) failSubstage(st *PatientStatus, stage Stage, sub string, working *record.Snapshot, tracker *hipaa.Tracker) *record.Snapshot {
	fctx := degradation.FailureContext{
		FailureType: s.pickFailureType(),
		Stage:       string(stage),
		Substage:    sub,
		Severity:    s.uniform(0.3, 0.8),
	}

	prev := st.CurrentQualityScore
	mutated, subEvents := s.degrader.Simulate(working, fctx)
	overall, byDim := s.scorer.Score(mutated)

	// The probabilistic pass can miss every scenario, or land only mutations
	// the scorer cannot see. A recorded failure must leave visible damage, so
	// fall back to degrading a field that is still intact.
	if overall >= prev {
		if forced, desc := s.degrader.ForceDegrade(mutated); desc != "" {
			mutated = forced
			subEvents = append(subEvents, desc)
			overall, byDim = s.scorer.Score(mutated)
		}
	}
	st.CurrentQualityScore = overall
	st.QualityByDimension = byDim

	st.DegradationEvents = append(st.DegradationEvents, DegradationEvent{
		Timestamp:     time.Now().UTC(),
		Stage:         stage,
		Substage:      sub,
		FailureType:   fctx.FailureType,
		QualityChange: prev - overall,
		PreviousScore: prev,
		NewScore:      overall,
		SubEvents:     subEvents,
	})
	st.appendEvent(stage, sub, "substage_failed", fctx.FailureType)

	tracker.ObservePHI(mutated.SensitivePHI())
	tracker.CheckViolations(fctx)

	return mutated
}

var bpPattern = regexp.MustCompile(`^[0-9]{2,3}/[0-9]{2,3}$`)

// ValidateClinicalIntegrity runs the final clinical-integrity pass over the
// post-migration snapshot. Findings are recorded, never raised.
func ValidateClinicalIntegrity(snap *record.Snapshot) []string {
	var errs []string

	if len(snap.Allergies) == 0 {
		errs = append(errs, "no allergy entries present after migration")
	}
	for _, m := range snap.Medications {
		if m.Dosage == "" {
			errs = append(errs, fmt.Sprintf("medication %q missing dosage", m.Name))
		}
		if m.Frequency == "" {
			errs = append(errs, fmt.Sprintf("medication %q missing frequency", m.Name))
		}
	}

	if bp, ok := snap.Ext["blood_pressure"]; ok && !bpPattern.MatchString(bp) {
		errs = append(errs, fmt.Sprintf("blood pressure %q not in systolic/diastolic format", bp))
	}
	hasSys, hasDia := false, false
	for _, o := range snap.Observations {
		switch o.Code {
		case "8480-6":
			hasSys = true
		case "8462-4":
			hasDia = true
		}
	}
	if hasSys != hasDia {
		errs = append(errs, "unpaired blood pressure component observation")
	}

	return errs
}
