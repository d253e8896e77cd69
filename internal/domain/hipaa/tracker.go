// Package hipaa models a per-patient HIPAA compliance posture during a
// simulated migration: a PHI inventory, an append-only access log, a
// violation ledger, and a compliance score that only ever decreases within
// a run.
package hipaa

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/migration-sim/internal/domain/degradation"
)

// Severity grades a violation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Penalty returns the compliance-score deduction for a violation severity.
func (s Severity) Penalty() float64 {
	switch s {
	case SeverityCritical:
		return 0.50
	case SeverityHigh:
		return 0.30
	case SeverityMedium:
		return 0.15
	default:
		return 0.05
	}
}

// AccessRecord is one entry in the append-only PHI access log.
type AccessRecord struct {
	ID            uuid.UUID `json:"id"`
	User          string    `json:"user"`
	AccessType    string    `json:"access_type"`
	Element       string    `json:"element"`
	Justification string    `json:"justification"`
	At            time.Time `json:"at"`
}

// Violation is one entry in the append-only violation ledger.
type Violation struct {
	ID          uuid.UUID `json:"id"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Severity    Severity  `json:"severity"`
	Penalty     float64   `json:"penalty"`
	At          time.Time `json:"at"`
}

// AuditSink receives every access and violation for external audit-log
// consumers. Implementations must be safe for concurrent use.
type AuditSink interface {
	AccessLogged(patientID string, rec AccessRecord)
	ViolationRecorded(patientID string, v Violation)
}

// Tracker holds one patient's compliance state. All mutating methods are
// safe for concurrent use, though a patient's simulation is sequential.
type Tracker struct {
	patientID string
	sink      AuditSink

	mu         sync.Mutex
	phi        map[string]string
	accessLog  []AccessRecord
	violations []Violation
	score      float64
}

// NewTracker creates a tracker with a starting compliance score of 1.0.
func NewTracker(patientID string, phi map[string]string, sink AuditSink) *Tracker {
	inv := make(map[string]string, len(phi))
	for k, v := range phi {
		inv[k] = v
	}
	return &Tracker{
		patientID: patientID,
		sink:      sink,
		phi:       inv,
		score:     1.0,
	}
}

// ObservePHI replaces the PHI inventory with the current field values,
// typically after a degradation pass has mutated the snapshot.
func (t *Tracker) ObservePHI(phi map[string]string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phi = make(map[string]string, len(phi))
	for k, v := range phi {
		t.phi[k] = v
	}
}

// LogAccess appends to the access log and forwards to the audit sink.
func (t *Tracker) LogAccess(user, accessType, element, justification string) {
	rec := AccessRecord{
		ID:            uuid.New(),
		User:          user,
		AccessType:    accessType,
		Element:       element,
		Justification: justification,
		At:            time.Now().UTC(),
	}
	t.mu.Lock()
	t.accessLog = append(t.accessLog, rec)
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.AccessLogged(t.patientID, rec)
	}
}

// RecordViolation appends to the ledger and applies the severity-weighted
// penalty. The compliance score is monotonically non-increasing and never
// drops below 0.
func (t *Tracker) RecordViolation(vtype, description string, sev Severity) Violation {
	v := Violation{
		ID:          uuid.New(),
		Type:        vtype,
		Description: description,
		Severity:    sev,
		Penalty:     sev.Penalty(),
		At:          time.Now().UTC(),
	}
	t.mu.Lock()
	t.violations = append(t.violations, v)
	t.score -= v.Penalty
	if t.score < 0 {
		t.score = 0
	}
	t.mu.Unlock()

	if t.sink != nil {
		t.sink.ViolationRecorded(t.patientID, v)
	}
	return v
}

// CheckViolations inspects the PHI inventory against the triggering failure
// context. A non-empty PHI element that is not recognized as protected
// raises a phi_exposure violation; a security_violation failure type raises
// a critical unauthorized_access violation.
func (t *Tracker) CheckViolations(fctx degradation.FailureContext) []Violation {
	t.mu.Lock()
	exposed := make([]string, 0, len(t.phi))
	for element, value := range t.phi {
		if value != "" && !Protected(value) {
			exposed = append(exposed, element)
		}
	}
	t.mu.Unlock()

	var raised []Violation
	for _, element := range exposed {
		raised = append(raised, t.RecordViolation("phi_exposure",
			fmt.Sprintf("PHI element %q unprotected after %s/%s failure", element, fctx.Stage, fctx.Substage),
			SeverityHigh))
	}
	if fctx.FailureType == "security_violation" {
		raised = append(raised, t.RecordViolation("unauthorized_access",
			fmt.Sprintf("security violation during %s/%s", fctx.Stage, fctx.Substage),
			SeverityCritical))
	}
	return raised
}

// CheckAuditCompleteness raises an audit_gap violation if the access log is
// empty at the moment of the check.
func (t *Tracker) CheckAuditCompleteness() *Violation {
	t.mu.Lock()
	empty := len(t.accessLog) == 0
	t.mu.Unlock()
	if !empty {
		return nil
	}
	v := t.RecordViolation("audit_gap", "PHI access log empty at completeness check", SeverityMedium)
	return &v
}

// ComplianceScore returns the current score in [0,1].
func (t *Tracker) ComplianceScore() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.score
}

// Violations returns a copy of the violation ledger in record order.
func (t *Tracker) Violations() []Violation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Violation(nil), t.violations...)
}

// AccessLog returns a copy of the access log in record order.
func (t *Tracker) AccessLog() []AccessRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]AccessRecord(nil), t.accessLog...)
}

// Protected reports whether a PHI value is recognized as protected: empty,
// prefixed "ENCRYPTED_", or containing a mask character.
func Protected(value string) bool {
	return value == "" ||
		strings.HasPrefix(value, "ENCRYPTED_") ||
		strings.Contains(value, "*")
}
