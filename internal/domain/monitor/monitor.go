package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/migration-sim/internal/domain/record"
	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// overallFloor is the overall score below which a CRITICAL alert is raised
// regardless of per-dimension breaches.
const overallFloor = 0.7

// maxHistory bounds the recent-alert history buffer.
const maxHistory = 100

// CheckContext identifies the patient and pipeline position a check runs in.
type CheckContext struct {
	PatientID string
	Stage     string
	Substage  string
}

// Result carries the recomputed scores and any alerts raised by a check.
// The orchestrator copies the scores onto the patient's migration status.
type Result struct {
	Overall     float64
	ByDimension map[scoring.Dimension]float64
	Alerts      []*Alert
}

// Monitor rescoring snapshots and raising threshold alerts. The active
// alert map and bounded history are shared with the HTTP dashboard poller
// and guarded by a single mutex.
type Monitor struct {
	scorer     *scoring.Scorer
	thresholds map[scoring.Dimension]float64
	log        zerolog.Logger

	mu      sync.Mutex
	active  map[string]*Alert
	history []*Alert
}

// New returns a monitor. Nil thresholds fall back to DefaultThresholds.
func New(scorer *scoring.Scorer, thresholds map[scoring.Dimension]float64, log zerolog.Logger) *Monitor {
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	return &Monitor{
		scorer:     scorer,
		thresholds: thresholds,
		log:        log,
		active:     make(map[string]*Alert),
	}
}

// Check recomputes the quality score for the snapshot and raises an alert
// for every dimension breaching its threshold, plus an overall-floor alert
// when the weighted score drops below 0.7.
func (m *Monitor) Check(cc CheckContext, snap *record.Snapshot) *Result {
	overall, byDim := m.scorer.Score(snap)
	res := &Result{Overall: overall, ByDimension: byDim}

	for _, dim := range scoring.Dimensions() {
		threshold, ok := m.thresholds[dim]
		if !ok {
			continue
		}
		score := byDim[dim]
		if score >= threshold {
			continue
		}
		deficit := threshold - score
		sev := severityForDeficit(dim, deficit)
		res.Alerts = append(res.Alerts, m.raise(&Alert{
			PatientID: cc.PatientID,
			Severity:  sev,
			Dimension: dim,
			Message: fmt.Sprintf("%s score %.3f below threshold %.2f (deficit %.3f)",
				dim, score, threshold, deficit),
			Threshold: threshold,
			Actual:    score,
			Stage:     cc.Stage,
			Substage:  cc.Substage,
		}))
	}

	if overall < overallFloor {
		res.Alerts = append(res.Alerts, m.raise(&Alert{
			PatientID: cc.PatientID,
			Severity:  SeverityCritical,
			Message: fmt.Sprintf("overall quality score %.3f below floor %.2f",
				overall, overallFloor),
			Threshold: overallFloor,
			Actual:    overall,
			Stage:     cc.Stage,
			Substage:  cc.Substage,
		}))
	}

	return res
}

func (m *Monitor) raise(a *Alert) *Alert {
	a.ID = uuid.New().String()
	a.RaisedAt = time.Now().UTC()
	a.RequiresIntervention = a.Severity == SeverityCritical || a.Severity == SeverityHigh

	m.mu.Lock()
	m.active[a.ID] = a
	m.history = append(m.history, a)
	if len(m.history) > maxHistory {
		m.history = m.history[len(m.history)-maxHistory:]
	}
	m.mu.Unlock()

	m.log.Info().
		Str("alert_id", a.ID).
		Str("patient_id", a.PatientID).
		Str("severity", string(a.Severity)).
		Str("dimension", string(a.Dimension)).
		Float64("actual", a.Actual).
		Float64("threshold", a.Threshold).
		Msg("quality alert raised")

	return a
}

// Resolve marks an alert resolved and removes it from the active map. It
// returns false (a safe no-op) if the alert is unknown or already resolved.
func (m *Monitor) Resolve(alertID, notes string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.active[alertID]
	if !ok {
		return false
	}
	now := time.Now().UTC()
	a.Resolved = true
	a.ResolutionNotes = notes
	a.ResolvedAt = &now
	delete(m.active, alertID)
	return true
}

// ActiveAlerts returns all unresolved alerts.
func (m *Monitor) ActiveAlerts() []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Alert, 0, len(m.active))
	for _, a := range m.active {
		out = append(out, a)
	}
	return out
}

// ActiveBySeverity returns unresolved alerts of the given severity.
func (m *Monitor) ActiveBySeverity(sev Severity) []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Alert
	for _, a := range m.active {
		if a.Severity == sev {
			out = append(out, a)
		}
	}
	return out
}

// History returns the bounded recent-alert buffer, oldest first.
func (m *Monitor) History() []*Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Alert(nil), m.history...)
}
