package monitor

import (
	"time"

	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// HealthStatus labels the overall posture derived from active alerts.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "HEALTHY"
	StatusWarning  HealthStatus = "WARNING"
	StatusDegraded HealthStatus = "DEGRADED"
	StatusCritical HealthStatus = "CRITICAL"
)

// DashboardSnapshot is the rollup consumed by the real-time dashboard
// poller.
type DashboardSnapshot struct {
	GeneratedAt           time.Time                     `json:"generated_at"`
	Status                HealthStatus                  `json:"status"`
	ActiveBySeverity      map[Severity]int              `json:"active_by_severity"`
	RequiringIntervention int                           `json:"requiring_intervention"`
	BreachesByDimension   map[scoring.Dimension]int     `json:"breaches_by_dimension"`
	TotalActive           int                           `json:"total_active"`
	RecentAlerts          []*Alert                      `json:"recent_alerts"`
}

// Dashboard aggregates the active alert map into counts per severity and
// dimension and derives the overall status label:
//
//	CRITICAL  any active critical alert
//	DEGRADED  more than 5 active high alerts
//	WARNING   any high alert, or more than 10 medium
//	HEALTHY   otherwise
func (m *Monitor) Dashboard() *DashboardSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &DashboardSnapshot{
		GeneratedAt:         time.Now().UTC(),
		ActiveBySeverity:    make(map[Severity]int, 4),
		BreachesByDimension: make(map[scoring.Dimension]int),
		TotalActive:         len(m.active),
	}

	for _, a := range m.active {
		snap.ActiveBySeverity[a.Severity]++
		if a.RequiresIntervention {
			snap.RequiringIntervention++
		}
		if a.Dimension != "" {
			snap.BreachesByDimension[a.Dimension]++
		}
	}

	switch {
	case snap.ActiveBySeverity[SeverityCritical] > 0:
		snap.Status = StatusCritical
	case snap.ActiveBySeverity[SeverityHigh] > 5:
		snap.Status = StatusDegraded
	case snap.ActiveBySeverity[SeverityHigh] > 0 || snap.ActiveBySeverity[SeverityMedium] > 10:
		snap.Status = StatusWarning
	default:
		snap.Status = StatusHealthy
	}

	n := len(m.history)
	recent := 10
	if recent > n {
		recent = n
	}
	snap.RecentAlerts = append([]*Alert(nil), m.history[n-recent:]...)

	return snap
}
