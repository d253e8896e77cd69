// Package monitor evaluates quality scores against configured thresholds,
// raises severity-classified alerts, and serves dashboard rollups for the
// real-time poller.
package monitor

import (
	"time"

	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Alert is raised when a dimension score breaches its threshold or the
// overall score falls below the floor. Alerts are created by the Monitor
// and mutated only by explicit resolution calls.
type Alert struct {
	ID                   string            `json:"id"`
	PatientID            string            `json:"patient_id"`
	Severity             Severity          `json:"severity"`
	Dimension            scoring.Dimension `json:"dimension,omitempty"`
	Message              string            `json:"message"`
	Threshold            float64           `json:"threshold"`
	Actual               float64           `json:"actual"`
	Stage                string            `json:"stage,omitempty"`
	Substage             string            `json:"substage,omitempty"`
	RequiresIntervention bool              `json:"requires_intervention"`
	Resolved             bool              `json:"resolved"`
	ResolutionNotes      string            `json:"resolution_notes,omitempty"`
	RaisedAt             time.Time         `json:"raised_at"`
	ResolvedAt           *time.Time        `json:"resolved_at,omitempty"`
}

// DefaultThresholds are the per-dimension alerting thresholds.
func DefaultThresholds() map[scoring.Dimension]float64 {
	return map[scoring.Dimension]float64{
		scoring.DimCompleteness:      0.85,
		scoring.DimAccuracy:          0.90,
		scoring.DimConsistency:       0.80,
		scoring.DimTimeliness:        0.75,
		scoring.DimValidity:          0.85,
		scoring.DimClinicalRelevance: 0.70,
		scoring.DimHIPAACompliance:   0.95,
	}
}

// severityForDeficit maps a threshold deficit to a severity. The HIPAA
// compliance dimension uses a stricter ladder: any deficit above 0.05 is
// CRITICAL, anything below is still HIGH.
func severityForDeficit(dim scoring.Dimension, deficit float64) Severity {
	if dim == scoring.DimHIPAACompliance {
		if deficit > 0.05 {
			return SeverityCritical
		}
		return SeverityHigh
	}
	switch {
	case deficit > 0.3:
		return SeverityCritical
	case deficit > 0.2:
		return SeverityHigh
	case deficit > 0.1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
