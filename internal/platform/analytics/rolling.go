// Package analytics maintains cross-batch rolling migration metrics:
// incremental running averages and bounded trend buffers shared by every
// batch run and the dashboard poller.
package analytics

import (
	"sync"
	"time"

	"github.com/ehr/migration-sim/internal/domain/migration"
	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// trendCapacity bounds each trend buffer; trendWindow is how many recent
// points a snapshot surfaces.
const (
	trendCapacity = 100
	trendWindow   = 10
)

// Rolling accumulates batch aggregates. All mutation happens under one
// mutex held only for the duration of the aggregate update, never for a
// patient simulation.
type Rolling struct {
	mu sync.Mutex

	batches       int
	totalPatients int
	totalAlerts   int
	violations    int

	avgQuality     float64
	avgSuccessRate float64
	avgCompliance  float64
	dimAverages    map[scoring.Dimension]float64

	qualityTrend []float64
	successTrend []float64
}

// NewRolling returns an empty rolling tracker.
func NewRolling() *Rolling {
	return &Rolling{dimAverages: make(map[scoring.Dimension]float64)}
}

// RecordBatch folds one batch result into the running aggregates using the
// incremental mean update avg = (avg*(n-1) + x) / n.
func (r *Rolling) RecordBatch(res *migration.BatchResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.batches++
	n := float64(r.batches)
	r.totalPatients += res.PatientCount
	r.violations += res.TotalViolations
	for _, c := range res.AlertCounts {
		r.totalAlerts += c
	}

	r.avgQuality = runningAvg(r.avgQuality, res.AverageQuality, n)
	r.avgSuccessRate = runningAvg(r.avgSuccessRate, res.SuccessRate, n)
	r.avgCompliance = runningAvg(r.avgCompliance, res.AverageCompliance, n)
	for dim, v := range res.DimensionAverages {
		r.dimAverages[dim] = runningAvg(r.dimAverages[dim], v, n)
	}

	r.qualityTrend = pushBounded(r.qualityTrend, res.AverageQuality)
	r.successTrend = pushBounded(r.successTrend, res.SuccessRate)
}

func runningAvg(avg, x, n float64) float64 {
	return (avg*(n-1) + x) / n
}

func pushBounded(buf []float64, v float64) []float64 {
	buf = append(buf, v)
	if len(buf) > trendCapacity {
		buf = buf[len(buf)-trendCapacity:]
	}
	return buf
}

// Snapshot is a point-in-time view of the rolling aggregates.
type Snapshot struct {
	GeneratedAt       time.Time                     `json:"generated_at"`
	Batches           int                           `json:"batches"`
	TotalPatients     int                           `json:"total_patients"`
	TotalAlerts       int                           `json:"total_alerts"`
	TotalViolations   int                           `json:"total_violations"`
	AverageQuality    float64                       `json:"average_quality"`
	SuccessRate       float64                       `json:"success_rate"`
	Compliance        float64                       `json:"compliance"`
	DimensionAverages map[scoring.Dimension]float64 `json:"dimension_averages"`
	QualityTrend      []float64                     `json:"quality_trend"`
	SuccessTrend      []float64                     `json:"success_trend"`
}

// Snapshot returns the current aggregates plus the last 10 trend points.
func (r *Rolling) Snapshot() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	dims := make(map[scoring.Dimension]float64, len(r.dimAverages))
	for k, v := range r.dimAverages {
		dims[k] = v
	}

	return &Snapshot{
		GeneratedAt:       time.Now().UTC(),
		Batches:           r.batches,
		TotalPatients:     r.totalPatients,
		TotalAlerts:       r.totalAlerts,
		TotalViolations:   r.violations,
		AverageQuality:    r.avgQuality,
		SuccessRate:       r.avgSuccessRate,
		Compliance:        r.avgCompliance,
		DimensionAverages: dims,
		QualityTrend:      lastN(r.qualityTrend, trendWindow),
		SuccessTrend:      lastN(r.successTrend, trendWindow),
	}
}

func lastN(buf []float64, n int) []float64 {
	if len(buf) > n {
		buf = buf[len(buf)-n:]
	}
	return append([]float64(nil), buf...)
}

// DashboardView pairs the alert rollup with the rolling aggregates for the
// real-time poller.
type DashboardView struct {
	Monitor *monitor.DashboardSnapshot `json:"monitor"`
	Rolling *Snapshot                  `json:"rolling"`
}
