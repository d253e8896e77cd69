package analytics

import (
	"math"
	"sync"
	"testing"

	"github.com/ehr/migration-sim/internal/domain/migration"
	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/scoring"
)

func batchResult(quality, successRate float64, patients int) *migration.BatchResult {
	return &migration.BatchResult{
		PatientCount:      patients,
		AverageQuality:    quality,
		SuccessRate:       successRate,
		AverageCompliance: 0.95,
		TotalViolations:   2,
		AlertCounts:       map[monitor.Severity]int{monitor.SeverityHigh: 3},
		DimensionAverages: map[scoring.Dimension]float64{
			scoring.DimCompleteness: quality,
		},
	}
}

// ---------------------------------------------------------------------------
// Running averages
// ---------------------------------------------------------------------------

func TestRolling_RunningAverageMatchesDirectMean(t *testing.T) {
	r := NewRolling()

	sum := 0.0
	n := 150
	for i := 0; i < n; i++ {
		q := 0.5 + 0.4*float64(i)/float64(n)
		sum += q
		r.RecordBatch(batchResult(q, q, 10))
	}

	snap := r.Snapshot()
	direct := sum / float64(n)
	if math.Abs(snap.AverageQuality-direct) > 1e-6 {
		t.Fatalf("incremental average %v, direct mean %v", snap.AverageQuality, direct)
	}
	if math.Abs(snap.DimensionAverages[scoring.DimCompleteness]-direct) > 1e-6 {
		t.Fatalf("dimension incremental average %v, direct mean %v",
			snap.DimensionAverages[scoring.DimCompleteness], direct)
	}
	if snap.Batches != n || snap.TotalPatients != n*10 {
		t.Fatalf("counters batches=%d patients=%d, want %d/%d",
			snap.Batches, snap.TotalPatients, n, n*10)
	}
	if snap.TotalAlerts != n*3 || snap.TotalViolations != n*2 {
		t.Fatalf("alert/violation totals %d/%d, want %d/%d",
			snap.TotalAlerts, snap.TotalViolations, n*3, n*2)
	}
}

// ---------------------------------------------------------------------------
// Trend buffers
// ---------------------------------------------------------------------------

func TestRolling_TrendWindowSurfacesLastTen(t *testing.T) {
	r := NewRolling()
	for i := 0; i < 150; i++ {
		r.RecordBatch(batchResult(float64(i), 0.5, 1))
	}

	snap := r.Snapshot()
	if len(snap.QualityTrend) != 10 {
		t.Fatalf("quality trend surfaces %d points, want 10", len(snap.QualityTrend))
	}
	for i, v := range snap.QualityTrend {
		if want := float64(140 + i); v != want {
			t.Fatalf("trend[%d] = %v, want %v (most recent points)", i, v, want)
		}
	}
}

func TestRolling_TrendShorterThanWindow(t *testing.T) {
	r := NewRolling()
	for i := 0; i < 3; i++ {
		r.RecordBatch(batchResult(0.8, 0.9, 1))
	}
	snap := r.Snapshot()
	if len(snap.QualityTrend) != 3 || len(snap.SuccessTrend) != 3 {
		t.Fatalf("trend lengths %d/%d, want 3/3",
			len(snap.QualityTrend), len(snap.SuccessTrend))
	}
}

func TestRolling_ConcurrentRecording(t *testing.T) {
	r := NewRolling()

	var wg sync.WaitGroup
	goroutines, perGoroutine := 20, 25
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				r.RecordBatch(batchResult(0.8, 0.9, 5))
			}
		}()
	}
	wg.Wait()

	snap := r.Snapshot()
	if snap.Batches != goroutines*perGoroutine {
		t.Fatalf("recorded %d batches, want %d", snap.Batches, goroutines*perGoroutine)
	}
	if math.Abs(snap.AverageQuality-0.8) > 1e-9 {
		t.Fatalf("constant input average %v, want 0.8", snap.AverageQuality)
	}
}

func TestRolling_SnapshotIsCopy(t *testing.T) {
	r := NewRolling()
	r.RecordBatch(batchResult(0.8, 0.9, 1))

	snap := r.Snapshot()
	snap.DimensionAverages[scoring.DimCompleteness] = -1
	if len(snap.QualityTrend) > 0 {
		snap.QualityTrend[0] = -1
	}

	fresh := r.Snapshot()
	if fresh.DimensionAverages[scoring.DimCompleteness] == -1 {
		t.Fatal("snapshot map shares state with the tracker")
	}
	if fresh.QualityTrend[0] == -1 {
		t.Fatal("snapshot trend slice shares state with the tracker")
	}
}
