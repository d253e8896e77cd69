package migration

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/migration-sim/internal/domain/monitor"
	"github.com/ehr/migration-sim/internal/domain/record"
	"github.com/ehr/migration-sim/internal/domain/scoring"
)

// Quality distribution bucket names. Bucket counts always sum to the batch
// patient count.
const (
	BucketExcellent = "excellent" // >= 0.9
	BucketGood      = "good"      // >= 0.8
	BucketFair      = "fair"      // >= 0.7
	BucketPoor      = "poor"      // < 0.7
)

// StagePerformance summarizes one stage across a batch.
type StagePerformance struct {
	AverageDuration time.Duration `json:"average_duration"`
	SuccessRate     float64       `json:"success_rate"`
}

// BatchResult aggregates one batch run for reporting and the rolling
// analytics tracker.
type BatchResult struct {
	BatchID      string        `json:"batch_id"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	PatientCount int           `json:"patient_count"`

	SuccessCount   int     `json:"success_count"`
	SuccessRate    float64 `json:"success_rate"`
	AverageQuality float64 `json:"average_quality"`

	QualityDistribution map[string]int                `json:"quality_distribution"`
	DimensionAverages   map[scoring.Dimension]float64 `json:"dimension_averages"`

	AlertCounts map[monitor.Severity]int `json:"alert_counts"`

	AverageCompliance float64 `json:"average_compliance"`
	TotalViolations   int     `json:"total_violations"`

	StagePerformance map[Stage]StagePerformance `json:"stage_performance"`

	Statuses []*PatientStatus `json:"statuses"`
}

// SimulateBatch runs every patient sequentially and aggregates the batch
// result. Callers wanting batch-level parallelism split the patient list
// and invoke SimulateBatch per worker on disjoint sub-lists. An empty
// batchID gets a generated one.
func (s *Simulator) SimulateBatch(snaps []*record.Snapshot, batchID string) *BatchResult {
	if batchID == "" {
		batchID = uuid.New().String()
	}
	started := time.Now().UTC()

	s.log.Info().
		Str("batch_id", batchID).
		Int("patients", len(snaps)).
		Msg("batch started")

	statuses := make([]*PatientStatus, 0, len(snaps))
	for _, snap := range snaps {
		statuses = append(statuses, s.SimulatePatient(snap, batchID))
	}

	res := aggregate(batchID, started, statuses)

	s.log.Info().
		Str("batch_id", batchID).
		Float64("success_rate", res.SuccessRate).
		Float64("average_quality", res.AverageQuality).
		Dur("duration", res.Duration).
		Msg("batch finished")

	return res
}

func aggregate(batchID string, started time.Time, statuses []*PatientStatus) *BatchResult {
	res := &BatchResult{
		BatchID:      batchID,
		StartedAt:    started,
		Duration:     time.Since(started),
		PatientCount: len(statuses),
		QualityDistribution: map[string]int{
			BucketExcellent: 0, BucketGood: 0, BucketFair: 0, BucketPoor: 0,
		},
		DimensionAverages: make(map[scoring.Dimension]float64),
		AlertCounts:       make(map[monitor.Severity]int),
		StagePerformance:  make(map[Stage]StagePerformance),
		Statuses:          statuses,
	}
	if len(statuses) == 0 {
		return res
	}

	qualitySum, complianceSum := 0.0, 0.0
	dimSums := make(map[scoring.Dimension]float64)
	stageDur := make(map[Stage]time.Duration)
	stageErrs := make(map[Stage]int)

	for _, st := range statuses {
		q := st.CurrentQualityScore
		qualitySum += q
		complianceSum += st.ComplianceScore
		res.TotalViolations += st.ViolationCount

		switch {
		case q >= 0.9:
			res.QualityDistribution[BucketExcellent]++
		case q >= 0.8:
			res.QualityDistribution[BucketGood]++
		case q >= 0.7:
			res.QualityDistribution[BucketFair]++
		default:
			res.QualityDistribution[BucketPoor]++
		}

		if q >= 0.7 && st.CriticalDataIntact {
			res.SuccessCount++
		}

		for dim, v := range st.QualityByDimension {
			dimSums[dim] += v
		}
		for _, a := range st.Alerts {
			res.AlertCounts[a.Severity]++
		}
		for stage, d := range st.StageDurations {
			stageDur[stage] += d
		}
		for stage, n := range st.StageErrorCounts {
			stageErrs[stage] += n
		}
	}

	n := float64(len(statuses))
	res.AverageQuality = qualitySum / n
	res.AverageCompliance = complianceSum / n
	res.SuccessRate = float64(res.SuccessCount) / n
	for dim, sum := range dimSums {
		res.DimensionAverages[dim] = sum / n
	}
	for _, stage := range Stages() {
		success := 1 - float64(stageErrs[stage])/n
		if success < 0 {
			success = 0
		}
		res.StagePerformance[stage] = StagePerformance{
			AverageDuration: time.Duration(float64(stageDur[stage]) / n),
			SuccessRate:     success,
		}
	}

	return res
}
