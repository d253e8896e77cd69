package migration

import (
	"math"
	"testing"

	"github.com/ehr/migration-sim/internal/domain/record"
)

func TestSimulateBatch_BucketsSumToPatientCount(t *testing.T) {
	sim := testSimulator(Config{Seed: 99})
	gen := record.NewGenerator(99, record.DefaultGeneratorConfig())

	res := sim.SimulateBatch(gen.GenerateBatch(60), "")

	if res.BatchID == "" {
		t.Fatal("empty batch id not replaced")
	}
	if res.PatientCount != 60 || len(res.Statuses) != 60 {
		t.Fatalf("patient count %d / %d statuses, want 60", res.PatientCount, len(res.Statuses))
	}

	sum := 0
	for _, bucket := range []string{BucketExcellent, BucketGood, BucketFair, BucketPoor} {
		n, ok := res.QualityDistribution[bucket]
		if !ok {
			t.Fatalf("bucket %q missing from distribution %v", bucket, res.QualityDistribution)
		}
		sum += n
	}
	if sum != 60 {
		t.Fatalf("bucket counts sum to %d, want 60: %v", sum, res.QualityDistribution)
	}
}

func TestSimulateBatch_SuccessSemantics(t *testing.T) {
	sim := testSimulator(Config{Seed: 5})
	gen := record.NewGenerator(5, record.DefaultGeneratorConfig())

	res := sim.SimulateBatch(gen.GenerateBatch(80), "success-batch")

	want := 0
	for _, st := range res.Statuses {
		if st.CurrentQualityScore >= 0.7 && st.CriticalDataIntact {
			want++
		}
	}
	if res.SuccessCount != want {
		t.Fatalf("success count %d, want %d", res.SuccessCount, want)
	}
	if math.Abs(res.SuccessRate-float64(want)/80) > 1e-9 {
		t.Fatalf("success rate %v, want %v", res.SuccessRate, float64(want)/80)
	}
}

func TestSimulateBatch_Averages(t *testing.T) {
	sim := testSimulator(Config{Seed: 31})
	gen := record.NewGenerator(31, record.DefaultGeneratorConfig())

	res := sim.SimulateBatch(gen.GenerateBatch(40), "avg-batch")

	qualitySum, complianceSum, violations := 0.0, 0.0, 0
	for _, st := range res.Statuses {
		qualitySum += st.CurrentQualityScore
		complianceSum += st.ComplianceScore
		violations += st.ViolationCount
	}
	if math.Abs(res.AverageQuality-qualitySum/40) > 1e-9 {
		t.Fatalf("average quality %v, want %v", res.AverageQuality, qualitySum/40)
	}
	if math.Abs(res.AverageCompliance-complianceSum/40) > 1e-9 {
		t.Fatalf("average compliance %v, want %v", res.AverageCompliance, complianceSum/40)
	}
	if res.TotalViolations != violations {
		t.Fatalf("total violations %d, want %d", res.TotalViolations, violations)
	}

	for _, stage := range Stages() {
		perf, ok := res.StagePerformance[stage]
		if !ok {
			t.Fatalf("no performance entry for stage %s", stage)
		}
		if perf.SuccessRate < 0 || perf.SuccessRate > 1 {
			t.Fatalf("stage %s success rate %v out of [0,1]", stage, perf.SuccessRate)
		}
	}
}

func TestSimulateBatch_FaultedPatientDoesNotAbortBatch(t *testing.T) {
	sim := testSimulator(Config{Rates: perfectRates(), Seed: 3})
	gen := record.NewGenerator(3, record.DefaultGeneratorConfig())

	snaps := gen.GenerateBatch(3)
	snaps[1] = nil // faults mid-batch

	res := sim.SimulateBatch(snaps, "fault-batch")
	if len(res.Statuses) != 3 {
		t.Fatalf("batch returned %d statuses, want 3", len(res.Statuses))
	}
	if res.Statuses[1].OverallStatus != OutcomeFailed {
		t.Fatalf("faulted patient outcome %q, want failed", res.Statuses[1].OverallStatus)
	}
	for _, i := range []int{0, 2} {
		if res.Statuses[i].OverallStatus != OutcomeCompleted {
			t.Fatalf("healthy patient %d outcome %q, want completed", i, res.Statuses[i].OverallStatus)
		}
	}
}

func TestEmptyBatch(t *testing.T) {
	sim := testSimulator(Config{Seed: 1})
	res := sim.SimulateBatch(nil, "empty")
	if res.PatientCount != 0 || res.SuccessRate != 0 || res.AverageQuality != 0 {
		t.Fatalf("empty batch aggregates not zeroed: %+v", res)
	}
}

func TestRateTable_Fallbacks(t *testing.T) {
	rt := RateTable{
		StageDefaults: map[Stage]float64{StageExtract: 0.8},
		Substage: map[Stage]map[string]float64{
			StageExtract: {"read_records": 0.6},
		},
	}
	if got := rt.Rate(StageExtract, "read_records"); got != 0.6 {
		t.Errorf("substage override = %v, want 0.6", got)
	}
	if got := rt.Rate(StageExtract, "connect_source"); got != 0.8 {
		t.Errorf("stage default = %v, want 0.8", got)
	}
	if got := rt.Rate(StageLoad, "finalize"); got != 0.9 {
		t.Errorf("global fallback = %v, want 0.9", got)
	}
}
