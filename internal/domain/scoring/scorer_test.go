package scoring

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/migration-sim/internal/domain/record"
)

func testScorer(reg *Registry) *Scorer {
	return NewScorer(reg, zerolog.Nop())
}

func cleanSnapshot() *record.Snapshot {
	return record.NewGenerator(42, record.DefaultGeneratorConfig()).Generate()
}

// ---------------------------------------------------------------------------
// Weights and bounds
// ---------------------------------------------------------------------------

func TestDimensionWeights_SumToOne(t *testing.T) {
	sum := 0.0
	for _, dim := range Dimensions() {
		w, ok := DimensionWeights[dim]
		if !ok {
			t.Fatalf("dimension %q has no weight", dim)
		}
		sum += w
	}
	if sum < 0.999999 || sum > 1.000001 {
		t.Fatalf("weights sum to %v, want 1.0", sum)
	}
}

func TestScorer_ScoresStayInRange(t *testing.T) {
	s := testScorer(DefaultRegistry())

	snaps := []*record.Snapshot{
		cleanSnapshot(),
		{}, // everything missing
		{Name: "X", MRN: "garbage", BirthDate: "not-a-date", Gender: "??"},
	}
	for _, snap := range snaps {
		overall, byDim := s.Score(snap)
		if overall < 0 || overall > 1 {
			t.Fatalf("overall score %v out of [0,1] for %+v", overall, snap)
		}
		for dim, v := range byDim {
			if v < 0 || v > 1 {
				t.Fatalf("dimension %q score %v out of [0,1]", dim, v)
			}
		}
		if len(byDim) != len(Dimensions()) {
			t.Fatalf("expected %d dimension scores, got %d", len(Dimensions()), len(byDim))
		}
	}
}

func TestScorer_DimensionWithoutRulesScoresOne(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Rule{
		ID: "only-completeness", Dimension: DimCompleteness,
		Criticality: CriticalityMedium, Enabled: true,
		Predicate: func(*record.Snapshot) (float64, error) { return 0.5, nil },
	})

	_, byDim := testScorer(reg).Score(&record.Snapshot{})
	if byDim[DimAccuracy] != 1.0 {
		t.Fatalf("dimension without rules scored %v, want 1.0", byDim[DimAccuracy])
	}
	if byDim[DimCompleteness] != 0.5 {
		t.Fatalf("completeness scored %v, want 0.5", byDim[DimCompleteness])
	}
}

// ---------------------------------------------------------------------------
// Fail-safe evaluation
// ---------------------------------------------------------------------------

func TestScorer_PredicatePanicScoresZero(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Rule{
		ID: "panics", Dimension: DimTimeliness,
		Criticality: CriticalityCritical, Enabled: true,
		Predicate: func(*record.Snapshot) (float64, error) { panic("boom") },
	})

	_, byDim := testScorer(reg).Score(&record.Snapshot{})
	if byDim[DimTimeliness] != 0 {
		t.Fatalf("panicking rule scored %v, want 0", byDim[DimTimeliness])
	}
}

func TestScorer_PredicateErrorScoresZero(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Rule{
		ID: "errors", Dimension: DimValidity,
		Criticality: CriticalityHigh, Enabled: true,
		Predicate: func(*record.Snapshot) (float64, error) { return 0.9, errors.New("broken") },
	})

	_, byDim := testScorer(reg).Score(&record.Snapshot{})
	if byDim[DimValidity] != 0 {
		t.Fatalf("erroring rule scored %v, want 0", byDim[DimValidity])
	}
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry_RejectsDuplicateID(t *testing.T) {
	reg := NewRegistry()
	rule := Rule{
		ID: "dup", Dimension: DimCompleteness,
		Criticality: CriticalityMedium, Enabled: true,
		Predicate: func(*record.Snapshot) (float64, error) { return 1, nil },
	}
	if err := reg.Register(rule); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := reg.Register(rule); err == nil {
		t.Fatal("duplicate registration accepted")
	}
}

func TestRegistry_RejectsNilPredicate(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(Rule{ID: "nil-pred", Dimension: DimAccuracy, Enabled: true})
	if err == nil {
		t.Fatal("rule with nil predicate accepted")
	}
}

func TestRegistry_DisabledRulesExcluded(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(Rule{
		ID: "off", Dimension: DimAccuracy,
		Criticality: CriticalityMedium, Enabled: false,
		Predicate: func(*record.Snapshot) (float64, error) { return 0, nil },
	})
	if got := len(reg.ByDimension(DimAccuracy)); got != 0 {
		t.Fatalf("disabled rule returned by ByDimension, got %d rules", got)
	}

	// Dimension with only a disabled rule behaves as having none.
	_, byDim := testScorer(reg).Score(&record.Snapshot{})
	if byDim[DimAccuracy] != 1.0 {
		t.Fatalf("accuracy scored %v, want 1.0", byDim[DimAccuracy])
	}
}

// ---------------------------------------------------------------------------
// Default rule set behavior
// ---------------------------------------------------------------------------

func TestDefaultRules_CleanRecordScoresHigh(t *testing.T) {
	s := testScorer(DefaultRegistry())
	overall, byDim := s.Score(cleanSnapshot())

	if overall < 0.85 {
		t.Fatalf("clean generated record scored %v, want >= 0.85 (dims %v)", overall, byDim)
	}
	for _, dim := range []Dimension{DimCompleteness, DimAccuracy, DimValidity, DimHIPAACompliance} {
		if byDim[dim] != 1.0 {
			t.Errorf("clean record %s = %v, want 1.0", dim, byDim[dim])
		}
	}
}

func TestDefaultRules_DegradedRecordDropsDimensions(t *testing.T) {
	s := testScorer(DefaultRegistry())

	snap := cleanSnapshot()
	baseline, _ := s.Score(snap)

	snap.Allergies = nil // documentation gap
	last := len(snap.MRN) - 1
	if snap.MRN[last] == '9' {
		snap.MRN = snap.MRN[:last] + "0"
	} else {
		snap.MRN = snap.MRN[:last] + "9"
	} // breaks the Luhn checksum
	snap.SSN = "123-45-6789"
	snap.Phone = "(555) 123-4567"
	snap.Email = "exposed@example.org"

	overall, byDim := s.Score(snap)
	if overall >= baseline {
		t.Fatalf("degraded record scored %v, baseline %v; expected a drop", overall, baseline)
	}
	if byDim[DimCompleteness] >= 1.0 {
		t.Errorf("empty allergy list left completeness at %v, want < 1.0", byDim[DimCompleteness])
	}
	if byDim[DimAccuracy] >= 0.9 {
		t.Errorf("broken MRN checksum left accuracy at %v, want < 0.9", byDim[DimAccuracy])
	}
	if byDim[DimHIPAACompliance] != 0 {
		t.Errorf("fully exposed PHI scored %v, want 0", byDim[DimHIPAACompliance])
	}
}

func TestPHIProtected(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", true},
		{"ENCRYPTED_123-45-6789", true},
		{"***-**-6789", true},
		{"123-45-6789", false},
		{"jane@example.org", false},
	}
	for _, tt := range tests {
		if got := PHIProtected(tt.value); got != tt.want {
			t.Errorf("PHIProtected(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestCriticality_Multiplier(t *testing.T) {
	tests := []struct {
		c    Criticality
		want float64
	}{
		{CriticalityCritical, 4.0},
		{CriticalityHigh, 2.0},
		{CriticalityMedium, 1.0},
		{CriticalityLow, 0.5},
	}
	for _, tt := range tests {
		if got := tt.c.Multiplier(); got != tt.want {
			t.Errorf("Multiplier(%s) = %v, want %v", tt.c, got, tt.want)
		}
	}
}
