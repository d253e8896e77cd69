package scoring

import (
	"github.com/rs/zerolog"

	"github.com/ehr/migration-sim/internal/domain/record"
)

// Scorer computes per-dimension and overall quality scores for a snapshot
// using the rules in its registry.
type Scorer struct {
	reg *Registry
	log zerolog.Logger
}

// NewScorer returns a scorer over the given registry.
func NewScorer(reg *Registry, log zerolog.Logger) *Scorer {
	return &Scorer{reg: reg, log: log}
}

// Score evaluates every enabled rule and returns the weighted overall score
// plus the per-dimension breakdown. All returned values are in [0,1]. A
// dimension with no rules scores 1.0. A predicate that errors or panics
// scores 0 for that rule; the fault is logged and never propagated.
func (s *Scorer) Score(snap *record.Snapshot) (float64, map[Dimension]float64) {
	byDim := make(map[Dimension]float64, len(DimensionWeights))
	overall := 0.0

	for _, dim := range Dimensions() {
		score := s.scoreDimension(dim, snap)
		byDim[dim] = score
		overall += score * DimensionWeights[dim]
	}

	return clamp01(overall), byDim
}

func (s *Scorer) scoreDimension(dim Dimension, snap *record.Snapshot) float64 {
	rules := s.reg.ByDimension(dim)
	if len(rules) == 0 {
		return 1.0
	}

	total := 0.0
	for _, rule := range rules {
		total += clamp01(s.evaluate(rule, snap) * rule.Criticality.Multiplier())
	}
	return clamp01(total / float64(len(rules)))
}

// evaluate runs one predicate with fail-safe pessimism: any error or panic
// yields 0 for the rule.
func (s *Scorer) evaluate(rule *Rule, snap *record.Snapshot) (result float64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn().Str("rule", rule.ID).Interface("panic", r).
				Msg("scoring rule panicked, scoring 0")
			result = 0
		}
	}()

	v, err := rule.Predicate(snap)
	if err != nil {
		s.log.Debug().Str("rule", rule.ID).Err(err).
			Msg("scoring rule failed, scoring 0")
		return 0
	}
	return clamp01(v)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
