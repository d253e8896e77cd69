package scoring

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ehr/migration-sim/internal/domain/record"
)

// Predicate evaluates a snapshot and returns a raw quality result in [0,1].
// A returned error (or a panic) is treated by the scorer as a result of 0
// for that rule.
type Predicate func(snap *record.Snapshot) (float64, error)

// Rule is a named, weighted validation predicate. Rules are immutable once
// registered.
type Rule struct {
	ID          string
	Dimension   Dimension
	Criticality Criticality
	Predicate   Predicate
	Enabled     bool
}

// Registry holds the process-wide rule set, grouped by dimension. Rules are
// registered at startup and shared read-only by all patients.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]*Rule
	byDim map[Dimension][]*Rule
}

// NewRegistry returns an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Rule),
		byDim: make(map[Dimension][]*Rule),
	}
}

// Register adds a rule. Duplicate IDs and nil predicates are rejected.
func (r *Registry) Register(rule Rule) error {
	if rule.ID == "" {
		return fmt.Errorf("scoring: rule id is required")
	}
	if rule.Predicate == nil {
		return fmt.Errorf("scoring: rule %q has no predicate", rule.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[rule.ID]; exists {
		return fmt.Errorf("scoring: rule %q already registered", rule.ID)
	}
	stored := rule
	r.byID[rule.ID] = &stored
	r.byDim[rule.Dimension] = append(r.byDim[rule.Dimension], &stored)
	return nil
}

// MustRegister registers a rule and panics on error. Intended for the
// default rule set installed at startup.
func (r *Registry) MustRegister(rule Rule) {
	if err := r.Register(rule); err != nil {
		panic(err)
	}
}

// ByDimension returns the enabled rules tagged with the given dimension.
func (r *Registry) ByDimension(d Dimension) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rules := make([]*Rule, 0, len(r.byDim[d]))
	for _, rule := range r.byDim[d] {
		if rule.Enabled {
			rules = append(rules, rule)
		}
	}
	return rules
}

// IDs returns all registered rule IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
