package degradation

import (
	"fmt"
	"math"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ehr/migration-sim/internal/domain/record"
)

// Simulator applies probabilistic degradation scenarios to a snapshot.
// It is safe for use from concurrent batch runs; the random source is
// guarded internally.
type Simulator struct {
	mu        sync.Mutex
	rng       *rand.Rand
	magnitude float64
	scenarios []Scenario
}

// NewSimulator returns a simulator with the default scenario table. If seed
// is 0 a time-based seed is chosen. magnitude scales how much data each
// triggered mutation damages; values outside (0, 1] are reset to 0.5.
func NewSimulator(seed int64, magnitude float64) *Simulator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if magnitude <= 0 || magnitude > 1 {
		magnitude = 0.5
	}
	return &Simulator{
		rng:       rand.New(rand.NewSource(seed)),
		magnitude: magnitude,
		scenarios: DefaultScenarios(),
	}
}

// Simulate evaluates every scenario as an independent Bernoulli trial with
//
//	p = base × (1 + severity) × stage affinity, capped at 1.0
//
// and applies the triggered mutations to a copy of the snapshot. It returns
// the mutated copy and one description per applied mutation. The input
// snapshot is never modified.
func (s *Simulator) Simulate(snap *record.Snapshot, fctx FailureContext) (*record.Snapshot, []string) {
	mutated := snap.Clone()
	var events []string

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sc := range s.scenarios {
		p := sc.BaseProbability * (1 + fctx.Severity) * StageAffinity(sc.Category, fctx.Stage)
		if p > 1 {
			p = 1
		}
		if s.rng.Float64() >= p {
			continue
		}
		if desc := s.apply(sc, mutated); desc != "" {
			events = append(events, desc)
		}
	}

	return mutated, events
}

// wellFormedDosage matches the dosage shape an undamaged record carries;
// appending stray characters breaks it.
var wellFormedDosage = regexp.MustCompile(`^(?i)[0-9]+(?:\.[0-9]+)?\s*(mg|mcg|g|ml|units?)$`)

// ForceDegrade damages the first field that is still intact: complete
// allergy list, valid MRN checksum, well-formed dosage, encryption markers,
// parseable birth date, in that order. Used on failure paths where the
// probabilistic pass left the record unscathed, so a recorded failure always
// has observable damage. It returns the mutated copy and a description, or
// the untouched copy and "" when every target is already damaged. The input
// snapshot is never modified.
func (s *Simulator) ForceDegrade(snap *record.Snapshot) (*record.Snapshot, string) {
	mutated := snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	return mutated, s.forceImpact(mutated)
}

func (s *Simulator) forceImpact(snap *record.Snapshot) string {
	if n := len(snap.Allergies); n > 0 && allergiesComplete(snap.Allergies) {
		snap.Allergies = nil
		return fmt.Sprintf("all %d allergy entr(ies) lost during migration", n)
	}

	if body, check, ok := checksumParts(snap.MRN); ok && record.LuhnCheckDigit(body) == check {
		before := snap.MRN
		snap.MRN = alterLastDigit(snap.MRN, s.rng)
		return fmt.Sprintf("mrn corrupted in transit: %q -> %q", before, snap.MRN)
	}

	for i := range snap.Medications {
		m := &snap.Medications[i]
		if wellFormedDosage.MatchString(strings.TrimSpace(m.Dosage)) {
			before := m.Dosage
			m.Dosage += "~?"
			return fmt.Sprintf("medication %q dosage corrupted: %q -> %q", m.Name, before, m.Dosage)
		}
	}

	var stripped []string
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"ssn", &snap.SSN},
		{"phone", &snap.Phone},
		{"email", &snap.Email},
	} {
		if strings.HasPrefix(*f.value, "ENCRYPTED_") {
			*f.value = strings.TrimPrefix(*f.value, "ENCRYPTED_")
			stripped = append(stripped, f.name)
		}
	}
	if len(stripped) > 0 {
		return fmt.Sprintf("encryption markers stripped from PHI fields: %s", strings.Join(stripped, ", "))
	}

	if t, err := time.Parse("2006-01-02", snap.BirthDate); err == nil {
		before := snap.BirthDate
		snap.BirthDate = t.Format("01/02/2006")
		return fmt.Sprintf("birth date rewritten from %q to %q", before, snap.BirthDate)
	}

	return ""
}

func allergiesComplete(allergies []record.Allergy) bool {
	for _, a := range allergies {
		if a.Substance == "" || a.Severity == "" {
			return false
		}
	}
	return true
}

// checksumParts splits the digits of an identifier into checksum body and
// check digit.
func checksumParts(id string) (body string, check int, ok bool) {
	var digits []rune
	for _, r := range id {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 2 {
		return "", 0, false
	}
	return string(digits[:len(digits)-1]), int(digits[len(digits)-1] - '0'), true
}

// alterLastDigit replaces the last digit with a different one, which always
// invalidates a previously valid check digit.
func alterLastDigit(id string, rng *rand.Rand) string {
	runes := []rune(id)
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] >= '0' && runes[i] <= '9' {
			d := int(runes[i] - '0')
			runes[i] = rune('0' + (d+1+rng.Intn(8))%10)
			return string(runes)
		}
	}
	return id
}

func (s *Simulator) apply(sc Scenario, snap *record.Snapshot) string {
	switch sc.Category {
	case CategoryCorruption:
		return s.corruptDosage(snap)
	case CategoryDataLoss:
		return s.dropAllergies(snap)
	case CategoryTruncation:
		return s.truncateDemographics(snap)
	case CategoryFormatError:
		return s.rewriteDates(snap)
	case CategoryMappingError:
		return s.corruptCodes(snap)
	case CategorySecurityBreach:
		return s.stripEncryption(snap)
	case CategoryPrecisionLoss:
		return s.roundVitals(snap)
	}
	return ""
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

func (s *Simulator) corruptDosage(snap *record.Snapshot) string {
	if len(snap.Medications) == 0 {
		return ""
	}
	i := s.rng.Intn(len(snap.Medications))
	m := &snap.Medications[i]
	before := m.Dosage

	switch s.rng.Intn(3) {
	case 0: // unit swap
		switch {
		case strings.Contains(m.Dosage, "mcg"):
			m.Dosage = strings.Replace(m.Dosage, "mcg", "mg", 1)
		case strings.Contains(m.Dosage, "mg"):
			m.Dosage = strings.Replace(m.Dosage, "mg", "mcg", 1)
		default:
			m.Dosage = m.Dosage + " mg"
		}
	case 1: // truncation
		if len(m.Dosage) > 2 {
			m.Dosage = m.Dosage[:len(m.Dosage)/2]
		} else {
			m.Dosage = ""
		}
	default: // stray characters
		m.Dosage = m.Dosage + "~?"
	}

	return fmt.Sprintf("medication %q dosage corrupted: %q -> %q", m.Name, before, m.Dosage)
}

func (s *Simulator) dropAllergies(snap *record.Snapshot) string {
	if len(snap.Allergies) == 0 {
		return ""
	}
	kept := snap.Allergies[:0]
	dropped := 0
	for _, a := range snap.Allergies {
		if s.rng.Float64() < 0.5*s.magnitude+0.25 {
			dropped++
			continue
		}
		kept = append(kept, a)
	}
	if dropped == 0 {
		dropped = 1
		kept = kept[:len(kept)-1]
	}
	snap.Allergies = kept
	return fmt.Sprintf("%d allergy entr(ies) lost during migration", dropped)
}

func (s *Simulator) truncateDemographics(snap *record.Snapshot) string {
	target := "name"
	value := &snap.Name
	if s.rng.Intn(2) == 1 && len(snap.Address) > len(snap.Name) {
		target, value = "address", &snap.Address
	}
	if len(*value) < 5 {
		return ""
	}
	cut := len(*value) * 6 / 10
	before := *value
	*value = (*value)[:cut]
	return fmt.Sprintf("%s truncated from %d to %d characters (%q -> %q)",
		target, len(before), cut, before, *value)
}

func (s *Simulator) rewriteDates(snap *record.Snapshot) string {
	t, err := time.Parse("2006-01-02", snap.BirthDate)
	if err != nil {
		return ""
	}
	formats := []string{"01/02/2006", "02-Jan-2006", "20060102"}
	f := formats[s.rng.Intn(len(formats))]
	before := snap.BirthDate
	snap.BirthDate = t.Format(f)
	return fmt.Sprintf("birth date rewritten from %q to %q", before, snap.BirthDate)
}

func (s *Simulator) corruptCodes(snap *record.Snapshot) string {
	if len(snap.Conditions) > 0 && s.rng.Intn(2) == 0 {
		i := s.rng.Intn(len(snap.Conditions))
		c := &snap.Conditions[i]
		before := c.Code
		c.Code = transposeDigits(c.Code, s.rng)
		if c.Code == before {
			c.Code = before + "X"
		}
		return fmt.Sprintf("condition code corrupted: %q -> %q", before, c.Code)
	}
	if len(snap.Observations) > 0 {
		i := s.rng.Intn(len(snap.Observations))
		o := &snap.Observations[i]
		before := o.Value
		if s.rng.Intn(2) == 0 {
			o.Value = before * 10 // decimal shift
		} else {
			o.Value = before / 10
		}
		return fmt.Sprintf("observation %q value shifted: %v -> %v", o.Display, before, o.Value)
	}
	return ""
}

func (s *Simulator) stripEncryption(snap *record.Snapshot) string {
	var stripped []string
	fields := []struct {
		name  string
		value *string
	}{
		{"ssn", &snap.SSN},
		{"phone", &snap.Phone},
		{"email", &snap.Email},
	}
	for _, f := range fields {
		if strings.HasPrefix(*f.value, "ENCRYPTED_") && s.rng.Float64() < 0.5+0.5*s.magnitude {
			*f.value = strings.TrimPrefix(*f.value, "ENCRYPTED_")
			stripped = append(stripped, f.name)
		}
	}
	if len(stripped) == 0 {
		return ""
	}
	return fmt.Sprintf("encryption markers stripped from PHI fields: %s", strings.Join(stripped, ", "))
}

func (s *Simulator) roundVitals(snap *record.Snapshot) string {
	if len(snap.Observations) == 0 {
		return ""
	}
	rounded := 0
	for i := range snap.Observations {
		o := &snap.Observations[i]
		if o.Value != math.Round(o.Value) {
			o.Value = math.Round(o.Value)
			rounded++
		}
	}
	if rounded == 0 {
		return ""
	}
	return fmt.Sprintf("numeric precision lost on %d vital-sign value(s)", rounded)
}

// transposeDigits swaps two adjacent digits in a coded value.
func transposeDigits(code string, rng *rand.Rand) string {
	runes := []rune(code)
	var digitIdx []int
	for i, r := range runes {
		if r >= '0' && r <= '9' {
			digitIdx = append(digitIdx, i)
		}
	}
	if len(digitIdx) < 2 {
		return code
	}
	k := rng.Intn(len(digitIdx) - 1)
	i, j := digitIdx[k], digitIdx[k+1]
	runes[i], runes[j] = runes[j], runes[i]
	return string(runes)
}
