package scoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/migration-sim/internal/domain/record"
)

// DefaultRegistry returns a registry populated with the default healthcare
// rule set.
func DefaultRegistry() *Registry {
	reg := NewRegistry()
	RegisterDefaultRules(reg)
	return reg
}

// RegisterDefaultRules installs the default rule set: demographic and
// allergy completeness, MRN checksum and dosage-range accuracy, date
// timeline consistency, observation recency, format validity, clinical
// relevance, and PHI protection status.
func RegisterDefaultRules(reg *Registry) {
	reg.MustRegister(Rule{
		ID: "required_demographics", Dimension: DimCompleteness,
		Criticality: CriticalityCritical, Enabled: true,
		Predicate: requiredDemographics,
	})
	reg.MustRegister(Rule{
		ID: "allergy_completeness", Dimension: DimCompleteness,
		Criticality: CriticalityHigh, Enabled: true,
		Predicate: allergyCompleteness,
	})
	reg.MustRegister(Rule{
		ID: "mrn_checksum", Dimension: DimAccuracy,
		Criticality: CriticalityCritical, Enabled: true,
		Predicate: mrnChecksum,
	})
	reg.MustRegister(Rule{
		ID: "medication_dosage_range", Dimension: DimAccuracy,
		Criticality: CriticalityCritical, Enabled: true,
		Predicate: medicationDosageRange,
	})
	reg.MustRegister(Rule{
		ID: "date_timeline", Dimension: DimConsistency,
		Criticality: CriticalityHigh, Enabled: true,
		Predicate: dateTimeline,
	})
	reg.MustRegister(Rule{
		ID: "observation_recency", Dimension: DimTimeliness,
		Criticality: CriticalityMedium, Enabled: true,
		Predicate: observationRecency,
	})
	reg.MustRegister(Rule{
		ID: "field_formats", Dimension: DimValidity,
		Criticality: CriticalityHigh, Enabled: true,
		Predicate: fieldFormats,
	})
	reg.MustRegister(Rule{
		ID: "coded_conditions", Dimension: DimClinicalRelevance,
		Criticality: CriticalityMedium, Enabled: true,
		Predicate: codedConditions,
	})
	reg.MustRegister(Rule{
		ID: "vitals_physiologic_range", Dimension: DimClinicalRelevance,
		Criticality: CriticalityHigh, Enabled: true,
		Predicate: vitalsPhysiologicRange,
	})
	reg.MustRegister(Rule{
		ID: "phi_protection_status", Dimension: DimHIPAACompliance,
		Criticality: CriticalityCritical, Enabled: true,
		Predicate: phiProtectionStatus,
	})
}

// PHIProtected reports whether a PHI field value is considered protected:
// empty, prefixed "ENCRYPTED_", or containing a mask character.
func PHIProtected(value string) bool {
	return value == "" ||
		strings.HasPrefix(value, "ENCRYPTED_") ||
		strings.Contains(value, "*")
}

// ---------------------------------------------------------------------------
// Completeness
// ---------------------------------------------------------------------------

func requiredDemographics(snap *record.Snapshot) (float64, error) {
	fields := []string{snap.Name, snap.MRN, snap.BirthDate, snap.Gender, snap.Address}
	present := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			present++
		}
	}
	// Phone and email count as one joint contact field.
	total := len(fields) + 1
	if snap.Phone != "" || snap.Email != "" {
		present++
	}
	return float64(present) / float64(total), nil
}

func allergyCompleteness(snap *record.Snapshot) (float64, error) {
	if len(snap.Allergies) == 0 {
		// Migrated records must carry explicit allergy entries (including
		// "no known allergies"); an empty list is a documentation gap.
		return 0.4, nil
	}
	complete := 0
	for _, a := range snap.Allergies {
		if a.Substance != "" && a.Severity != "" {
			complete++
		}
	}
	return float64(complete) / float64(len(snap.Allergies)), nil
}

// ---------------------------------------------------------------------------
// Accuracy
// ---------------------------------------------------------------------------

func mrnChecksum(snap *record.Snapshot) (float64, error) {
	digits := digitsOf(snap.MRN)
	if len(digits) < 2 {
		return 0, fmt.Errorf("mrn %q has no checksummable digits", snap.MRN)
	}
	body, check := digits[:len(digits)-1], int(digits[len(digits)-1]-'0')
	if record.LuhnCheckDigit(body) != check {
		return 0, nil
	}
	return 1, nil
}

var dosagePattern = regexp.MustCompile(`^([0-9]+(?:\.[0-9]+)?)\s*(mg|mcg|g|ml|units?)$`)

func medicationDosageRange(snap *record.Snapshot) (float64, error) {
	if len(snap.Medications) == 0 {
		return 1, nil
	}
	ok := 0
	for _, m := range snap.Medications {
		match := dosagePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(m.Dosage)))
		if match == nil {
			continue
		}
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil || v <= 0 || v > 5000 {
			continue
		}
		ok++
	}
	return float64(ok) / float64(len(snap.Medications)), nil
}

// ---------------------------------------------------------------------------
// Consistency
// ---------------------------------------------------------------------------

func dateTimeline(snap *record.Snapshot) (float64, error) {
	birth, err := time.Parse("2006-01-02", snap.BirthDate)
	if err != nil {
		return 0, fmt.Errorf("unparseable birth date %q", snap.BirthDate)
	}
	if birth.After(time.Now()) {
		return 0, nil
	}
	if len(snap.Observations) == 0 {
		return 1, nil
	}
	ordered := 0
	for _, o := range snap.Observations {
		taken, err := time.Parse("2006-01-02", o.Taken)
		if err != nil {
			continue
		}
		if !taken.Before(birth) {
			ordered++
		}
	}
	return float64(ordered) / float64(len(snap.Observations)), nil
}

// ---------------------------------------------------------------------------
// Timeliness
// ---------------------------------------------------------------------------

func observationRecency(snap *record.Snapshot) (float64, error) {
	if len(snap.Observations) == 0 {
		return 0.7, nil
	}
	cutoff := time.Now().AddDate(-3, 0, 0)
	recent := 0
	for _, o := range snap.Observations {
		taken, err := time.Parse("2006-01-02", o.Taken)
		if err != nil {
			continue
		}
		if taken.After(cutoff) {
			recent++
		}
	}
	return float64(recent) / float64(len(snap.Observations)), nil
}

// ---------------------------------------------------------------------------
// Validity
// ---------------------------------------------------------------------------

var icd10Pattern = regexp.MustCompile(`^[A-Z][0-9]{2}(\.[0-9A-Z]{1,4})?$`)

func fieldFormats(snap *record.Snapshot) (float64, error) {
	checks, passed := 0, 0

	checks++
	switch snap.Gender {
	case "male", "female", "other", "unknown":
		passed++
	}

	for _, c := range snap.Conditions {
		checks++
		if icd10Pattern.MatchString(c.Code) {
			passed++
		}
	}

	return float64(passed) / float64(checks), nil
}

// ---------------------------------------------------------------------------
// Clinical relevance
// ---------------------------------------------------------------------------

func codedConditions(snap *record.Snapshot) (float64, error) {
	if len(snap.Conditions) == 0 {
		return 0.8, nil
	}
	coded := 0
	for _, c := range snap.Conditions {
		if c.Code != "" && c.Display != "" {
			coded++
		}
	}
	return float64(coded) / float64(len(snap.Conditions)), nil
}

// physiologicRanges bounds plausibility checks per LOINC code. Values
// outside the wide bound suggest unit or precision corruption.
var physiologicRanges = map[string][2]float64{
	"8867-4":  {20, 250},  // heart rate
	"8310-5":  {30, 43},   // body temperature (Cel)
	"8480-6":  {50, 260},  // systolic BP
	"8462-4":  {30, 160},  // diastolic BP
	"2708-6":  {50, 100},  // SpO2
	"9279-1":  {4, 60},    // respiratory rate
	"2339-0":  {20, 600},  // glucose
	"29463-7": {2, 350},   // weight
}

func vitalsPhysiologicRange(snap *record.Snapshot) (float64, error) {
	checked, ok := 0, 0
	for _, o := range snap.Observations {
		bounds, known := physiologicRanges[o.Code]
		if !known {
			continue
		}
		checked++
		if o.Value >= bounds[0] && o.Value <= bounds[1] {
			ok++
		}
	}
	if checked == 0 {
		return 1, nil
	}
	return float64(ok) / float64(checked), nil
}

// ---------------------------------------------------------------------------
// HIPAA compliance
// ---------------------------------------------------------------------------

func phiProtectionStatus(snap *record.Snapshot) (float64, error) {
	// Name and MRN are working identifiers during migration; the sensitive
	// elements are the direct identifiers below.
	sensitive := []string{snap.SSN, snap.Phone, snap.Email}
	protected := 0
	for _, v := range sensitive {
		if PHIProtected(v) {
			protected++
		}
	}
	return float64(protected) / float64(len(sensitive)), nil
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
