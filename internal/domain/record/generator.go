package record

import (
	"fmt"
	"math/rand"
	"time"
)

type codeEntry struct {
	Code    string
	Display string
}

type vitalDef struct {
	Code    string
	Display string
	Unit    string
	Low     float64
	High    float64
}

var (
	firstNames = []string{
		"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
		"Linda", "David", "Elizabeth", "William", "Barbara", "Richard",
		"Susan", "Joseph", "Jessica", "Thomas", "Sarah", "Daniel", "Karen",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
		"Davis", "Rodriguez", "Martinez", "Wilson", "Anderson", "Taylor",
		"Thomas", "Moore", "Jackson", "Lee", "Perez", "White", "Harris",
	}
	streets = []string{
		"123 Main St", "456 Oak Ave", "789 Elm St", "321 Pine Rd",
		"654 Maple Dr", "987 Cedar Ln", "147 Birch Blvd", "258 Walnut Way",
	}
	cities = []string{
		"Springfield", "Riverton", "Fairview", "Lakewood", "Georgetown",
		"Clinton", "Madison", "Salem",
	}
	states = []string{"NY", "CA", "IL", "TX", "AZ", "PA", "FL", "OH"}

	icd10Conditions = []codeEntry{
		{"E11.9", "Type 2 diabetes mellitus without complications"},
		{"I10", "Essential (primary) hypertension"},
		{"J45.909", "Unspecified asthma, uncomplicated"},
		{"E78.5", "Hyperlipidemia, unspecified"},
		{"M54.5", "Low back pain"},
		{"F32.9", "Major depressive disorder, single episode"},
		{"K21.0", "Gastro-esophageal reflux disease with esophagitis"},
		{"N39.0", "Urinary tract infection, site not specified"},
		{"E03.9", "Hypothyroidism, unspecified"},
		{"G47.00", "Insomnia, unspecified"},
	}

	medicationPool = []Medication{
		{Name: "Metformin", Dosage: "500 mg", Frequency: "twice daily", Route: "oral"},
		{Name: "Lisinopril", Dosage: "10 mg", Frequency: "once daily", Route: "oral"},
		{Name: "Atorvastatin", Dosage: "20 mg", Frequency: "once daily", Route: "oral"},
		{Name: "Omeprazole", Dosage: "20 mg", Frequency: "once daily", Route: "oral"},
		{Name: "Levothyroxine", Dosage: "50 mcg", Frequency: "once daily", Route: "oral"},
		{Name: "Amlodipine", Dosage: "5 mg", Frequency: "once daily", Route: "oral"},
		{Name: "Sertraline", Dosage: "50 mg", Frequency: "once daily", Route: "oral"},
		{Name: "Albuterol", Dosage: "90 mcg", Frequency: "as needed", Route: "inhalation"},
		{Name: "Gabapentin", Dosage: "300 mg", Frequency: "three times daily", Route: "oral"},
		{Name: "Furosemide", Dosage: "40 mg", Frequency: "once daily", Route: "oral"},
	}

	allergyPool = []Allergy{
		{Substance: "Penicillin", Reaction: "hives", Severity: "high"},
		{Substance: "Ibuprofen", Reaction: "rash", Severity: "low"},
		{Substance: "Sulfonamide", Reaction: "anaphylaxis", Severity: "critical"},
		{Substance: "Latex", Reaction: "contact dermatitis", Severity: "medium"},
		{Substance: "Peanut", Reaction: "anaphylaxis", Severity: "critical"},
		{Substance: "Shellfish", Reaction: "swelling", Severity: "high"},
		{Substance: "Codeine", Reaction: "nausea", Severity: "low"},
	}

	vitalDefs = []vitalDef{
		{"8867-4", "Heart rate", "beats/minute", 52, 105},
		{"8310-5", "Body temperature", "Cel", 36.1, 38.2},
		{"8480-6", "Systolic blood pressure", "mmHg", 95, 175},
		{"8462-4", "Diastolic blood pressure", "mmHg", 55, 105},
		{"2708-6", "Oxygen saturation", "%", 93, 100},
		{"9279-1", "Respiratory rate", "breaths/minute", 11, 24},
		{"2339-0", "Glucose", "mg/dL", 65, 240},
		{"29463-7", "Body weight", "kg", 45, 140},
	}

	genders = []string{"male", "female", "other", "unknown"}
)

// GeneratorConfig controls the volume and protection status of generated
// synthetic patients.
type GeneratorConfig struct {
	MedicationsPerPatient  int
	AllergiesPerPatient    int
	ConditionsPerPatient   int
	ObservationsPerPatient int
	// EncryptPHI prefixes SSN, phone, and email values with "ENCRYPTED_" so
	// generated patients start in a protected posture.
	EncryptPHI bool
}

// DefaultGeneratorConfig returns the generation defaults used by the
// simulator CLI and the sandbox API.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MedicationsPerPatient:  3,
		AllergiesPerPatient:    2,
		ConditionsPerPatient:   2,
		ObservationsPerPatient: 4,
		EncryptPHI:             true,
	}
}

// Generator produces deterministic synthetic patient snapshots.
type Generator struct {
	rng     *rand.Rand
	cfg     GeneratorConfig
	counter uint64
}

// NewGenerator returns a generator seeded for reproducibility. If seed is 0
// a time-based seed is chosen.
func NewGenerator(seed int64, cfg GeneratorConfig) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed)), cfg: cfg}
}

func (g *Generator) nextID() string {
	g.counter++
	return fmt.Sprintf("pat-%08x-%04x", g.rng.Uint32(), g.counter)
}

func (g *Generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *Generator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (g *Generator) randomPhone() string {
	return fmt.Sprintf("(%03d) %03d-%04d",
		200+g.rng.Intn(800), 200+g.rng.Intn(800), g.rng.Intn(10000))
}

// GenerateMRN produces a 9-digit MRN whose final digit is a Luhn check
// digit, so generated MRNs pass the checksum accuracy rule.
func (g *Generator) GenerateMRN() string {
	digits := make([]int, 8)
	for i := range digits {
		digits[i] = g.rng.Intn(10)
	}
	body := ""
	for _, d := range digits {
		body += fmt.Sprintf("%d", d)
	}
	return fmt.Sprintf("MRN%s%d", body, LuhnCheckDigit(body))
}

// LuhnCheckDigit computes the Luhn check digit for a string of decimal
// digits. Non-digit characters make the result undefined; callers validate
// input first.
func LuhnCheckDigit(digits string) int {
	sum := 0
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return (10 - sum%10) % 10
}

// Generate produces one synthetic patient snapshot.
func (g *Generator) Generate() *Snapshot {
	first := g.pick(firstNames)
	last := g.pick(lastNames)

	snap := &Snapshot{
		PatientID: g.nextID(),
		Name:      first + " " + last,
		MRN:       g.GenerateMRN(),
		BirthDate: g.randomDate(1940, 2005),
		Gender:    genders[g.rng.Intn(len(genders))],
		Phone:     g.randomPhone(),
		Email:     fmt.Sprintf("%s.%s%d@example.org", first, last, g.rng.Intn(1000)),
		Address:   fmt.Sprintf("%s, %s, %s", g.pick(streets), g.pick(cities), g.pick(states)),
		SSN:       fmt.Sprintf("%03d-%02d-%04d", 100+g.rng.Intn(800), g.rng.Intn(100), g.rng.Intn(10000)),
		Ext:       map[string]string{"source_system": "legacy-his"},
	}

	for i := 0; i < g.cfg.MedicationsPerPatient; i++ {
		snap.Medications = append(snap.Medications, medicationPool[g.rng.Intn(len(medicationPool))])
	}
	for i := 0; i < g.cfg.AllergiesPerPatient; i++ {
		snap.Allergies = append(snap.Allergies, allergyPool[g.rng.Intn(len(allergyPool))])
	}
	for i := 0; i < g.cfg.ConditionsPerPatient; i++ {
		c := icd10Conditions[g.rng.Intn(len(icd10Conditions))]
		snap.Conditions = append(snap.Conditions, Condition{
			Code:    c.Code,
			Display: c.Display,
			Onset:   g.randomDate(2010, 2024),
		})
	}
	for i := 0; i < g.cfg.ObservationsPerPatient; i++ {
		v := vitalDefs[g.rng.Intn(len(vitalDefs))]
		val := v.Low + g.rng.Float64()*(v.High-v.Low)
		snap.Observations = append(snap.Observations, Observation{
			Code:    v.Code,
			Display: v.Display,
			Value:   float64(int(val*100)) / 100,
			Unit:    v.Unit,
			Taken:   g.randomDate(2023, 2025),
		})
	}

	if g.cfg.EncryptPHI {
		snap.SSN = "ENCRYPTED_" + snap.SSN
		snap.Phone = "ENCRYPTED_" + snap.Phone
		snap.Email = "ENCRYPTED_" + snap.Email
	}

	return snap
}

// GenerateBatch produces n synthetic patient snapshots.
func (g *Generator) GenerateBatch(n int) []*Snapshot {
	out := make([]*Snapshot, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, g.Generate())
	}
	return out
}
