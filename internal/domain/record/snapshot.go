// Package record defines the patient-data snapshot that flows through the
// migration pipeline: a typed value object with named demographic and
// clinical fields plus an extension map for source-system fields that have
// no typed home. It also provides a seeded synthetic patient generator for
// simulation and demo runs.
package record

// Allergy is a single allergy entry on a patient record.
type Allergy struct {
	Substance string `json:"substance"`
	Reaction  string `json:"reaction"`
	Severity  string `json:"severity"`
}

// Medication is a single medication order on a patient record.
type Medication struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
	Route     string `json:"route"`
}

// Condition is a coded diagnosis on a patient record.
type Condition struct {
	Code    string `json:"code"`
	Display string `json:"display"`
	Onset   string `json:"onset"`
}

// Observation is a single vital-sign or lab result.
type Observation struct {
	Code    string  `json:"code"`
	Display string  `json:"display"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Taken   string  `json:"taken"` // YYYY-MM-DD
}

// Snapshot is the patient-data bag consumed by the scorer, the degradation
// simulator, and the compliance tracker. Demographic fields are optional;
// an empty string means the source system did not supply the field.
// PHI-bearing fields may carry an "ENCRYPTED_" prefix or mask characters to
// indicate protection status.
type Snapshot struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
	MRN       string `json:"mrn"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	Gender    string `json:"gender"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	SSN       string `json:"ssn"`

	Allergies    []Allergy     `json:"allergies"`
	Medications  []Medication  `json:"medications"`
	Conditions   []Condition   `json:"conditions"`
	Observations []Observation `json:"observations"`

	// Ext carries source-system fields with no typed equivalent. Validation
	// rules may inspect it by key.
	Ext map[string]string `json:"ext,omitempty"`
}

// Clone returns a deep copy of the snapshot. Degradation mutations operate
// on the copy so the caller's snapshot is never modified in place.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.Allergies = append([]Allergy(nil), s.Allergies...)
	out.Medications = append([]Medication(nil), s.Medications...)
	out.Conditions = append([]Condition(nil), s.Conditions...)
	out.Observations = append([]Observation(nil), s.Observations...)
	if s.Ext != nil {
		out.Ext = make(map[string]string, len(s.Ext))
		for k, v := range s.Ext {
			out.Ext[k] = v
		}
	}
	return &out
}

// PHIElements returns the Protected Health Information fields of the
// snapshot keyed by element name. The compliance tracker uses this as its
// per-patient PHI inventory.
func (s *Snapshot) PHIElements() map[string]string {
	return map[string]string{
		"name":       s.Name,
		"mrn":        s.MRN,
		"birth_date": s.BirthDate,
		"ssn":        s.SSN,
		"phone":      s.Phone,
		"email":      s.Email,
		"address":    s.Address,
	}
}

// SensitivePHI returns the direct-identifier subset of the PHI inventory
// that must carry protection markers (encryption prefix or masking) while
// records move between systems. Name, MRN, and birth date remain working
// identifiers during a migration and are tracked but not marker-checked.
func (s *Snapshot) SensitivePHI() map[string]string {
	return map[string]string{
		"ssn":   s.SSN,
		"phone": s.Phone,
		"email": s.Email,
	}
}
