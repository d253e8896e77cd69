// Package export renders a patient snapshot into external interchange
// shapes: a FHIR-style bundle and HL7v2 message text. These are pure
// data-shape translators; they never mutate the snapshot.
package export

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/migration-sim/internal/domain/record"
)

// FHIRBundle renders the snapshot as a FHIR-style collection bundle of
// generic maps, suitable for JSON serialization by the caller.
func FHIRBundle(snap *record.Snapshot) map[string]any {
	entries := []any{entry(patientResource(snap))}

	for _, a := range snap.Allergies {
		entries = append(entries, entry(map[string]any{
			"resourceType": "AllergyIntolerance",
			"id":           uuid.New().String(),
			"patient":      reference(snap),
			"code":         map[string]any{"text": a.Substance},
			"reaction": []any{map[string]any{
				"description": a.Reaction,
				"severity":    a.Severity,
			}},
		}))
	}
	for _, m := range snap.Medications {
		entries = append(entries, entry(map[string]any{
			"resourceType": "MedicationStatement",
			"id":           uuid.New().String(),
			"subject":      reference(snap),
			"medicationCodeableConcept": map[string]any{"text": m.Name},
			"dosage": []any{map[string]any{
				"text":  fmt.Sprintf("%s %s", m.Dosage, m.Frequency),
				"route": map[string]any{"text": m.Route},
			}},
		}))
	}
	for _, c := range snap.Conditions {
		entries = append(entries, entry(map[string]any{
			"resourceType": "Condition",
			"id":           uuid.New().String(),
			"subject":      reference(snap),
			"code": map[string]any{
				"coding": []any{map[string]any{
					"system":  "http://hl7.org/fhir/sid/icd-10-cm",
					"code":    c.Code,
					"display": c.Display,
				}},
			},
			"onsetDateTime": c.Onset,
		}))
	}
	for _, o := range snap.Observations {
		entries = append(entries, entry(map[string]any{
			"resourceType": "Observation",
			"id":           uuid.New().String(),
			"subject":      reference(snap),
			"status":       "final",
			"code": map[string]any{
				"coding": []any{map[string]any{
					"system":  "http://loinc.org",
					"code":    o.Code,
					"display": o.Display,
				}},
			},
			"valueQuantity":     map[string]any{"value": o.Value, "unit": o.Unit},
			"effectiveDateTime": o.Taken,
		}))
	}

	return map[string]any{
		"resourceType": "Bundle",
		"type":         "collection",
		"total":        len(entries),
		"entry":        entries,
	}
}

func patientResource(snap *record.Snapshot) map[string]any {
	family, given := splitName(snap.Name)
	return map[string]any{
		"resourceType": "Patient",
		"id":           snap.PatientID,
		"identifier": []any{map[string]any{
			"system": "urn:oid:2.16.840.1.113883.3.mrn",
			"value":  snap.MRN,
		}},
		"name": []any{map[string]any{
			"use":    "official",
			"family": family,
			"given":  []any{given},
		}},
		"gender":    snap.Gender,
		"birthDate": snap.BirthDate,
		"address": []any{map[string]any{
			"use":  "home",
			"text": snap.Address,
		}},
	}
}

func entry(resource map[string]any) map[string]any {
	return map[string]any{"resource": resource}
}

func reference(snap *record.Snapshot) map[string]any {
	return map[string]any{"reference": "Patient/" + snap.PatientID}
}

func splitName(name string) (family, given string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[len(parts)-1], strings.Join(parts[:len(parts)-1], " ")
}
