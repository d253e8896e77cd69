package export

import (
	"strings"
	"testing"

	"github.com/ehr/migration-sim/internal/domain/record"
)

func exportSnapshot() *record.Snapshot {
	return &record.Snapshot{
		PatientID: "pat-1",
		Name:      "Jane Q Doe",
		MRN:       "MRN123456789",
		BirthDate: "1980-04-15",
		Gender:    "female",
		Phone:     "(555) 123-4567",
		Address:   "123 Main St, Springfield, NY",
		Allergies: []record.Allergy{
			{Substance: "Penicillin", Reaction: "hives", Severity: "high"},
			{Substance: "Latex", Reaction: "dermatitis", Severity: "medium"},
		},
		Medications: []record.Medication{
			{Name: "Metformin", Dosage: "500 mg", Frequency: "twice daily", Route: "oral"},
		},
		Conditions: []record.Condition{
			{Code: "E11.9", Display: "Type 2 diabetes", Onset: "2015-01-01"},
		},
		Observations: []record.Observation{
			{Code: "8867-4", Display: "Heart rate", Value: 72, Unit: "beats/minute", Taken: "2025-06-01"},
		},
	}
}

// ---------------------------------------------------------------------------
// FHIR
// ---------------------------------------------------------------------------

func TestFHIRBundle_EntryCount(t *testing.T) {
	bundle := FHIRBundle(exportSnapshot())

	if bundle["resourceType"] != "Bundle" || bundle["type"] != "collection" {
		t.Fatalf("unexpected bundle envelope %v", bundle)
	}
	entries := bundle["entry"].([]any)
	// 1 Patient + 2 allergies + 1 medication + 1 condition + 1 observation.
	if len(entries) != 6 {
		t.Fatalf("bundle has %d entries, want 6", len(entries))
	}
	if bundle["total"] != 6 {
		t.Fatalf("bundle total %v, want 6", bundle["total"])
	}

	patient := entries[0].(map[string]any)["resource"].(map[string]any)
	if patient["resourceType"] != "Patient" || patient["id"] != "pat-1" {
		t.Fatalf("first entry is not the patient: %v", patient)
	}
	name := patient["name"].([]any)[0].(map[string]any)
	if name["family"] != "Doe" {
		t.Fatalf("family name %v, want Doe", name["family"])
	}
	given := name["given"].([]any)
	if given[0] != "Jane Q" {
		t.Fatalf("given name %v, want \"Jane Q\"", given[0])
	}
}

func TestFHIRBundle_ResourcesReferencePatient(t *testing.T) {
	bundle := FHIRBundle(exportSnapshot())
	entries := bundle["entry"].([]any)

	for _, e := range entries[1:] {
		res := e.(map[string]any)["resource"].(map[string]any)
		ref, ok := res["subject"].(map[string]any)
		if !ok {
			ref, ok = res["patient"].(map[string]any)
		}
		if !ok {
			t.Fatalf("resource %v has no patient reference", res["resourceType"])
		}
		if ref["reference"] != "Patient/pat-1" {
			t.Fatalf("resource %v references %v", res["resourceType"], ref["reference"])
		}
	}
}

// ---------------------------------------------------------------------------
// HL7v2
// ---------------------------------------------------------------------------

func TestHL7ADT_Segments(t *testing.T) {
	msg := string(HL7ADT(exportSnapshot(), "A04"))
	segments := strings.Split(msg, "\r")

	// MSH, EVN, PID + one AL1 per allergy.
	if len(segments) != 5 {
		t.Fatalf("message has %d segments, want 5:\n%s", len(segments), msg)
	}
	if !strings.HasPrefix(segments[0], "MSH|^~\\&|MIGSIM|") {
		t.Fatalf("unexpected MSH segment %q", segments[0])
	}
	if !strings.Contains(segments[0], "ADT^A04") {
		t.Fatalf("MSH missing message type: %q", segments[0])
	}
	if !strings.HasPrefix(segments[1], "EVN|A04|") {
		t.Fatalf("unexpected EVN segment %q", segments[1])
	}

	pid := segments[2]
	if !strings.Contains(pid, "MRN123456789") {
		t.Fatalf("PID missing MRN: %q", pid)
	}
	if !strings.Contains(pid, "Doe^Jane Q") {
		t.Fatalf("PID missing structured name: %q", pid)
	}
	if !strings.Contains(pid, "19800415") {
		t.Fatalf("PID missing compact birth date: %q", pid)
	}
	if !strings.Contains(pid, "|F|") {
		t.Fatalf("PID missing mapped gender: %q", pid)
	}

	if !strings.HasPrefix(segments[3], "AL1|1|DA|Penicillin|SV|") {
		t.Fatalf("unexpected first AL1 segment %q", segments[3])
	}
	if !strings.HasPrefix(segments[4], "AL1|2|DA|Latex|MO|") {
		t.Fatalf("unexpected second AL1 segment %q", segments[4])
	}
}

func TestHL7ADT_EscapesDelimiters(t *testing.T) {
	snap := exportSnapshot()
	snap.Name = "Jane|Doe"
	snap.Allergies = nil

	msg := string(HL7ADT(snap, "A04"))
	if strings.Contains(msg, "Jane|Doe") {
		t.Fatalf("field separator not escaped:\n%s", msg)
	}
	if !strings.Contains(msg, `Jane\F\`) {
		t.Fatalf("expected escaped field separator in:\n%s", msg)
	}
}

func TestMapGender(t *testing.T) {
	tests := []struct{ in, want string }{
		{"male", "M"}, {"female", "F"}, {"other", "O"}, {"unknown", "U"}, {"", "U"},
	}
	for _, tt := range tests {
		if got := mapGender(tt.in); got != tt.want {
			t.Errorf("mapGender(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
