package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/ehr/migration-sim/internal/domain/record"
)

// HL7ADT renders the snapshot as an HL7v2 ADT message (MSH, EVN, PID, and
// one AL1 segment per allergy). event is the trigger code, e.g. "A04".
func HL7ADT(snap *record.Snapshot, event string) []byte {
	segments := []string{
		buildMSH("ADT", event),
		buildEVN(event),
		buildPID(snap),
	}
	for i, a := range snap.Allergies {
		segments = append(segments, buildAL1(i+1, a))
	}
	return []byte(strings.Join(segments, "\r"))
}

func buildMSH(msgType, trigger string) string {
	now := time.Now().UTC()
	timestamp := now.Format("20060102150405")
	controlID := fmt.Sprintf("MSG%s", now.Format("20060102150405.000"))
	return fmt.Sprintf("MSH|^~\\&|MIGSIM|MigFac|Destination|DestFac|%s||%s^%s|%s|P|2.5.1",
		timestamp, msgType, trigger, controlID)
}

func buildEVN(event string) string {
	return fmt.Sprintf("EVN|%s|%s", event, time.Now().UTC().Format("20060102150405"))
}

func buildPID(snap *record.Snapshot) string {
	family, given := splitName(snap.Name)
	dob := strings.ReplaceAll(snap.BirthDate, "-", "")
	return fmt.Sprintf("PID|1||%s||%s^%s||%s|%s|||%s||%s",
		escapeHL7(snap.MRN),
		escapeHL7(family), escapeHL7(given),
		dob,
		mapGender(snap.Gender),
		escapeHL7(snap.Address),
		escapeHL7(snap.Phone),
	)
}

func buildAL1(seq int, a record.Allergy) string {
	return fmt.Sprintf("AL1|%d|DA|%s|%s|%s",
		seq, escapeHL7(a.Substance), mapAllergySeverity(a.Severity), escapeHL7(a.Reaction))
}

func mapGender(g string) string {
	switch g {
	case "male":
		return "M"
	case "female":
		return "F"
	case "other":
		return "O"
	default:
		return "U"
	}
}

func mapAllergySeverity(sev string) string {
	switch sev {
	case "critical", "high":
		return "SV"
	case "medium":
		return "MO"
	default:
		return "MI"
	}
}

// escapeHL7 escapes the HL7v2 reserved delimiter characters.
func escapeHL7(s string) string {
	r := strings.NewReplacer(
		`\`, `\E\`,
		"|", `\F\`,
		"^", `\S\`,
		"&", `\T\`,
		"~", `\R\`,
	)
	return r.Replace(s)
}
