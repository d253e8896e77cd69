package hipaa

import "github.com/rs/zerolog"

// LogSink is an AuditSink that forwards access and violation records to a
// structured logger. It is the default sink for CLI and server runs; tests
// and external collaborators supply their own implementations.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink returns a sink writing to the given logger.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) AccessLogged(patientID string, rec AccessRecord) {
	s.log.Debug().
		Str("patient_id", patientID).
		Str("user", rec.User).
		Str("access_type", rec.AccessType).
		Str("element", rec.Element).
		Str("justification", rec.Justification).
		Msg("phi access")
}

func (s *LogSink) ViolationRecorded(patientID string, v Violation) {
	s.log.Warn().
		Str("patient_id", patientID).
		Str("type", v.Type).
		Str("severity", string(v.Severity)).
		Float64("penalty", v.Penalty).
		Str("description", v.Description).
		Msg("hipaa violation")
}
