package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"fleetmon/pkg/models"
)

// ReportName is the identity/time/type encoding carried in a report file's
// base name: {subjectID}_{alertType}_{YYYYMMDD}_{HHMMSS}.
type ReportName struct {
	SubjectID string
	AlertType string
	Timestamp time.Time
}

// subjectPattern requires a leading all-digits segment followed by an
// underscore; anything else cannot be attributed to an operator.
var subjectPattern = regexp.MustCompile(`^(\d+)_`)

// ParseReportName decodes a report base name (no extension). The alert
// type token falls back to "other" when unrecognized; a missing or
// malformed embedded timestamp falls back to the supplied file time.
func ParseReportName(base string, fileTime time.Time) (*ReportName, error) {
	if subjectPattern.FindString(base) == "" {
		return nil, fmt.Errorf("base name %q has no leading subject id", base)
	}

	segments := strings.Split(base, "_")
	if len(segments) < 2 {
		return nil, fmt.Errorf("base name %q has no alert type segment", base)
	}

	name := &ReportName{
		SubjectID: segments[0],
		AlertType: segments[1],
		Timestamp: fileTime,
	}
	if !models.ValidAlertType(name.AlertType) {
		name.AlertType = models.AlertOther
	}

	if len(segments) >= 4 {
		if ts, err := time.ParseInLocation("20060102150405", segments[2]+segments[3], time.Local); err == nil {
			name.Timestamp = ts
		}
	}
	return name, nil
}
