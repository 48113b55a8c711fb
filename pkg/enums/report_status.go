package enums

import "fmt"

// ReportStatus tracks the resolution lifecycle of a support report.
type ReportStatus string

const (
	ReportStatusOpen       ReportStatus = "open"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusResolved   ReportStatus = "resolved"
	ReportStatusClosed     ReportStatus = "closed"
)

var validReportStatuses = []ReportStatus{
	ReportStatusOpen,
	ReportStatusInProgress,
	ReportStatusResolved,
	ReportStatusClosed,
}

var modifiableReportStatuses = []ReportStatus{
	ReportStatusOpen,
	ReportStatusInProgress,
}

func ReportStatuses() []ReportStatus {
	out := make([]ReportStatus, len(validReportStatuses))
	copy(out, validReportStatuses)
	return out
}

// ModifiableReportStatuses returns the statuses satisfying IsModifiable.
func ModifiableReportStatuses() []ReportStatus {
	out := make([]ReportStatus, len(modifiableReportStatuses))
	copy(out, modifiableReportStatuses)
	return out
}

func (s ReportStatus) String() string {
	return string(s)
}

func (s ReportStatus) IsValid() bool {
	for _, candidate := range validReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsModifiable reports whether content, type and priority may still change.
func (s ReportStatus) IsModifiable() bool {
	for _, candidate := range modifiableReportStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsResolved reports whether the report reached Resolved or Closed.
func (s ReportStatus) IsResolved() bool {
	return s == ReportStatusResolved || s == ReportStatusClosed
}

func ParseReportStatus(value string) (ReportStatus, error) {
	for _, candidate := range validReportStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report status %q", value)
}
