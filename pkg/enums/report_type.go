package enums

import "fmt"

// ReportType classifies what a support report is about.
type ReportType string

const (
	ReportTypeProduct  ReportType = "product"
	ReportTypeDelivery ReportType = "delivery"
	ReportTypePayment  ReportType = "payment"
	ReportTypeService  ReportType = "service"
	ReportTypeOther    ReportType = "other"
)

var validReportTypes = []ReportType{
	ReportTypeProduct,
	ReportTypeDelivery,
	ReportTypePayment,
	ReportTypeService,
	ReportTypeOther,
}

func (t ReportType) String() string {
	return string(t)
}

func (t ReportType) IsValid() bool {
	for _, candidate := range validReportTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

func ParseReportType(value string) (ReportType, error) {
	for _, candidate := range validReportTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report type %q", value)
}

// ReportPriority ranks how urgently a report needs attention.
type ReportPriority string

const (
	ReportPriorityLow    ReportPriority = "low"
	ReportPriorityMedium ReportPriority = "medium"
	ReportPriorityHigh   ReportPriority = "high"
	ReportPriorityUrgent ReportPriority = "urgent"
)

var validReportPriorities = []ReportPriority{
	ReportPriorityLow,
	ReportPriorityMedium,
	ReportPriorityHigh,
	ReportPriorityUrgent,
}

func (p ReportPriority) String() string {
	return string(p)
}

func (p ReportPriority) IsValid() bool {
	for _, candidate := range validReportPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

func ParseReportPriority(value string) (ReportPriority, error) {
	for _, candidate := range validReportPriorities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid report priority %q", value)
}
