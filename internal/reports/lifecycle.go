package reports

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Transition is a decided but unwritten report status change.
type Transition struct {
	From          enums.ReportStatus
	To            enums.ReportStatus
	Guard         []enums.ReportStatus
	AdminResponse *string
	// StampResolved asks the write to set resolved_at if it is still null.
	StampResolved bool
}

func (t Transition) Changed() bool {
	return t.From != t.To
}

// CanBeModified reports whether content, type and priority may still change
// and whether the report may be deleted.
func CanBeModified(report *models.Report) bool {
	return report != nil && report.Status.IsModifiable()
}

// IsResolved reports whether the report reached Resolved or Closed.
func IsResolved(report *models.Report) bool {
	return report != nil && report.Status.IsResolved()
}

// RequireModifiable returns IMMUTABLE_RESOURCE once the report left Open and
// InProgress.
func RequireModifiable(report *models.Report) error {
	if CanBeModified(report) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeImmutable, "report can no longer be modified").
		WithDetails(map[string]any{"status": report.Status})
}

// PlanResolve moves an unresolved report to Resolved. adminResponse replaces
// the stored response only when non-nil.
func PlanResolve(report *models.Report, adminResponse *string) (Transition, error) {
	if IsResolved(report) {
		return Transition{}, pkgerrors.New(pkgerrors.CodeAlreadyResolved, "report is already resolved").
			WithDetails(map[string]any{"status": report.Status})
	}
	return Transition{
		From:          report.Status,
		To:            enums.ReportStatusResolved,
		Guard:         enums.ModifiableReportStatuses(),
		AdminResponse: adminResponse,
		StampResolved: true,
	}, nil
}

// PlanSetStatus is the administrative status write. It is the only way to
// reach Closed. resolved_at is stamped only on a move to Resolved and never
// overwritten.
func PlanSetStatus(report *models.Report, raw string, adminResponse *string) (Transition, error) {
	next, err := enums.ParseReportStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return Transition{}, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown report status").
			WithDetails(map[string]any{"status": raw, "allowed": enums.ReportStatuses()})
	}
	return Transition{
		From:          report.Status,
		To:            next,
		Guard:         []enums.ReportStatus{report.Status},
		AdminResponse: adminResponse,
		StampResolved: next == enums.ReportStatusResolved && report.ResolvedAt == nil,
	}, nil
}
