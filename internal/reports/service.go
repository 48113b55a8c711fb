package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	aggregateLabel   = "report"
	minContentLength = 10
	maxContentLength = 2000
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type lifecycleRecorder interface {
	Transition(aggregate, from, to string)
	Rejected(aggregate, reason string)
}

// Service exposes report filing, editing and the admin lifecycle operations.
type Service interface {
	List(ctx context.Context, actor auth.Actor, query ListQuery, params pagination.Params) (*pagination.Page[ReportDTO], error)
	Stats(ctx context.Context, actor auth.Actor) (*StatsDTO, error)
	ListByStatus(ctx context.Context, actor auth.Actor, status string, params pagination.Params) (*pagination.Page[ReportDTO], error)
	ListByFiler(ctx context.Context, actor auth.Actor, filerID uuid.UUID, params pagination.Params) (*pagination.Page[ReportDTO], error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReportDTO, error)
	Create(ctx context.Context, actor auth.Actor, req CreateReportRequest) (*ReportDTO, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateReportRequest) (*ReportDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	SetStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, req SetStatusRequest) (*ReportDTO, error)
	Resolve(ctx context.Context, actor auth.Actor, id uuid.UUID, req ResolveRequest) (*ReportDTO, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics lifecycleRecorder
	logger  *logger.Logger
	now     func() time.Time
}

type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics lifecycleRecorder
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Metrics == nil {
		params.Metrics = noopRecorder{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logger:  params.Logger,
		now:     params.Now,
	}, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, query ListQuery, params pagination.Params) (*pagination.Page[ReportDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	filters, err := parseListQuery(query)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, params, filters)
}

func (s *service) Stats(ctx context.Context, actor auth.Actor) (*StatsDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	stats := &StatsDTO{}
	var err error
	if stats.ByStatus, err = s.countBy(ctx, "status", statusKeys()); err != nil {
		return nil, err
	}
	if stats.ByType, err = s.countBy(ctx, "report_type", typeKeys()); err != nil {
		return nil, err
	}
	if stats.ByPriority, err = s.countBy(ctx, "priority", priorityKeys()); err != nil {
		return nil, err
	}
	for _, n := range stats.ByStatus {
		stats.Total += n
	}
	return stats, nil
}

func (s *service) countBy(ctx context.Context, column string, keys []string) (map[string]int64, error) {
	counts, err := s.repo.CountBy(ctx, column)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count reports")
	}
	for _, key := range keys {
		if _, ok := counts[key]; !ok {
			counts[key] = 0
		}
	}
	return counts, nil
}

func (s *service) ListByStatus(ctx context.Context, actor auth.Actor, status string, params pagination.Params) (*pagination.Page[ReportDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	parsed, err := enums.ParseReportStatus(normalize(status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown report status")
	}
	return s.list(ctx, params, ListFilters{Status: &parsed})
}

func (s *service) ListByFiler(ctx context.Context, actor auth.Actor, filerID uuid.UUID, params pagination.Params) (*pagination.Page[ReportDTO], error) {
	if err := actor.RequireOwnerOrAdmin(filerID, "reports"); err != nil {
		return nil, err
	}
	return s.list(ctx, params, ListFilters{FilerID: &filerID})
}

func (s *service) list(ctx context.Context, params pagination.Params, filters ListFilters) (*pagination.Page[ReportDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reports")
	}
	page := pagination.NewPage(fromModels(rows), params, total)
	return &page, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ReportDTO, error) {
	report, err := loadReport(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOrAdmin(report.FilerID, "report"); err != nil {
		return nil, err
	}
	return FromModel(report), nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, req CreateReportRequest) (*ReportDTO, error) {
	if actor.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	content, err := validateContent(req.Content)
	if err != nil {
		return nil, err
	}
	reportType := enums.ReportTypeOther
	if req.Type != nil {
		if reportType, err = parseType(*req.Type); err != nil {
			return nil, err
		}
	}
	priority := enums.ReportPriorityMedium
	if req.Priority != nil {
		if priority, err = parsePriority(*req.Priority); err != nil {
			return nil, err
		}
	}

	var created *models.Report
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, req.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if err := actor.RequireOwnerOrAdmin(order.BuyerID, "order"); err != nil {
			return err
		}

		report := &models.Report{
			OrderID:  order.ID,
			FilerID:  actor.AccountID,
			Content:  content,
			Type:     reportType,
			Status:   enums.ReportStatusOpen,
			Priority: priority,
		}
		if err := repo.Create(ctx, report); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create report")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventReportCreated,
			AggregateType: enums.AggregateReport,
			AggregateID:   report.ID,
			Actor:         actorRef(actor),
			Data: payloads.ReportCreatedEvent{
				ReportID: report.ID,
				OrderID:  report.OrderID,
				FilerID:  report.FilerID,
				Type:     report.Type,
				Priority: report.Priority,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit report created")
		}
		created, err = loadReport(ctx, repo, report.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(s.logger.WithReportID(ctx, created.ID.String()), "report filed")
	return FromModel(created), nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateReportRequest) (*ReportDTO, error) {
	updates := map[string]any{}
	if req.Content != nil {
		content, err := validateContent(*req.Content)
		if err != nil {
			return nil, err
		}
		updates["content"] = content
	}
	if req.Type != nil {
		t, err := parseType(*req.Type)
		if err != nil {
			return nil, err
		}
		updates["report_type"] = t
	}
	if req.Priority != nil {
		p, err := parsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		updates["priority"] = p
	}

	var updated *models.Report
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		report, err := loadReport(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOrAdmin(report.FilerID, "report"); err != nil {
			return err
		}
		if err := RequireModifiable(report); err != nil {
			return err
		}
		if len(updates) == 0 {
			updated = report
			return nil
		}
		ok, err := repo.UpdateGuarded(ctx, id, enums.ModifiableReportStatuses(), updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report")
		}
		if !ok {
			return immutableOrMissing(ctx, repo, id)
		}
		updated, err = loadReport(ctx, repo, id)
		return err
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}
	return FromModel(updated), nil
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		report, err := loadReport(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOrAdmin(report.FilerID, "report"); err != nil {
			return err
		}
		if err := RequireModifiable(report); err != nil {
			return err
		}
		ok, err := repo.DeleteGuarded(ctx, id, enums.ModifiableReportStatuses())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete report")
		}
		if !ok {
			return immutableOrMissing(ctx, repo, id)
		}
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return err
	}
	s.logger.Info(s.logger.WithReportID(ctx, id.String()), "report deleted")
	return nil
}

func (s *service) SetStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, req SetStatusRequest) (*ReportDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.transition(ctx, actor, id, func(report *models.Report) (Transition, error) {
		return PlanSetStatus(report, req.Status, trimmedPtr(req.AdminResponse))
	})
}

func (s *service) Resolve(ctx context.Context, actor auth.Actor, id uuid.UUID, req ResolveRequest) (*ReportDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.transition(ctx, actor, id, func(report *models.Report) (Transition, error) {
		return PlanResolve(report, trimmedPtr(req.AdminResponse))
	})
}

func (s *service) transition(ctx context.Context, actor auth.Actor, id uuid.UUID, plan func(*models.Report) (Transition, error)) (*ReportDTO, error) {
	ctx = s.logger.WithReportID(ctx, id.String())
	var (
		updated *models.Report
		tr      Transition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		report, err := loadReport(ctx, repo, id)
		if err != nil {
			return err
		}
		if tr, err = plan(report); err != nil {
			return err
		}
		if !tr.Changed() && tr.AdminResponse == nil && !tr.StampResolved {
			updated = report
			return nil
		}

		ok, err := repo.ApplyTransition(ctx, id, tr, s.now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update report status")
		}
		if !ok {
			return transitionGuardFailure(ctx, repo, id, tr)
		}
		if updated, err = loadReport(ctx, repo, id); err != nil {
			return err
		}
		if !tr.Changed() {
			return nil
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventReportStatusChanged,
			AggregateType: enums.AggregateReport,
			AggregateID:   updated.ID,
			Actor:         actorRef(actor),
			Data: payloads.ReportStatusChangedEvent{
				ReportID:   updated.ID,
				OrderID:    updated.OrderID,
				FilerID:    updated.FilerID,
				From:       tr.From,
				To:         tr.To,
				ResolvedAt: updated.ResolvedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit report status changed")
		}
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}
	if tr.Changed() {
		s.metrics.Transition(aggregateLabel, string(tr.From), string(tr.To))
		logCtx := s.logger.WithFields(ctx, map[string]any{"from": tr.From, "to": tr.To})
		s.logger.Info(logCtx, "report status changed")
	}
	return FromModel(updated), nil
}

func (s *service) countRejection(err error) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return
	}
	switch typed.Code() {
	case pkgerrors.CodeImmutable, pkgerrors.CodeAlreadyResolved, pkgerrors.CodeInvalidStatus:
		s.metrics.Rejected(aggregateLabel, string(typed.Code()))
	}
}

func transitionGuardFailure(ctx context.Context, repo Repository, id uuid.UUID, tr Transition) error {
	current, err := loadReport(ctx, repo, id)
	if err != nil {
		return err
	}
	if tr.To == enums.ReportStatusResolved && IsResolved(current) {
		return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "report is already resolved")
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "report changed while updating; retry")
}

func immutableOrMissing(ctx context.Context, repo Repository, id uuid.UUID) error {
	current, err := loadReport(ctx, repo, id)
	if err != nil {
		return err
	}
	return RequireModifiable(current)
}

func loadReport(ctx context.Context, repo Repository, id uuid.UUID) (*models.Report, error) {
	report, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load report")
	}
	return report, nil
}

func parseListQuery(q ListQuery) (ListFilters, error) {
	var filters ListFilters
	if v := normalize(q.Status); v != "" {
		status, err := enums.ParseReportStatus(v)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown report status")
		}
		filters.Status = &status
	}
	if v := normalize(q.Type); v != "" {
		t, err := parseType(v)
		if err != nil {
			return filters, err
		}
		filters.Type = &t
	}
	if v := normalize(q.Priority); v != "" {
		p, err := parsePriority(v)
		if err != nil {
			return filters, err
		}
		filters.Priority = &p
	}
	return filters, nil
}

func parseType(raw string) (enums.ReportType, error) {
	t, err := enums.ParseReportType(normalize(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid report type").
			WithDetails(map[string]any{"field": "type", "allowed": typeKeys()})
	}
	return t, nil
}

func parsePriority(raw string) (enums.ReportPriority, error) {
	p, err := enums.ParseReportPriority(normalize(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid report priority").
			WithDetails(map[string]any{"field": "priority", "allowed": priorityKeys()})
	}
	return p, nil
}

func validateContent(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	if n := len([]rune(content)); n < minContentLength || n > maxContentLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "content must be between 10 and 2000 characters").
			WithDetails(map[string]any{"field": "content"})
	}
	return content, nil
}

func statusKeys() []string {
	statuses := enums.ReportStatuses()
	out := make([]string, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, st.String())
	}
	return out
}

func typeKeys() []string {
	return []string{"product", "delivery", "payment", "service", "other"}
}

func priorityKeys() []string {
	return []string{"low", "medium", "high", "urgent"}
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func actorRef(actor auth.Actor) *outbox.ActorRef {
	if actor.AccountID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{AccountID: actor.AccountID, Role: string(actor.Role)}
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	return &trimmed
}

type noopRecorder struct{}

func (noopRecorder) Transition(string, string, string) {}
func (noopRecorder) Rejected(string, string)           {}
