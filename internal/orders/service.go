package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const aggregateLabel = "order"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type lifecycleRecorder interface {
	Transition(aggregate, from, to string)
	Override(aggregate, from, to string)
	Rejected(aggregate, reason string)
}

// Service defines the order operations behind the HTTP handlers.
type Service interface {
	List(ctx context.Context, actor auth.Actor, params pagination.Params) (*pagination.Page[OrderDTO], error)
	ListByStatus(ctx context.Context, actor auth.Actor, status string, params pagination.Params) (*pagination.Page[OrderDTO], error)
	ListByBuyer(ctx context.Context, actor auth.Actor, buyerID uuid.UUID, params pagination.Params) (*pagination.Page[OrderDTO], error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error)
	Create(ctx context.Context, actor auth.Actor, req CreateOrderRequest) (*OrderDTO, error)
	AdminUpdate(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateOrderRequest) (*OrderDTO, error)
	Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics lifecycleRecorder
	logger  *logger.Logger
	now     func() time.Time
}

// ServiceParams bundles the order service dependencies.
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
		return nil, fmt.Errorf("orders repository required")
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

func (s *service) List(ctx context.Context, actor auth.Actor, params pagination.Params) (*pagination.Page[OrderDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return s.list(ctx, params, ListFilters{})
}

func (s *service) ListByStatus(ctx context.Context, actor auth.Actor, status string, params pagination.Params) (*pagination.Page[OrderDTO], error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	parsed, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown order status")
	}
	return s.list(ctx, params, ListFilters{Status: &parsed})
}

func (s *service) ListByBuyer(ctx context.Context, actor auth.Actor, buyerID uuid.UUID, params pagination.Params) (*pagination.Page[OrderDTO], error) {
	if err := actor.RequireOwnerOrAdmin(buyerID, "orders"); err != nil {
		return nil, err
	}
	return s.list(ctx, params, ListFilters{BuyerID: &buyerID})
}

func (s *service) list(ctx context.Context, params pagination.Params, filters ListFilters) (*pagination.Page[OrderDTO], error) {
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	page := pagination.NewPage(fromModels(rows), params, total)
	return &page, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error) {
	order, err := loadOrder(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	if err := actor.RequireOwnerOrAdmin(order.BuyerID, "order"); err != nil {
		return nil, err
	}
	return FromModel(order), nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, req CreateOrderRequest) (*OrderDTO, error) {
	if actor.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		items, total, err := priceItems(ctx, repo, req.Items)
		if err != nil {
			return err
		}

		order := &models.Order{
			BuyerID:     actor.AccountID,
			Status:      enums.OrderStatusPending,
			Address:     strings.TrimSpace(req.Address),
			TotalAmount: total,
			OrderedAt:   s.now().UTC(),
			Notes:       trimmedPtr(req.Notes),
			Items:       items,
		}
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Status:      order.Status,
				TotalAmount: order.TotalAmount,
				ItemCount:   len(order.Items),
				OrderedAt:   order.OrderedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order created")
		}

		created, err = loadOrder(ctx, repo, order.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(s.logger.WithOrderID(ctx, created.ID.String()), "order created")
	return FromModel(created), nil
}

func (s *service) AdminUpdate(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateOrderRequest) (*OrderDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	ctx = s.logger.WithOrderID(ctx, id.String())

	var (
		updated    *models.Order
		transition Transition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, id)
		if err != nil {
			return err
		}

		transition = Transition{From: order.Status, To: order.Status, Guard: []enums.OrderStatus{order.Status}}
		if req.Status != nil {
			transition, err = PlanSetStatus(order, *req.Status)
			if err != nil {
				s.metrics.Rejected(aggregateLabel, string(pkgerrors.CodeInvalidStatus))
				return err
			}
		}

		updates := map[string]any{}
		if transition.Changed() {
			updates["status"] = transition.To
		}
		if req.TrackingNumber != nil {
			tracking := strings.ToUpper(strings.TrimSpace(*req.TrackingNumber))
			if tracking == "" {
				updates["tracking_number"] = nil
			} else {
				updates["tracking_number"] = tracking
			}
		}
		if req.Notes != nil {
			updates["notes"] = strings.TrimSpace(*req.Notes)
		}
		if req.DeliveredAt != nil {
			updates["delivered_at"] = req.DeliveredAt.UTC()
		} else if transition.Changed() && transition.To == enums.OrderStatusDelivered && order.DeliveredAt == nil {
			updates["delivered_at"] = s.now().UTC()
		}
		if len(updates) == 0 {
			updated = order
			return nil
		}

		ok, err := repo.UpdateGuarded(ctx, id, transition.Guard, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order changed while updating; retry")
		}

		updated, err = loadOrder(ctx, repo, id)
		if err != nil {
			return err
		}
		if !transition.Changed() {
			return nil
		}
		return s.emitStatusChanged(ctx, tx, actor, updated, transition)
	})
	if err != nil {
		return nil, err
	}

	if transition.Changed() {
		s.recordTransition(ctx, transition)
	}
	return FromModel(updated), nil
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, id uuid.UUID) (*OrderDTO, error) {
	ctx = s.logger.WithOrderID(ctx, id.String())

	var (
		cancelled  *models.Order
		transition Transition
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOrAdmin(order.BuyerID, "order"); err != nil {
			return err
		}
		transition, err = PlanCancel(order)
		if err != nil {
			return err
		}

		ok, err := repo.UpdateGuarded(ctx, id, transition.Guard, map[string]any{"status": transition.To})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return s.guardFailure(ctx, repo, id, "order can no longer be cancelled")
		}

		cancelled, err = loadOrder(ctx, repo, id)
		if err != nil {
			return err
		}
		return s.emitStatusChanged(ctx, tx, actor, cancelled, transition)
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition) {
			s.metrics.Rejected(aggregateLabel, string(pkgerrors.CodeIllegalTransition))
		}
		return nil, err
	}

	s.recordTransition(ctx, transition)
	return FromModel(cancelled), nil
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	ctx = s.logger.WithOrderID(ctx, id.String())

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := actor.RequireOwnerOrAdmin(order.BuyerID, "order"); err != nil {
			return err
		}
		if err := PlanDelete(order); err != nil {
			return err
		}

		ok, err := repo.DeleteGuarded(ctx, id, enums.CancellableOrderStatuses())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if !ok {
			return s.guardFailure(ctx, repo, id, "order can no longer be deleted")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderDeleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         actorRef(actor),
			Data: payloads.OrderDeletedEvent{
				OrderID: order.ID,
				BuyerID: order.BuyerID,
				Status:  order.Status,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order deleted")
		}
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeIllegalTransition) {
			s.metrics.Rejected(aggregateLabel, string(pkgerrors.CodeIllegalTransition))
		}
		return err
	}
	s.logger.Info(ctx, "order deleted")
	return nil
}

// guardFailure distinguishes a row that vanished from one whose status moved
// out of the guard between the read and the conditional write.
func (s *service) guardFailure(ctx context.Context, repo Repository, id uuid.UUID, message string) error {
	if _, err := loadOrder(ctx, repo, id); err != nil {
		return err
	}
	return pkgerrors.New(pkgerrors.CodeIllegalTransition, message)
}

func (s *service) emitStatusChanged(ctx context.Context, tx *gorm.DB, actor auth.Actor, order *models.Order, tr Transition) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			BuyerID:        order.BuyerID,
			From:           tr.From,
			To:             tr.To,
			Override:       tr.Override,
			TrackingNumber: order.TrackingNumber,
			DeliveredAt:    order.DeliveredAt,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status changed")
	}
	return nil
}

func (s *service) recordTransition(ctx context.Context, tr Transition) {
	if tr.Override {
		s.metrics.Override(aggregateLabel, string(tr.From), string(tr.To))
		logCtx := s.logger.WithFields(ctx, map[string]any{"from": tr.From, "to": tr.To})
		s.logger.Warn(logCtx, "order status override outside transition graph")
		return
	}
	s.metrics.Transition(aggregateLabel, string(tr.From), string(tr.To))
}

func validateCreate(req CreateOrderRequest) error {
	if len(req.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item").
			WithDetails(map[string]any{"field": "items"})
	}
	address := utf8.RuneCountInString(strings.TrimSpace(req.Address))
	if address < 10 || address > 500 {
		return pkgerrors.New(pkgerrors.CodeValidation, "address must be between 10 and 500 characters").
			WithDetails(map[string]any{"field": "address"})
	}
	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > 1000 {
		return pkgerrors.New(pkgerrors.CodeValidation, "notes must be at most 1000 characters").
			WithDetails(map[string]any{"field": "notes"})
	}
	for i, item := range req.Items {
		if item.ProductID == uuid.Nil || item.Quantity < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "each item needs a product and a quantity of at least 1").
				WithDetails(map[string]any{"field": fmt.Sprintf("items[%d]", i)})
		}
	}
	return nil
}

// priceItems snapshots catalog prices into order lines and sums the total.
func priceItems(ctx context.Context, repo Repository, requested []CreateOrderItem) ([]models.OrderItem, decimal.Decimal, error) {
	ids := make([]uuid.UUID, 0, len(requested))
	for _, item := range requested {
		if !slices.Contains(ids, item.ProductID) {
			ids = append(ids, item.ProductID)
		}
	}
	products, err := repo.FindProducts(ctx, ids)
	if err != nil {
		return nil, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(requested))
	for _, req := range requested {
		product, ok := byID[req.ProductID]
		if !ok {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
		if !product.IsActive {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "product is not available").
				WithDetails(map[string]any{"product_id": req.ProductID})
		}
		size := trimmedPtr(req.Size)
		if size != nil && len(product.Sizes) > 0 && !slices.Contains([]string(product.Sizes), *size) {
			return nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "size not offered for product").
				WithDetails(map[string]any{"product_id": req.ProductID, "size": *size})
		}
		item := models.OrderItem{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			UnitPrice: product.Price,
			Size:      size,
		}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}
	return items, total, nil
}

func loadOrder(ctx context.Context, repo Repository, id uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
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
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

type noopRecorder struct{}

func (noopRecorder) Transition(string, string, string) {}
func (noopRecorder) Override(string, string, string)   {}
func (noopRecorder) Rejected(string, string)           {}
