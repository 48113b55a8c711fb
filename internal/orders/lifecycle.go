package orders

import (
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Transition is a status change decided by the lifecycle rules but not yet
// written. Guard lists the statuses the row must still hold at write time.
type Transition struct {
	From     enums.OrderStatus
	To       enums.OrderStatus
	Guard    []enums.OrderStatus
	Override bool
}

// Changed reports whether the transition moves the order at all.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// CanBeCancelled reports whether the order may be cancelled or deleted.
func CanBeCancelled(order *models.Order) bool {
	return order != nil && order.Status.IsCancellable()
}

// PlanCancel moves a Pending or Processing order to Cancelled.
func PlanCancel(order *models.Order) (Transition, error) {
	if !CanBeCancelled(order) {
		return Transition{}, pkgerrors.New(pkgerrors.CodeIllegalTransition, "order can no longer be cancelled").
			WithDetails(map[string]any{"status": order.Status, "allowed_from": enums.CancellableOrderStatuses()})
	}
	return Transition{
		From:  order.Status,
		To:    enums.OrderStatusCancelled,
		Guard: enums.CancellableOrderStatuses(),
	}, nil
}

// PlanDelete applies the cancel precondition to deletion.
func PlanDelete(order *models.Order) error {
	if !CanBeCancelled(order) {
		return pkgerrors.New(pkgerrors.CodeIllegalTransition, "order can no longer be deleted").
			WithDetails(map[string]any{"status": order.Status, "allowed_from": enums.CancellableOrderStatuses()})
	}
	return nil
}

// PlanSetStatus is the administrative status write. Any enumerated status is
// accepted; a step outside the fulfillment graph is marked as an override.
func PlanSetStatus(order *models.Order, raw string) (Transition, error) {
	next, err := enums.ParseOrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return Transition{}, pkgerrors.Wrap(pkgerrors.CodeInvalidStatus, err, "unknown order status").
			WithDetails(map[string]any{"status": raw, "allowed": enums.OrderStatuses()})
	}
	return Transition{
		From:     order.Status,
		To:       next,
		Guard:    []enums.OrderStatus{order.Status},
		Override: order.Status != next && !order.Status.CanTransitionTo(next),
	}, nil
}
