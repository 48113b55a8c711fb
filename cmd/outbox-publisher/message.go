package main

import (
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/google/uuid"
)

// orderingKey keeps every event of one order or report on a single Pub/Sub
// ordering key so subscribers see status changes in the order they happened.
func orderingKey(event models.OutboxEvent) string {
	return string(event.AggregateType) + ":" + event.AggregateID.String()
}

// lifecycleMessage builds the Pub/Sub message for a resolved outbox row. The
// attributes carry the status change itself so subscribers can filter on
// them without decoding the body.
func lifecycleMessage(event models.OutboxEvent, resolved *registry.ResolvedEvent) (*gcppubsub.Message, error) {
	attrs, err := payloadAttributes(event, resolved.Payload)
	if err != nil {
		return nil, registry.NewNonRetryableError(err)
	}
	attrs["event_id"] = resolved.Envelope.EventID
	attrs["event_type"] = string(event.EventType)
	attrs["aggregate_type"] = string(event.AggregateType)
	attrs["aggregate_id"] = event.AggregateID.String()
	attrs["schema_version"] = strconv.Itoa(resolved.Envelope.Version)
	attrs["occurred_at"] = resolved.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)
	if actor := resolved.Envelope.Actor; actor != nil && actor.Role != "" {
		attrs["actor_role"] = actor.Role
	}

	return &gcppubsub.Message{
		Data:        event.Payload,
		Attributes:  attrs,
		OrderingKey: orderingKey(event),
	}, nil
}

func payloadAttributes(event models.OutboxEvent, payload any) (map[string]string, error) {
	switch p := payload.(type) {
	case *payloads.OrderCreatedEvent:
		if err := matchAggregate(event, p.OrderID); err != nil {
			return nil, err
		}
		return map[string]string{
			"buyer_id":  p.BuyerID.String(),
			"to_status": string(p.Status),
		}, nil
	case *payloads.OrderStatusChangedEvent:
		if err := matchAggregate(event, p.OrderID); err != nil {
			return nil, err
		}
		return map[string]string{
			"buyer_id":    p.BuyerID.String(),
			"from_status": string(p.From),
			"to_status":   string(p.To),
			"terminal":    strconv.FormatBool(p.To.IsTerminal()),
			"override":    strconv.FormatBool(p.Override),
		}, nil
	case *payloads.OrderDeletedEvent:
		if err := matchAggregate(event, p.OrderID); err != nil {
			return nil, err
		}
		return map[string]string{
			"buyer_id":    p.BuyerID.String(),
			"from_status": string(p.Status),
		}, nil
	case *payloads.ReportCreatedEvent:
		if err := matchAggregate(event, p.ReportID); err != nil {
			return nil, err
		}
		return map[string]string{
			"order_id":    p.OrderID.String(),
			"filer_id":    p.FilerID.String(),
			"report_type": string(p.Type),
			"priority":    string(p.Priority),
		}, nil
	case *payloads.ReportStatusChangedEvent:
		if err := matchAggregate(event, p.ReportID); err != nil {
			return nil, err
		}
		return map[string]string{
			"order_id":    p.OrderID.String(),
			"filer_id":    p.FilerID.String(),
			"from_status": string(p.From),
			"to_status":   string(p.To),
			"terminal":    strconv.FormatBool(p.To.IsResolved()),
			"resolved":    strconv.FormatBool(p.ResolvedAt != nil),
		}, nil
	default:
		return nil, fmt.Errorf("no attribute mapping for %s payload %T", event.EventType, payload)
	}
}

func matchAggregate(event models.OutboxEvent, id uuid.UUID) error {
	if id != event.AggregateID {
		return fmt.Errorf("%s payload id %s does not match aggregate %s", event.EventType, id, event.AggregateID)
	}
	return nil
}
