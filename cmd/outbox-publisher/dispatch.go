package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"gorm.io/gorm"
)

type dispatchOutcome int

const (
	outcomePublished dispatchOutcome = iota
	outcomeRetry
	outcomeDeadLettered
)

type batchReport struct {
	fetched      int
	published    int
	retried      int
	deadLettered int
	held         int
}

// drained reports whether every fetched row reached a final state, so the
// next batch can be fetched without waiting.
func (r batchReport) drained() bool {
	return r.fetched > 0 && r.retried == 0 && r.held == 0
}

func (s *Service) processBatch(ctx context.Context) (batchReport, error) {
	start := s.now()
	defer func() { s.metrics.ObserveBatch(s.now().Sub(start)) }()

	var report batchReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		report = batchReport{}
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		report.fetched = len(events)

		// Rows arrive oldest first. Once an order or report has an event
		// waiting for retry, its later events wait too.
		blocked := make(map[string]struct{})
		for _, event := range events {
			key := orderingKey(event)
			if _, ok := blocked[key]; ok {
				report.held++
				s.metrics.IncHeld(string(event.AggregateType))
				continue
			}

			outcome, err := s.dispatch(ctx, tx, event)
			if err != nil {
				return err
			}
			switch outcome {
			case outcomePublished:
				report.published++
			case outcomeRetry:
				report.retried++
				blocked[key] = struct{}{}
			case outcomeDeadLettered:
				report.deadLettered++
			}
		}
		return nil
	})
	return report, err
}

func (s *Service) dispatch(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (dispatchOutcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, s.eventFields(event, nil))
	}

	fields := s.eventFields(event, resolved)
	msg, err := lifecycleMessage(event, resolved)
	if err == nil {
		err = s.publish(ctx, resolved.Descriptor.Topic, msg)
	}
	if err == nil {
		if markErr := s.repo.MarkPublishedTx(tx, event.ID); markErr != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, markErr)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "lifecycle event published")
		return outcomePublished, nil
	}

	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}

	attempts := event.AttemptCount + 1
	fields["attempt_count"] = attempts
	if attempts >= s.maxAttempts {
		terminalErr := fmt.Errorf("max publish attempts reached: %w", err)
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts, terminalErr, fields)
	}

	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", err.Error())
	s.logg.Warn(logCtx, "lifecycle event publish failed, will retry")
	s.metrics.IncFailure(string(event.EventType))
	if markErr := s.repo.MarkFailedTx(tx, event.ID, err); markErr != nil {
		return outcomeRetry, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
	}
	return outcomeRetry, nil
}

func (s *Service) publish(ctx context.Context, topic string, msg *gcppubsub.Message) error {
	pub := s.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	logCtx := s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error())
	s.logg.Warn(logCtx, "lifecycle event dead-lettered")
	s.metrics.IncDeadLetter(string(event.EventType), string(reason))

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      s.now().UTC(),
	}
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
		fields["topic"] = resolved.Descriptor.Topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
