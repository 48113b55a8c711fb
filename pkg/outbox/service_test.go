package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

func TestEmitStoresEnvelopeInsideTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(db), logger.Nop())

	orderID := uuid.New()
	actor := &outbox.ActorRef{AccountID: uuid.New(), Role: string(enums.RoleMember)}
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID: orderID,
				From:    enums.OrderStatusPending,
				To:      enums.OrderStatusCancelled,
			},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	var env outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	require.NotNil(t, env.Actor)
	assert.Equal(t, actor.AccountID, env.Actor.AccountID)

	var data payloads.OrderStatusChangedEvent
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, enums.OrderStatusCancelled, data.To)
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	db := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(db), logger.Nop())

	boom := errors.New("state change failed")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventReportCreated,
			AggregateType: enums.AggregateReport,
			AggregateID:   uuid.New(),
			Data:          payloads.ReportCreatedEvent{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitValidatesInput(t *testing.T) {
	db := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(db), logger.Nop())

	require.Error(t, svc.Emit(context.Background(), nil, outbox.DomainEvent{}))
	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     "order_teleported",
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
		})
	})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewRepository(db)
	dlq := outbox.NewDLQRepository(db)
	ctx := context.Background()

	first := models.OutboxEvent{EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventOrderDeleted, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	require.NoError(t, repo.Insert(db, first))
	require.NoError(t, repo.Insert(db, second))

	err := db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		require.Len(t, rows, 2)

		require.NoError(t, repo.MarkPublishedTx(tx, rows[0].ID))
		require.NoError(t, repo.MarkTerminalTx(tx, rows[1].ID, errors.New("bad payload"), 3))
		msg := "bad payload"
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       rows[1].ID,
			EventType:     rows[1].EventType,
			AggregateType: rows[1].AggregateType,
			AggregateID:   rows[1].AggregateID,
			Payload:       rows[1].Payload,
			ErrorReason:   enums.OutboxDLQReasonNonRetryable,
			ErrorMessage:  &msg,
		})
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	})
	require.NoError(t, err)

	entries, err := dlq.List(ctx, outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entries[0].ErrorReason)
}
