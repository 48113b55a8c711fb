package outbox_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func dlqEntry(eventType enums.OutboxEventType, aggregateID uuid.UUID, reason enums.OutboxDLQErrorReason, failedAt time.Time) models.OutboxDLQ {
	msg := "publish failed"
	return models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   aggregateID,
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  3,
		FailedAt:      failedAt,
	}
}

func insertDLQ(t *testing.T, db *gorm.DB, repo *outbox.DLQRepository, entries ...models.OutboxDLQ) {
	t.Helper()
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			if err := repo.InsertTx(tx, entry); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestDLQInsertIgnoresRepeatedEventAndTruncatesMessage(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewDLQRepository(db)

	entry := dlqEntry(enums.EventOrderCreated, uuid.New(), enums.OutboxDLQReasonMaxAttempts, time.Now().UTC())
	long := strings.Repeat("x", 5000)
	entry.ErrorMessage = &long
	insertDLQ(t, db, repo, entry, entry)

	var rows []models.OutboxDLQ
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Len(t, *rows[0].ErrorMessage, 1024)

	assert.Error(t, repo.InsertTx(nil, entry))
}

func TestDLQListFiltersNewestFirst(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewDLQRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	older := dlqEntry(enums.EventOrderStatusChanged, orderID, enums.OutboxDLQReasonMaxAttempts, base)
	newer := dlqEntry(enums.EventOrderDeleted, orderID, enums.OutboxDLQReasonNonRetryable, base.Add(time.Hour))
	other := dlqEntry(enums.EventOrderStatusChanged, uuid.New(), enums.OutboxDLQReasonMaxAttempts, base.Add(2*time.Hour))
	insertDLQ(t, db, repo, older, newer, other)

	all, err := repo.List(ctx, outbox.DLQFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.EventID, all[0].EventID)

	forOrder, err := repo.List(ctx, outbox.DLQFilter{AggregateID: orderID})
	require.NoError(t, err)
	require.Len(t, forOrder, 2)
	assert.Equal(t, newer.EventID, forOrder[0].EventID)
	assert.Equal(t, older.EventID, forOrder[1].EventID)

	maxed, err := repo.List(ctx, outbox.DLQFilter{Reason: enums.OutboxDLQReasonMaxAttempts, Limit: 1})
	require.NoError(t, err)
	require.Len(t, maxed, 1)
	assert.Equal(t, other.EventID, maxed[0].EventID)

	deleted, err := repo.List(ctx, outbox.DLQFilter{EventType: enums.EventOrderDeleted})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, newer.EventID, deleted[0].EventID)
}

func TestDLQSummaryGroupsByTypeAndReason(t *testing.T) {
	db := dbtest.Open(t)
	repo := outbox.NewDLQRepository(db)
	now := time.Now().UTC()

	insertDLQ(t, db, repo,
		dlqEntry(enums.EventOrderStatusChanged, uuid.New(), enums.OutboxDLQReasonMaxAttempts, now),
		dlqEntry(enums.EventOrderStatusChanged, uuid.New(), enums.OutboxDLQReasonMaxAttempts, now),
		dlqEntry(enums.EventOrderStatusChanged, uuid.New(), enums.OutboxDLQReasonNonRetryable, now),
	)

	summary, err := repo.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []outbox.DLQSummary{
		{EventType: enums.EventOrderStatusChanged, ErrorReason: enums.OutboxDLQReasonMaxAttempts, Count: 2},
		{EventType: enums.EventOrderStatusChanged, ErrorReason: enums.OutboxDLQReasonNonRetryable, Count: 1},
	}, summary)
}
