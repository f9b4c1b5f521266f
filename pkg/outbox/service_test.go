package outbox

import (
	"context"
	"errors"
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
)

func TestEmitWritesEnvelope(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(db), nil)
	orderID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          map[string]string{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, orderID, rows[0].AggregateID)
	assert.Nil(t, rows[0].PublishedAt)

	envelope, err := DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, CurrentVersion, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.Equal(t, enums.EventOrderCreated, envelope.Type)
	assert.Equal(t, orderID.String(), envelope.AggregateID)
	assert.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(nil, nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(db), nil)
	orderID := uuid.New()
	event := DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Data:          map[string]string{"payment_ref": "123"},
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.EmitIfNotExists(context.Background(), tx, event)
		}))
	}

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEmitStampsRowIDAndClock(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(db), nil)
	fixedID := uuid.MustParse("7d5c1d2e-0b7f-4c55-9a34-35f1a4c2b001")
	svc.newID = func() uuid.UUID { return fixedID }
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("ICT", 7*3600)) }

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventSpinCompleted,
		AggregateType: enums.AggregateUserRank,
		AggregateID:   uuid.New(),
		Data:          map[string]int{"reward_index": 2},
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row, "id = ?", fixedID).Error)
	envelope, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, fixedID.String(), envelope.EventID)
	assert.True(t, envelope.OccurredAt.Equal(time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)))
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxEvent{})
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     "order_vanished",
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order_vanished")
}

func TestRepositoryClaimPublishPark(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(db)
	now := time.Now().UTC()

	for _, eventType := range []enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderPaid} {
		require.NoError(t, repo.Insert(db, models.OutboxEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       `{}`,
		}))
	}

	rows, err := repo.Claim(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublished(db, rows[0].ID, now))
	require.NoError(t, repo.Park(db, rows[1].ID, errors.New("no topic"), 3))

	rows, err = repo.Claim(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)

	purged, err := repo.PurgePublished(context.Background(), db, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, purged, "rows published after the cutoff stay")

	purged, err = repo.PurgePublished(context.Background(), db, now.Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestRecordFailureCountsAttempts(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxEvent{})
	repo := NewRepository(db)
	row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderCreated, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: `{}`}
	require.NoError(t, repo.Insert(db, row))

	long := errors.New(strings.Repeat("x", lastErrorLimit+50))
	require.NoError(t, repo.RecordFailure(db, row.ID, errors.New("broker down")))
	require.NoError(t, repo.RecordFailure(db, row.ID, long))

	var stored models.OutboxEvent
	require.NoError(t, db.First(&stored, "id = ?", row.ID).Error)
	assert.Equal(t, 2, stored.AttemptCount)
	require.NotNil(t, stored.LastError)
	assert.Len(t, *stored.LastError, lastErrorLimit)

	rows, err := repo.Claim(db, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, rows, "attempts exhausted")
}

func TestRepositoryNeedsTransaction(t *testing.T) {
	repo := NewRepository(nil)
	require.ErrorIs(t, repo.Insert(nil, models.OutboxEvent{}), errNoTx)
	_, err := repo.Exists(nil, enums.EventOrderPaid, enums.AggregateOrder, uuid.New())
	require.ErrorIs(t, err, errNoTx)
}

func TestDeadLetterInsertIsIdempotent(t *testing.T) {
	db := dbtest.Open(t, &models.OutboxDLQ{})
	repo := NewDLQRepository()
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventSpinCompleted,
		AggregateType: enums.AggregateUserRank,
		AggregateID:   uuid.New(),
		Payload:       `{"version":1}`,
		AttemptCount:  3,
	}
	entry := DeadLetter(event, enums.OutboxDLQReasonMaxAttempts, errors.New("kafka: leader not available"), time.Now())
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, event.ID, entry.EventID)

	for range 2 {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return repo.InsertTx(tx, entry)
		}))
	}
	var count int64
	require.NoError(t, db.Model(&models.OutboxDLQ{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	bad := DeadLetter(event, "gave_up", nil, time.Now())
	assert.Nil(t, bad.ErrorMessage)
	require.Error(t, db.Transaction(func(tx *gorm.DB) error { return repo.InsertTx(tx, bad) }))
}
