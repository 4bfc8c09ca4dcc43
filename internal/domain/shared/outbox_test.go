package shared

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboxTestEvent struct {
	BaseDomainEvent
}

func TestNewOutboxEntry(t *testing.T) {
	at := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	evt := &outboxTestEvent{NewBaseDomainEvent("StockMovementRecorded", "StockMovement", uuid.New(), at)}

	entry := NewOutboxEntry(evt, []byte(`{}`))

	assert.Equal(t, evt.EventID(), entry.EventID)
	assert.Equal(t, "StockMovementRecorded", entry.EventType)
	assert.Equal(t, "StockMovement", entry.AggregateType)
	assert.Equal(t, evt.AggregateID(), entry.AggregateID)
	assert.Equal(t, OutboxStatusPending, entry.Status)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.Equal(t, at, entry.CreatedAt)
}

func TestRetryBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{9, 256 * time.Second},
		{10, MaxRetryBackoff},
		{64, MaxRetryBackoff},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RetryBackoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestOutboxEntry_MarkFailed(t *testing.T) {
	now := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	entry := &OutboxEntry{ID: uuid.New(), Status: OutboxStatusProcessing, MaxRetries: 3}

	entry.MarkFailed("error 1", now)
	assert.Equal(t, OutboxStatusFailed, entry.Status)
	require.NotNil(t, entry.NextRetryAt)
	assert.Equal(t, now.Add(time.Second), *entry.NextRetryAt)

	entry.MarkFailed("error 2", now)
	assert.Equal(t, now.Add(2*time.Second), *entry.NextRetryAt)
	assert.False(t, entry.IsDead())

	entry.MarkFailed("final error", now)
	assert.True(t, entry.IsDead())
	assert.Equal(t, 3, entry.RetryCount)
	assert.Equal(t, "final error", entry.LastError)
	assert.Nil(t, entry.NextRetryAt)
	assert.Equal(t, now, entry.UpdatedAt)
}

func TestOutboxEntry_MarkSent(t *testing.T) {
	now := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	entry := &OutboxEntry{Status: OutboxStatusProcessing, MaxRetries: 3}
	entry.MarkFailed("transient", now)

	entry.MarkSent(now.Add(time.Minute))

	assert.Equal(t, OutboxStatusSent, entry.Status)
	require.NotNil(t, entry.ProcessedAt)
	assert.Equal(t, now.Add(time.Minute), *entry.ProcessedAt)
	assert.Nil(t, entry.NextRetryAt)
	assert.False(t, entry.IsDead())
}
