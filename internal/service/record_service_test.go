package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanvi/payboard/internal/domain"
	"github.com/tanvi/payboard/internal/store"
)

func seededRecordService(t *testing.T) (*RecordService, *store.Memory) {
	t.Helper()

	mem := store.NewMemory()
	txn := domain.Transaction{
		TxnID:     "TXN100001",
		Payer:     "Alice",
		Payee:     "MerchantA",
		Amount:    decimal.RequireFromString("500.00"),
		Channel:   domain.ChannelUPI,
		Status:    domain.StatusPending,
		Timestamp: time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, mem.Insert(context.Background(), txn))
	return NewRecordService(mem, nil), mem
}

func TestRecordService_UpdateAppliesChangedFieldsOnly(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, "TXN100001", map[string]any{
		"status":   "Success",
		"amount":   json.Number("500.00"), // matches current value
		"operator": "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, updated.Status)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("500.00")))

	events, err := mem.ForTransaction(ctx, "TXN100001")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "status", events[0].Field)
	assert.Equal(t, domain.StatusPending, events[0].OldValue)
	assert.Equal(t, domain.StatusSuccess, events[0].NewValue)
	assert.Equal(t, "alice", events[0].EditedBy)
	assert.NotEmpty(t, events[0].ID)
}

func TestRecordService_UpdateDropsImmutableFields(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, "TXN100001", map[string]any{
		"payer":  "Mallory",
		"txn_id": "TXN999999",
		"status": "Failed",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", updated.Payer)
	assert.Equal(t, "TXN100001", updated.TxnID)
	assert.Equal(t, domain.StatusFailed, updated.Status)

	events, err := mem.ForTransaction(ctx, "TXN100001")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "status", events[0].Field)
}

func TestRecordService_UpdateRejectsUnknownFieldsOnly(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "TXN100001", map[string]any{
		"unknown_field": "x",
		"operator":      "alice",
	})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	events, err := mem.ForTransaction(ctx, "TXN100001")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordService_UpdateNotFound(t *testing.T) {
	svc, _ := seededRecordService(t)

	_, err := svc.Update(context.Background(), "TXN_MISSING", map[string]any{"status": "Success"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordService_UpdateNoopSuppression(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()

	updated, err := svc.Update(ctx, "TXN100001", map[string]any{
		"status":  "Pending",
		"amount":  json.Number("500"),
		"payee":   "MerchantA",
		"channel": "UPI",
		"remarks": "",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)

	events, err := mem.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRecordService_UpdateIdempotent(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()
	fields := map[string]any{"status": "Success", "operator": "ops"}

	_, err := svc.Update(ctx, "TXN100001", fields)
	require.NoError(t, err)
	_, err = svc.Update(ctx, "TXN100001", fields)
	require.NoError(t, err)

	events, err := mem.ForTransaction(ctx, "TXN100001")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecordService_UpdateAmountNormalization(t *testing.T) {
	// 500, 500.0 and "500.00" all denote the stored amount and must not
	// produce an audit event.
	for _, value := range []any{
		json.Number("500"),
		json.Number("500.0"),
		float64(500),
		"500.00",
	} {
		svc, mem := seededRecordService(t)
		ctx := context.Background()

		updated, err := svc.Update(ctx, "TXN100001", map[string]any{"amount": value})
		require.NoError(t, err)
		assert.True(t, updated.Amount.Equal(decimal.RequireFromString("500.00")))

		events, err := mem.ForTransaction(ctx, "TXN100001")
		require.NoError(t, err)
		assert.Empty(t, events, "value %v should be a no-op", value)
	}
}

func TestRecordService_UpdateValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"unknown status", map[string]any{"status": "Bogus"}},
		{"unknown channel", map[string]any{"channel": "WIRE"}},
		{"negative amount", map[string]any{"amount": json.Number("-5")}},
		{"non-numeric amount", map[string]any{"amount": true}},
		{"non-string payee", map[string]any{"payee": 42}},
		{"non-string remarks", map[string]any{"remarks": []string{"x"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, mem := seededRecordService(t)
			ctx := context.Background()

			_, err := svc.Update(ctx, "TXN100001", tc.fields)
			require.ErrorIs(t, err, domain.ErrInvalidRequest)

			current, err := mem.Get(ctx, "TXN100001")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, current.Status)

			events, err := mem.ForTransaction(ctx, "TXN100001")
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestRecordService_UpdateOperatorDefaultsToUnknown(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "TXN100001", map[string]any{"remarks": "reviewed"})
	require.NoError(t, err)

	events, err := mem.ForTransaction(ctx, "TXN100001")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.UnknownOperatorName, events[0].EditedBy)
}

func TestRecordService_ConcurrentUpdatesSerialize(t *testing.T) {
	svc, mem := seededRecordService(t)
	ctx := context.Background()

	// All writers race toward the same target value. Serialized diffing
	// means exactly one of them observes Pending and records the
	// transition; the rest must see Success and no-op.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Update(ctx, "TXN100001", map[string]any{"status": "Success"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	events, err := mem.ForTransaction(ctx, "TXN100001")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecordService_GetRequiresID(t *testing.T) {
	svc, _ := seededRecordService(t)

	_, err := svc.Get(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestRecordService_AuditHistoryOrder(t *testing.T) {
	svc, _ := seededRecordService(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, "TXN100001", map[string]any{"status": "Success", "operator": "alice"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, "TXN100001", map[string]any{"status": "Failed", "operator": "bob"})
	require.NoError(t, err)

	events, err := svc.AuditHistory(ctx, "TXN100001")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "alice", events[0].EditedBy)
	assert.Equal(t, "bob", events[1].EditedBy)
}
