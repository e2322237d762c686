package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanvi/payboard/internal/domain"
)

func newTxn(id, payer, payee, amount string, channel domain.Channel, status domain.Status, ts time.Time) domain.Transaction {
	return domain.Transaction{
		TxnID:     id,
		Payer:     payer,
		Payee:     payee,
		Amount:    decimal.RequireFromString(amount),
		Channel:   channel,
		Status:    status,
		Timestamp: ts,
	}
}

func TestMemory_GetNotFound(t *testing.T) {
	mem := NewMemory()

	_, err := mem.Get(context.Background(), "TXN_MISSING")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_InsertAndGet(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	txn := newTxn("TXN100001", "Alice", "MerchantA", "500.00", domain.ChannelUPI, domain.StatusPending, now)
	require.NoError(t, mem.Insert(ctx, txn))

	got, err := mem.Get(ctx, "TXN100001")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Payer)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("500.00")))
}

func TestMemory_ListFiltersAndSort(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Insert(ctx, newTxn("TXN1", "Alice", "MerchantA", "100", domain.ChannelUPI, domain.StatusPending, base)))
	require.NoError(t, mem.Insert(ctx, newTxn("TXN2", "Bob", "StoreX", "200", domain.ChannelNEFT, domain.StatusFailed, base.Add(2*time.Hour))))
	require.NoError(t, mem.Insert(ctx, newTxn("TXN3", "alicia", "VendorY", "300", domain.ChannelRTGS, domain.StatusFailed, base.Add(time.Hour))))

	t.Run("no filter sorts newest first", func(t *testing.T) {
		txns, err := mem.List(ctx, domain.ListFilter{})
		require.NoError(t, err)
		require.Len(t, txns, 3)
		assert.Equal(t, "TXN2", txns[0].TxnID)
		assert.Equal(t, "TXN3", txns[1].TxnID)
		assert.Equal(t, "TXN1", txns[2].TxnID)
	})

	t.Run("payer matches case-insensitive substring", func(t *testing.T) {
		txns, err := mem.List(ctx, domain.ListFilter{Payer: "ALI"})
		require.NoError(t, err)
		require.Len(t, txns, 2)
		assert.Equal(t, "TXN3", txns[0].TxnID)
		assert.Equal(t, "TXN1", txns[1].TxnID)
	})

	t.Run("status matches exactly", func(t *testing.T) {
		txns, err := mem.List(ctx, domain.ListFilter{Status: "Failed"})
		require.NoError(t, err)
		require.Len(t, txns, 2)
		for _, txn := range txns {
			assert.Equal(t, domain.StatusFailed, txn.Status)
		}
	})

	t.Run("txn_id matches exactly", func(t *testing.T) {
		txns, err := mem.List(ctx, domain.ListFilter{TxnID: "TXN2"})
		require.NoError(t, err)
		require.Len(t, txns, 1)
		assert.Equal(t, "TXN2", txns[0].TxnID)
	})

	t.Run("limit bounds results", func(t *testing.T) {
		txns, err := mem.List(ctx, domain.ListFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})
}

func TestMemory_ListTiesKeepInsertionOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	ts := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Insert(ctx, newTxn("TXN_A", "Alice", "MerchantA", "10", domain.ChannelUPI, domain.StatusPending, ts)))
	require.NoError(t, mem.Insert(ctx, newTxn("TXN_B", "Bob", "MerchantB", "20", domain.ChannelUPI, domain.StatusPending, ts)))

	txns, err := mem.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "TXN_A", txns[0].TxnID)
	assert.Equal(t, "TXN_B", txns[1].TxnID)
}

func TestMemory_ApplyFields(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Insert(ctx, newTxn("TXN1", "Alice", "MerchantA", "100", domain.ChannelUPI, domain.StatusPending, now)))

	updated, err := mem.ApplyFields(ctx, "TXN1", map[string]any{
		FieldStatus: domain.StatusSuccess,
		FieldAmount: decimal.RequireFromString("250.75"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, updated.Status)
	assert.True(t, updated.Amount.Equal(decimal.RequireFromString("250.75")))

	got, err := mem.Get(ctx, "TXN1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	// immutable fields untouched
	assert.Equal(t, "Alice", got.Payer)
	assert.Equal(t, now, got.Timestamp)
}

func TestMemory_ApplyFieldsNotFound(t *testing.T) {
	mem := NewMemory()

	_, err := mem.ApplyFields(context.Background(), "TXN_MISSING", map[string]any{FieldRemarks: "x"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_InsertReplacesDuplicateID(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Insert(ctx, newTxn("TXN1", "Alice", "MerchantA", "100", domain.ChannelUPI, domain.StatusPending, now)))
	require.NoError(t, mem.Insert(ctx, newTxn("TXN1", "Alice", "MerchantA", "250", domain.ChannelUPI, domain.StatusSuccess, now)))

	txns, err := mem.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("250")))
	assert.Equal(t, domain.StatusSuccess, txns[0].Status)
}

func TestMemory_ClearKeepsAuditTrail(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Insert(ctx, newTxn("TXN1", "Alice", "MerchantA", "100", domain.ChannelUPI, domain.StatusPending, now)))
	event := domain.AuditEvent{TxnID: "TXN1", Field: "status"}
	require.NoError(t, mem.Append(ctx, &event))

	require.NoError(t, mem.Clear(ctx))

	txns, err := mem.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, txns)

	_, err = mem.Get(ctx, "TXN1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	events, err := mem.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemory_Since(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	cutoff := time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, mem.Insert(ctx, newTxn("TXN_OLD", "Alice", "MerchantA", "10", domain.ChannelUPI, domain.StatusPending, cutoff.Add(-time.Minute))))
	require.NoError(t, mem.Insert(ctx, newTxn("TXN_EDGE", "Bob", "MerchantB", "20", domain.ChannelNEFT, domain.StatusSuccess, cutoff)))
	require.NoError(t, mem.Insert(ctx, newTxn("TXN_NEW", "Eve", "StoreX", "30", domain.ChannelIMPS, domain.StatusFailed, cutoff.Add(time.Hour))))

	txns, err := mem.Since(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	ids := []string{txns[0].TxnID, txns[1].TxnID}
	assert.Contains(t, ids, "TXN_EDGE")
	assert.Contains(t, ids, "TXN_NEW")
}

func TestMemory_AppendAssignsIDAndTime(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	event := domain.AuditEvent{TxnID: "TXN1", Field: "status", OldValue: "Pending", NewValue: "Success", EditedBy: "alice"}
	require.NoError(t, mem.Append(ctx, &event))

	assert.NotEmpty(t, event.ID)
	assert.False(t, event.EditedAt.IsZero())
}

func TestMemory_AppendMonotonicEditedAt(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 5, 15, 10, 0, 5, 0, time.UTC),
		time.Date(2024, 5, 15, 10, 0, 1, 0, time.UTC), // clock jumps backwards
	}
	idx := 0
	mem := NewMemory().WithClock(func() time.Time {
		t := times[idx]
		if idx < len(times)-1 {
			idx++
		}
		return t
	})
	ctx := context.Background()

	first := domain.AuditEvent{TxnID: "TXN1", Field: "status"}
	require.NoError(t, mem.Append(ctx, &first))
	second := domain.AuditEvent{TxnID: "TXN1", Field: "amount"}
	require.NoError(t, mem.Append(ctx, &second))

	assert.False(t, second.EditedAt.Before(first.EditedAt))
}

func TestMemory_RecentOrderAndLimit(t *testing.T) {
	base := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	mem := NewMemory()
	ctx := context.Background()

	for i, field := range []string{"status", "amount", "payee"} {
		event := domain.AuditEvent{
			TxnID:    "TXN1",
			Field:    field,
			EditedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, mem.Append(ctx, &event))
	}

	events, err := mem.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "payee", events[0].Field)
	assert.Equal(t, "amount", events[1].Field)
}

func TestMemory_RecentTiesFavorLaterAppend(t *testing.T) {
	ts := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	mem := NewMemory()
	ctx := context.Background()

	first := domain.AuditEvent{TxnID: "TXN1", Field: "status", EditedAt: ts}
	second := domain.AuditEvent{TxnID: "TXN2", Field: "amount", EditedAt: ts}
	require.NoError(t, mem.Append(ctx, &first))
	require.NoError(t, mem.Append(ctx, &second))

	events, err := mem.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "amount", events[0].Field)
	assert.Equal(t, "status", events[1].Field)
}

func TestMemory_ForTransaction(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for _, ev := range []domain.AuditEvent{
		{TxnID: "TXN1", Field: "status"},
		{TxnID: "TXN2", Field: "payee"},
		{TxnID: "TXN1", Field: "amount"},
	} {
		ev := ev
		require.NoError(t, mem.Append(ctx, &ev))
	}

	events, err := mem.ForTransaction(ctx, "TXN1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "status", events[0].Field)
	assert.Equal(t, "amount", events[1].Field)
}
