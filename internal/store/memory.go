package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tanvi/payboard/internal/domain"
)

// Memory is an in-memory implementation of Store used for unit tests and
// local runs without a MongoDB instance. A single lock guards both
// collections, which trivially satisfies the atomicity guarantees of the
// contract: writers hold the write lock for the full field set, readers
// only ever observe committed states.
type Memory struct {
	mu       sync.RWMutex
	txns     map[string]domain.Transaction
	insertID []string
	events   []domain.AuditEvent
	lastEdit time.Time
	nowFn    func() time.Time
}

// NewMemory instantiates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		txns:  make(map[string]domain.Transaction),
		nowFn: time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (m *Memory) WithClock(nowFn func() time.Time) *Memory {
	if nowFn != nil {
		m.nowFn = nowFn
	}
	return m
}

// Transactions implements Store.
func (m *Memory) Transactions() TransactionStore { return m }

// Audit implements Store.
func (m *Memory) Audit() AuditStore { return m }

// Ping implements Store. The in-memory store is always reachable.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close(context.Context) error { return nil }

// Get implements TransactionStore.
func (m *Memory) Get(_ context.Context, txnID string) (domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txn, ok := m.txns[txnID]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return txn, nil
}

// List implements TransactionStore. Results are ordered by timestamp
// descending; ties keep insertion order.
func (m *Memory) List(_ context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.Transaction
	for _, id := range m.insertID {
		txn := m.txns[id]
		if filter.Matches(txn) {
			matched = append(matched, txn)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if limit := filter.EffectiveLimit(); len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// ApplyFields implements TransactionStore. Field values must already be
// domain-typed; unknown field names are ignored here because the update
// engine allow-lists before writing.
func (m *Memory) ApplyFields(_ context.Context, txnID string, fields map[string]any) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	txn, ok := m.txns[txnID]
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}

	for name, value := range fields {
		switch name {
		case FieldStatus:
			if v, ok := value.(domain.Status); ok {
				txn.Status = v
			}
		case FieldAmount:
			if v, ok := value.(decimal.Decimal); ok {
				txn.Amount = v
			}
		case FieldPayee:
			if v, ok := value.(string); ok {
				txn.Payee = v
			}
		case FieldChannel:
			if v, ok := value.(domain.Channel); ok {
				txn.Channel = v
			}
		case FieldRemarks:
			if v, ok := value.(string); ok {
				txn.Remarks = v
			}
		}
	}

	m.txns[txnID] = txn
	return txn, nil
}

// Insert implements TransactionStore.
func (m *Memory) Insert(_ context.Context, txn domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.txns[txn.TxnID]; !exists {
		m.insertID = append(m.insertID, txn.TxnID)
	}
	m.txns[txn.TxnID] = txn
	return nil
}

// Clear implements TransactionStore. Audit events are kept.
func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txns = make(map[string]domain.Transaction)
	m.insertID = nil
	return nil
}

// Since implements TransactionStore.
func (m *Memory) Since(_ context.Context, start time.Time) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.Transaction
	for _, id := range m.insertID {
		txn := m.txns[id]
		if !txn.Timestamp.Before(start) {
			matched = append(matched, txn)
		}
	}
	return matched, nil
}

// Append implements AuditStore. EditedAt is assigned when zero and kept
// monotonically non-decreasing across the process.
func (m *Memory) Append(_ context.Context, event *domain.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EditedAt.IsZero() {
		now := m.nowFn().UTC()
		if now.Before(m.lastEdit) {
			now = m.lastEdit
		}
		event.EditedAt = now
	}
	if event.EditedAt.After(m.lastEdit) {
		m.lastEdit = event.EditedAt
	}

	m.events = append(m.events, *event)
	return nil
}

// Recent implements AuditStore. Events are ordered by EditedAt
// descending; within equal timestamps the later append comes first.
func (m *Memory) Recent(_ context.Context, limit int) ([]domain.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reversed := make([]domain.AuditEvent, len(m.events))
	for i, ev := range m.events {
		reversed[len(m.events)-1-i] = ev
	}
	sort.SliceStable(reversed, func(i, j int) bool {
		return reversed[i].EditedAt.After(reversed[j].EditedAt)
	})

	if limit > 0 && len(reversed) > limit {
		reversed = reversed[:limit]
	}
	return reversed, nil
}

// ForTransaction implements AuditStore.
func (m *Memory) ForTransaction(_ context.Context, txnID string) ([]domain.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []domain.AuditEvent
	for _, ev := range m.events {
		if ev.TxnID == txnID {
			matched = append(matched, ev)
		}
	}
	return matched, nil
}
