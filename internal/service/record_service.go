package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tanvi/payboard/internal/domain"
	"github.com/tanvi/payboard/internal/metrics"
	"github.com/tanvi/payboard/internal/store"
)

// OperatorKey is the reserved field-map key naming the operator who
// performed the edit. It is extracted before allow-listing and never
// written onto the record.
const OperatorKey = "operator"

// mutableFields is the allow-list of externally editable fields. Keys not
// present here are silently dropped from inbound field maps.
var mutableFields = map[string]struct{}{
	store.FieldStatus:  {},
	store.FieldAmount:  {},
	store.FieldPayee:   {},
	store.FieldChannel: {},
	store.FieldRemarks: {},
}

// RecordService is the audited update engine. It accepts untrusted field
// maps, restricts them to the allow-list, diffs against current state and
// coordinates the repository write with the audit trail.
type RecordService struct {
	txns    store.TransactionStore
	audit   store.AuditStore
	metrics *metrics.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRecordService constructs a RecordService. The metrics handle may be
// nil when instrumentation is disabled.
func NewRecordService(s store.Store, m *metrics.Metrics) *RecordService {
	return &RecordService{
		txns:    s.Transactions(),
		audit:   s.Audit(),
		metrics: m,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the transaction with the given identifier.
func (s *RecordService) Get(ctx context.Context, txnID string) (domain.Transaction, error) {
	if txnID == "" {
		return domain.Transaction{}, fmt.Errorf("%w: transaction ID is required", domain.ErrInvalidRequest)
	}
	return s.txns.Get(ctx, txnID)
}

// List returns transactions matching the filter, newest first.
func (s *RecordService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	return s.txns.List(ctx, filter)
}

// AuditHistory returns every audit event recorded for one transaction,
// in append order.
func (s *RecordService) AuditHistory(ctx context.Context, txnID string) ([]domain.AuditEvent, error) {
	if txnID == "" {
		return nil, fmt.Errorf("%w: transaction ID is required", domain.ErrInvalidRequest)
	}
	return s.audit.ForTransaction(ctx, txnID)
}

// Update applies a partial update to one transaction.
//
// The field map is untrusted: keys outside the mutable-field allow-list
// are dropped without error, values are validated against each field's
// domain, and fields whose submitted value equals the current value are
// suppressed so they produce no write and no audit event. When every
// submitted value matches, the call is a true no-op and returns the
// unchanged record with success. Otherwise all changed fields are applied
// in one atomic store write followed by one audit event per changed
// field.
//
// Calls for the same identifier serialize on a per-key mutex so each one
// diffs against the latest committed state. The repository write and the
// audit appends are two sequential store operations; if the process dies
// between them the update stands without its trail entries. Closing that
// window needs a backing store with multi-collection transactions, which
// plain MongoDB deployments do not guarantee.
func (s *RecordService) Update(ctx context.Context, txnID string, fieldMap map[string]any) (domain.Transaction, error) {
	operator := extractOperator(fieldMap)

	proposed := make(map[string]any, len(fieldMap))
	for name, value := range fieldMap {
		if _, ok := mutableFields[name]; ok {
			proposed[name] = value
		}
	}

	unlock := s.lockKey(txnID)
	defer unlock()

	current, err := s.txns.Get(ctx, txnID)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveUpdate(metrics.UpdateNotFound)
		}
		return domain.Transaction{}, err
	}

	if len(proposed) == 0 {
		if s.metrics != nil {
			s.metrics.ObserveUpdate(metrics.UpdateRejected)
		}
		return domain.Transaction{}, fmt.Errorf("%w: no updatable fields provided", domain.ErrInvalidRequest)
	}

	changes := make(map[string]any, len(proposed))
	var events []domain.AuditEvent
	for name, rawValue := range proposed {
		value, err := coerceFieldValue(name, rawValue)
		if err != nil {
			if s.metrics != nil {
				s.metrics.ObserveUpdate(metrics.UpdateRejected)
			}
			return domain.Transaction{}, fmt.Errorf("%w: field %s: %v", domain.ErrInvalidRequest, name, err)
		}

		oldValue := currentFieldValue(current, name)
		if fieldValuesEqual(oldValue, value) {
			continue
		}

		changes[name] = value
		events = append(events, domain.AuditEvent{
			TxnID:    txnID,
			Field:    name,
			OldValue: oldValue,
			NewValue: value,
			EditedBy: operator.DisplayName(),
		})
	}

	if len(changes) == 0 {
		if s.metrics != nil {
			s.metrics.ObserveUpdate(metrics.UpdateNoop)
		}
		return current, nil
	}

	updated, err := s.txns.ApplyFields(ctx, txnID, changes)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ObserveUpdate(metrics.UpdateError)
		}
		return domain.Transaction{}, err
	}

	for i := range events {
		if err := s.audit.Append(ctx, &events[i]); err != nil {
			if s.metrics != nil {
				s.metrics.ObserveUpdate(metrics.UpdateError)
			}
			return updated, fmt.Errorf("record audit event for field %s: %w", events[i].Field, err)
		}
	}

	if s.metrics != nil {
		s.metrics.ObserveUpdate(metrics.UpdateApplied)
		s.metrics.AddAuditEvents(len(events))
	}
	return updated, nil
}

// lockKey serializes update calls that target the same transaction.
// Mutexes are retained for the process lifetime; the key space is the
// transaction ID space, which is small for a back-office store.
func (s *RecordService) lockKey(txnID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[txnID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[txnID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func extractOperator(fieldMap map[string]any) domain.Operator {
	raw, ok := fieldMap[OperatorKey]
	if !ok {
		return domain.Operator{}
	}
	name, _ := raw.(string)
	return domain.NewOperator(name)
}

// coerceFieldValue validates a proposed value against the field's domain
// and converts it to its canonical type.
func coerceFieldValue(name string, value any) (any, error) {
	switch name {
	case store.FieldStatus:
		raw, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return domain.ParseStatus(raw)
	case store.FieldChannel:
		raw, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return domain.ParseChannel(raw)
	case store.FieldAmount:
		amount, err := coerceAmount(value)
		if err != nil {
			return nil, err
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("amount must be non-negative, got %s", amount)
		}
		return amount, nil
	case store.FieldPayee, store.FieldRemarks:
		raw, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("field is not mutable")
	}
}

// coerceAmount accepts the numeric shapes a JSON payload can carry.
// Comparing decimals by value means 100 and 100.0 are the same amount.
func coerceAmount(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case json.Number:
		return decimal.NewFromString(v.String())
	case string:
		return decimal.NewFromString(v)
	default:
		return decimal.Decimal{}, fmt.Errorf("expected number, got %T", value)
	}
}

func currentFieldValue(txn domain.Transaction, name string) any {
	switch name {
	case store.FieldStatus:
		return txn.Status
	case store.FieldAmount:
		return txn.Amount
	case store.FieldPayee:
		return txn.Payee
	case store.FieldChannel:
		return txn.Channel
	case store.FieldRemarks:
		return txn.Remarks
	default:
		return nil
	}
}

// fieldValuesEqual compares by value within the field's domain type.
func fieldValuesEqual(oldValue, newValue any) bool {
	if oldAmount, ok := oldValue.(decimal.Decimal); ok {
		newAmount, ok := newValue.(decimal.Decimal)
		return ok && oldAmount.Equal(newAmount)
	}
	return oldValue == newValue
}
