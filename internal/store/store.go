package store

import (
	"context"
	"errors"
	"time"

	"github.com/tanvi/payboard/internal/domain"
)

// TransactionStore is the persistence contract for canonical transaction
// records. ApplyFields must be atomic with respect to concurrent readers:
// a Get interleaved with an in-flight ApplyFields on the same key
// observes either the fully-old or fully-new state, never a partial field
// set.
type TransactionStore interface {
	// Get performs an exact-key lookup, returning domain.ErrNotFound
	// when no record exists for the identifier.
	Get(ctx context.Context, txnID string) (domain.Transaction, error)

	// List returns transactions matching the filter, ordered by
	// timestamp descending with ties broken by insertion order.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error)

	// ApplyFields atomically overwrites the given mutable fields on one
	// record and returns the result. Unknown records yield
	// domain.ErrNotFound.
	ApplyFields(ctx context.Context, txnID string, fields map[string]any) (domain.Transaction, error)

	// Insert stores a record, replacing any existing record with the
	// same txn_id so identifiers stay unique. Records are created only
	// by seeding and ingestion paths, never by the update engine.
	Insert(ctx context.Context, txn domain.Transaction) error

	// Clear removes every transaction record. Used by the seed tooling
	// before a fresh load; the audit trail is untouched.
	Clear(ctx context.Context) error

	// Since scans every record with a timestamp at or after start,
	// unbounded, for aggregation.
	Since(ctx context.Context, start time.Time) ([]domain.Transaction, error)
}

// AuditStore is the persistence contract for the append-only audit trail.
type AuditStore interface {
	// Append durably records one immutable event, assigning EditedAt if
	// it is zero and an opaque event ID if missing. Per-transaction
	// EditedAt values are monotonically non-decreasing.
	Append(ctx context.Context, event *domain.AuditEvent) error

	// Recent returns the most recently appended events, EditedAt
	// descending, ties broken by append order.
	Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error)

	// ForTransaction returns all events for one transaction in append
	// order.
	ForTransaction(ctx context.Context, txnID string) ([]domain.AuditEvent, error)
}

// Store bundles the two collections offered by a single backing store.
type Store interface {
	Transactions() TransactionStore
	Audit() AuditStore

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ErrMissingURI indicates the store URI is not configured.
var ErrMissingURI = errors.New("store URI is required")

// Mutable field names accepted by ApplyFields. Everything else on a
// transaction is immutable after creation.
const (
	FieldStatus  = "status"
	FieldAmount  = "amount"
	FieldPayee   = "payee"
	FieldChannel = "channel"
	FieldRemarks = "remarks"
)
