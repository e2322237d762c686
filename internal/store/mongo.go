package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tanvi/payboard/internal/domain"
)

const (
	txnCollection  = "transactions"
	editCollection = "edits"
)

// Options configures the MongoDB store.
type Options struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Mongo is the production Store backed by two MongoDB collections:
// transactions keyed by txn_id, and edits ordered by edited_at. The two
// collections are written sequentially, not in one multi-document
// transaction; see the update engine for the documented inconsistency
// window.
type Mongo struct {
	client *mongo.Client
	txns   *mongo.Collection
	edits  *mongo.Collection

	mu       sync.Mutex
	lastEdit time.Time
}

// NewMongo connects to MongoDB and verifies connectivity before returning
// the store.
func NewMongo(ctx context.Context, opts Options) (*Mongo, error) {
	if opts.URI == "" {
		return nil, ErrMissingURI
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("verify mongo connectivity: %w", mapStorageErr(err))
	}

	db := client.Database(opts.Database)
	store := &Mongo{
		client: client,
		txns:   db.Collection(txnCollection),
		edits:  db.Collection(editCollection),
	}

	// Unique index backs the txn_id uniqueness invariant at the store
	// level, not just in the insert path.
	_, err = store.txns.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "txn_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ensure txn_id index: %w", mapStorageErr(err))
	}
	return store, nil
}

// Transactions implements Store.
func (s *Mongo) Transactions() TransactionStore { return s }

// Audit implements Store.
func (s *Mongo) Audit() AuditStore { return s }

// Ping implements Store.
func (s *Mongo) Ping(ctx context.Context) error {
	return mapStorageErr(s.client.Ping(ctx, nil))
}

// Close implements Store.
func (s *Mongo) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Get implements TransactionStore.
func (s *Mongo) Get(ctx context.Context, txnID string) (domain.Transaction, error) {
	var doc txnDoc
	err := s.txns.FindOne(ctx, bson.M{"txn_id": txnID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("find transaction: %w", mapStorageErr(err))
	}
	return doc.toDomain()
}

// List implements TransactionStore.
func (s *Mongo) List(ctx context.Context, filter domain.ListFilter) ([]domain.Transaction, error) {
	query := bson.M{}
	if filter.TxnID != "" {
		query["txn_id"] = filter.TxnID
	}
	if filter.Payer != "" {
		query["payer"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Payer), Options: "i"}
	}
	if filter.Payee != "" {
		query["payee"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.Payee), Options: "i"}
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	// Secondary sort on _id keeps ties in insertion order.
	findOpts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(filter.EffectiveLimit()))

	cursor, err := s.txns.Find(ctx, query, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", mapStorageErr(err))
	}
	return decodeTransactions(ctx, cursor)
}

// ApplyFields implements TransactionStore. A single $set update is atomic
// per document, so concurrent readers never observe a partial field set.
func (s *Mongo) ApplyFields(ctx context.Context, txnID string, fields map[string]any) (domain.Transaction, error) {
	set := bson.M{}
	for name, value := range fields {
		encoded, err := encodeFieldValue(value)
		if err != nil {
			return domain.Transaction{}, fmt.Errorf("encode field %s: %w", name, err)
		}
		set[name] = encoded
	}

	updateOpts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc txnDoc
	err := s.txns.FindOneAndUpdate(ctx, bson.M{"txn_id": txnID}, bson.M{"$set": set}, updateOpts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("apply fields: %w", mapStorageErr(err))
	}
	return doc.toDomain()
}

// Insert implements TransactionStore. An upsert keyed on txn_id keeps
// repeated seeding runs from creating duplicate identifiers.
func (s *Mongo) Insert(ctx context.Context, txn domain.Transaction) error {
	doc, err := newTxnDoc(txn)
	if err != nil {
		return err
	}
	replaceOpts := options.Replace().SetUpsert(true)
	if _, err := s.txns.ReplaceOne(ctx, bson.M{"txn_id": txn.TxnID}, doc, replaceOpts); err != nil {
		return fmt.Errorf("insert transaction: %w", mapStorageErr(err))
	}
	return nil
}

// Clear implements TransactionStore. Audit events are kept.
func (s *Mongo) Clear(ctx context.Context) error {
	if _, err := s.txns.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("clear transactions: %w", mapStorageErr(err))
	}
	return nil
}

// Since implements TransactionStore.
func (s *Mongo) Since(ctx context.Context, start time.Time) ([]domain.Transaction, error) {
	cursor, err := s.txns.Find(ctx, bson.M{"timestamp": bson.M{"$gte": start}})
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", mapStorageErr(err))
	}
	return decodeTransactions(ctx, cursor)
}

// Append implements AuditStore.
func (s *Mongo) Append(ctx context.Context, event *domain.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EditedAt.IsZero() {
		event.EditedAt = s.nextEditTime()
	}

	oldValue, err := encodeFieldValue(event.OldValue)
	if err != nil {
		return fmt.Errorf("encode old value: %w", err)
	}
	newValue, err := encodeFieldValue(event.NewValue)
	if err != nil {
		return fmt.Errorf("encode new value: %w", err)
	}

	doc := editDoc{
		ID:       event.ID,
		TxnID:    event.TxnID,
		Field:    event.Field,
		OldValue: oldValue,
		NewValue: newValue,
		EditedBy: event.EditedBy,
		EditedAt: event.EditedAt,
	}
	if _, err := s.edits.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append audit event: %w", mapStorageErr(err))
	}
	return nil
}

// Recent implements AuditStore.
func (s *Mongo) Recent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	// Secondary sort on _id keeps equal timestamps deterministic, the
	// same way List breaks its ties.
	findOpts := options.Find().SetSort(bson.D{{Key: "edited_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	cursor, err := s.edits.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list recent edits: %w", mapStorageErr(err))
	}
	return decodeEvents(ctx, cursor)
}

// ForTransaction implements AuditStore.
func (s *Mongo) ForTransaction(ctx context.Context, txnID string) ([]domain.AuditEvent, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "edited_at", Value: 1}})
	cursor, err := s.edits.Find(ctx, bson.M{"txn_id": txnID}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("list transaction edits: %w", mapStorageErr(err))
	}
	return decodeEvents(ctx, cursor)
}

// nextEditTime returns wall-clock time clamped to be monotonically
// non-decreasing within this process.
func (s *Mongo) nextEditTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.lastEdit) {
		now = s.lastEdit
	}
	s.lastEdit = now
	return now
}

// --- Document mapping ---

type txnDoc struct {
	TxnID     string               `bson:"txn_id"`
	Payer     string               `bson:"payer"`
	Payee     string               `bson:"payee"`
	Amount    primitive.Decimal128 `bson:"amount"`
	Channel   string               `bson:"channel"`
	Status    string               `bson:"status"`
	Timestamp time.Time            `bson:"timestamp"`
	Remarks   string               `bson:"remarks"`
}

type editDoc struct {
	ID       string    `bson:"_id"`
	TxnID    string    `bson:"txn_id"`
	Field    string    `bson:"field"`
	OldValue any       `bson:"old_value"`
	NewValue any       `bson:"new_value"`
	EditedBy string    `bson:"edited_by"`
	EditedAt time.Time `bson:"edited_at"`
}

func newTxnDoc(txn domain.Transaction) (txnDoc, error) {
	amount, err := primitive.ParseDecimal128(txn.Amount.String())
	if err != nil {
		return txnDoc{}, fmt.Errorf("encode amount: %w", err)
	}
	return txnDoc{
		TxnID:     txn.TxnID,
		Payer:     txn.Payer,
		Payee:     txn.Payee,
		Amount:    amount,
		Channel:   string(txn.Channel),
		Status:    string(txn.Status),
		Timestamp: txn.Timestamp.UTC(),
		Remarks:   txn.Remarks,
	}, nil
}

func (d txnDoc) toDomain() (domain.Transaction, error) {
	amount, err := decimal.NewFromString(d.Amount.String())
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	return domain.Transaction{
		TxnID:     d.TxnID,
		Payer:     d.Payer,
		Payee:     d.Payee,
		Amount:    amount,
		Channel:   domain.Channel(d.Channel),
		Status:    domain.Status(d.Status),
		Timestamp: d.Timestamp.UTC(),
		Remarks:   d.Remarks,
	}, nil
}

func (d editDoc) toDomain() domain.AuditEvent {
	return domain.AuditEvent{
		ID:       d.ID,
		TxnID:    d.TxnID,
		Field:    d.Field,
		OldValue: decodeFieldValue(d.OldValue),
		NewValue: decodeFieldValue(d.NewValue),
		EditedBy: d.EditedBy,
		EditedAt: d.EditedAt.UTC(),
	}
}

func decodeTransactions(ctx context.Context, cursor *mongo.Cursor) ([]domain.Transaction, error) {
	var docs []txnDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", mapStorageErr(err))
	}
	txns := make([]domain.Transaction, 0, len(docs))
	for _, doc := range docs {
		txn, err := doc.toDomain()
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

func decodeEvents(ctx context.Context, cursor *mongo.Cursor) ([]domain.AuditEvent, error) {
	var docs []editDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", mapStorageErr(err))
	}
	events := make([]domain.AuditEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, doc.toDomain())
	}
	return events, nil
}

// encodeFieldValue converts domain-typed field values into BSON-friendly
// representations.
func encodeFieldValue(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case decimal.Decimal:
		d128, err := primitive.ParseDecimal128(v.String())
		if err != nil {
			return nil, err
		}
		return d128, nil
	case domain.Status:
		return string(v), nil
	case domain.Channel:
		return string(v), nil
	default:
		return value, nil
	}
}

// decodeFieldValue reverses encodeFieldValue for values read back from the
// edits collection.
func decodeFieldValue(value any) any {
	if d128, ok := value.(primitive.Decimal128); ok {
		if d, err := decimal.NewFromString(d128.String()); err == nil {
			return d
		}
	}
	return value
}

// mapStorageErr tags unreachable-store failures with
// domain.ErrStorageUnavailable so callers can treat them as retryable.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return err
}
