package service

import (
	"context"
	"time"

	"github.com/tanvi/payboard/internal/domain"
	"github.com/tanvi/payboard/internal/metrics"
	"github.com/tanvi/payboard/internal/store"
)

// DefaultRecentEdits is the number of audit events returned in a stats
// snapshot when the caller supplies no limit.
const DefaultRecentEdits = 10

// StatsService computes windowed aggregate statistics for the dashboard.
// It only reads from the store and never mutates state.
type StatsService struct {
	txns    store.TransactionStore
	audit   store.AuditStore
	metrics *metrics.Metrics
	nowFn   func() time.Time
}

// NewStatsService constructs a StatsService. The metrics handle may be
// nil when instrumentation is disabled.
func NewStatsService(s store.Store, m *metrics.Metrics) *StatsService {
	return &StatsService{
		txns:    s.Transactions(),
		audit:   s.Audit(),
		metrics: m,
		nowFn:   time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (s *StatsService) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Compute aggregates every record with a timestamp at or after
// windowStart. A zero windowStart means the start of the current UTC day;
// a non-positive recentLimit means DefaultRecentEdits. Breakdown counts
// and volumes are exact sums over the qualifying records, so per-channel
// counts always add up to the total.
func (s *StatsService) Compute(ctx context.Context, windowStart time.Time, recentLimit int) (domain.StatsSnapshot, error) {
	if windowStart.IsZero() {
		windowStart = startOfDay(s.nowFn().UTC())
	}
	if recentLimit <= 0 {
		recentLimit = DefaultRecentEdits
	}

	txns, err := s.txns.Since(ctx, windowStart)
	if err != nil {
		return domain.StatsSnapshot{}, err
	}

	snapshot := domain.StatsSnapshot{
		ChannelBreakdown: make(map[domain.Channel]domain.ChannelStats),
		StatusBreakdown:  make(map[domain.Status]int64),
	}
	for _, txn := range txns {
		snapshot.TotalCount++
		snapshot.TotalVolume = snapshot.TotalVolume.Add(txn.Amount)

		channel := snapshot.ChannelBreakdown[txn.Channel]
		channel.Count++
		channel.Volume = channel.Volume.Add(txn.Amount)
		snapshot.ChannelBreakdown[txn.Channel] = channel

		snapshot.StatusBreakdown[txn.Status]++
	}

	recent, err := s.audit.Recent(ctx, recentLimit)
	if err != nil {
		return domain.StatsSnapshot{}, err
	}
	snapshot.RecentEdits = recent

	if s.metrics != nil {
		s.metrics.IncStatsComputed()
	}
	return snapshot, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
