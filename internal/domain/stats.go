package domain

import "github.com/shopspring/decimal"

// ChannelStats aggregates record count and amount volume for one channel.
type ChannelStats struct {
	Count  int64
	Volume decimal.Decimal
}

// StatsSnapshot is a point-in-time summary of the record set within a
// time window, plus the most recent audit activity across all
// transactions.
type StatsSnapshot struct {
	TotalCount       int64
	TotalVolume      decimal.Decimal
	ChannelBreakdown map[Channel]ChannelStats
	StatusBreakdown  map[Status]int64
	RecentEdits      []AuditEvent
}
