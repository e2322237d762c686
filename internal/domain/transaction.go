package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel identifies the payment rail a transaction travelled over.
type Channel string

// Supported payment channels.
const (
	ChannelUPI  Channel = "UPI"
	ChannelNEFT Channel = "NEFT"
	ChannelRTGS Channel = "RTGS"
	ChannelIMPS Channel = "IMPS"
)

// Status is the settlement state of a transaction.
type Status string

// Supported transaction statuses.
const (
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
	StatusFailed  Status = "Failed"
)

// Channels lists every valid channel value.
func Channels() []Channel {
	return []Channel{ChannelUPI, ChannelNEFT, ChannelRTGS, ChannelIMPS}
}

// Statuses lists every valid status value.
func Statuses() []Status {
	return []Status{StatusPending, StatusSuccess, StatusFailed}
}

// ParseChannel validates a raw channel string against the enumerated set.
func ParseChannel(raw string) (Channel, error) {
	for _, c := range Channels() {
		if string(c) == raw {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown channel %q", raw)
}

// ParseStatus validates a raw status string against the enumerated set.
func ParseStatus(raw string) (Status, error) {
	for _, s := range Statuses() {
		if string(s) == raw {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Transaction is the canonical record describing one payment. TxnID, Payer
// and Timestamp are immutable after creation; Status, Amount, Payee,
// Channel and Remarks may be edited by operators.
type Transaction struct {
	TxnID     string
	Payer     string
	Payee     string
	Amount    decimal.Decimal
	Channel   Channel
	Status    Status
	Timestamp time.Time
	Remarks   string
}

// ListFilter restricts a transaction listing. Zero-valued fields apply no
// constraint. TxnID and Status match exactly; Payer and Payee match as
// case-insensitive substrings. Limit defaults to DefaultListLimit when
// zero or negative.
type ListFilter struct {
	TxnID  string
	Payer  string
	Payee  string
	Status string
	Limit  int
}

// DefaultListLimit bounds listings when the caller supplies no limit.
const DefaultListLimit = 100

// EffectiveLimit resolves the limit to apply for this filter.
func (f ListFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Matches reports whether the transaction satisfies every predicate of the
// filter.
func (f ListFilter) Matches(txn Transaction) bool {
	if f.TxnID != "" && txn.TxnID != f.TxnID {
		return false
	}
	if f.Status != "" && string(txn.Status) != f.Status {
		return false
	}
	if f.Payer != "" && !strings.Contains(strings.ToLower(txn.Payer), strings.ToLower(f.Payer)) {
		return false
	}
	if f.Payee != "" && !strings.Contains(strings.ToLower(txn.Payee), strings.ToLower(f.Payee)) {
		return false
	}
	return true
}
