package domain

import (
	"strings"
	"time"
)

// Operator identifies who performed an edit. It is an opaque display
// string, not a verified identity; the zero value means the caller did
// not say who they were.
type Operator struct {
	name string
}

// UnknownOperatorName is recorded when no operator was supplied.
const UnknownOperatorName = "unknown"

// NewOperator wraps an operator display string. Empty or whitespace-only
// input yields the unspecified operator.
func NewOperator(name string) Operator {
	return Operator{name: strings.TrimSpace(name)}
}

// Specified reports whether an operator was actually supplied.
func (o Operator) Specified() bool {
	return o.name != ""
}

// DisplayName returns the operator name, or UnknownOperatorName when none
// was supplied.
func (o Operator) DisplayName() string {
	if o.name == "" {
		return UnknownOperatorName
	}
	return o.name
}

// AuditEvent records one field change on one transaction. Events are
// immutable and never deleted; TxnID is a reference, not ownership.
// OldValue may be nil when the field was never previously set.
type AuditEvent struct {
	ID       string
	TxnID    string
	Field    string
	OldValue any
	NewValue any
	EditedBy string
	EditedAt time.Time
}
