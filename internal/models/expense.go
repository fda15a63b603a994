package models

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// SplitKind tags the variant held by a SplitPolicy.
type SplitKind string

const (
	SplitEqual   SplitKind = "equal"
	SplitExact   SplitKind = "exact"
	SplitPercent SplitKind = "percent"
	SplitShares  SplitKind = "shares"
)

// SplitPolicy describes how an expense total is divided among participants.
// Exactly one payload field is meaningful, selected by Kind.
type SplitPolicy struct {
	Kind SplitKind

	// Participants lists who shares an equal split.
	Participants []string

	// Amounts maps participant ID to the exact amount owed.
	Amounts map[string]money.Money

	// Percentages maps participant ID to a percentage; they must sum to 100.
	Percentages map[string]decimal.Decimal

	// Shares maps participant ID to a positive integer weight.
	Shares map[string]int64
}

// EqualSplit divides the total evenly among ids.
func EqualSplit(ids ...string) SplitPolicy {
	return SplitPolicy{Kind: SplitEqual, Participants: ids}
}

// ExactSplit assigns each participant a fixed amount.
func ExactSplit(amounts map[string]money.Money) SplitPolicy {
	return SplitPolicy{Kind: SplitExact, Amounts: amounts}
}

// PercentSplit assigns each participant a percentage of the total.
func PercentSplit(pcts map[string]decimal.Decimal) SplitPolicy {
	return SplitPolicy{Kind: SplitPercent, Percentages: pcts}
}

// SharesSplit divides the total proportionally to integer weights.
func SharesSplit(shares map[string]int64) SplitPolicy {
	return SplitPolicy{Kind: SplitShares, Shares: shares}
}

// ParticipantIDs returns the participants named by the policy, sorted by ID.
// Duplicates in an equal split are kept so callers can reject them.
func (p SplitPolicy) ParticipantIDs() []string {
	var ids []string
	switch p.Kind {
	case SplitEqual:
		ids = slices.Clone(p.Participants)
	case SplitExact:
		for id := range p.Amounts {
			ids = append(ids, id)
		}
	case SplitPercent:
		for id := range p.Percentages {
			ids = append(ids, id)
		}
	case SplitShares:
		for id := range p.Shares {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Expense represents one payment made by a member on behalf of the group.
//
// Expenses are immutable once created; an edit replaces the whole record.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group owning this expense.
	GroupID string

	// Description is a free-text label (e.g., "Groceries").
	Description string

	// PayerID is the member who paid the full Total.
	PayerID string

	// Total is the amount paid; always positive.
	Total money.Money

	// Split says how Total is shared.
	Split SplitPolicy

	// CreatedAt is the Unix timestamp when the expense was recorded.
	// Expenses are ordered by CreatedAt, then insertion order.
	CreatedAt int64
}
