package models

import "github.com/mmynk/splitledger/internal/money"

// Transfer represents a proposed payment between group members to clear debts.
type Transfer struct {
	// From is the member who pays (debtor settling up).
	From string

	// To is the member who receives payment (creditor being paid).
	To string

	// Amount is the payment amount; always positive.
	Amount money.Money
}

// SettlementStatus is the lifecycle state of a SettlementRecord.
type SettlementStatus string

const (
	StatusPending    SettlementStatus = "pending"
	StatusProcessing SettlementStatus = "processing"
	StatusPaid       SettlementStatus = "paid"
	StatusUndone     SettlementStatus = "undone"
)

// SettlementRecord tracks one planned Transfer.
//
// Records belong to a single planning run: a new plan for the group
// replaces all records of the previous one.
type SettlementRecord struct {
	// ID is "<PlanID>:<Index>".
	ID string

	// PlanID identifies the planning run that produced this record.
	PlanID string

	// Index is the transfer's position in the plan.
	Index int

	Transfer Transfer

	Status SettlementStatus

	// UpdatedAt is the Unix timestamp of the last status change.
	UpdatedAt int64

	// UpdatedBy is the member who made the last status change, if known.
	UpdatedBy string
}

// ActivityKind classifies an Activity entry.
type ActivityKind string

const (
	ActivityExpenseAdded        ActivityKind = "expense_added"
	ActivityExpenseReplaced     ActivityKind = "expense_replaced"
	ActivityExpenseDeleted      ActivityKind = "expense_deleted"
	ActivitySettlementPaid      ActivityKind = "settlement_paid"
	ActivitySettlementUndone    ActivityKind = "settlement_undone"
	ActivitySettlementCancelled ActivityKind = "settlement_cancelled"
)

// Activity is an append-only history entry for a group.
type Activity struct {
	// ID is the unique identifier for the entry (UUID format).
	ID string

	GroupID string

	Kind ActivityKind

	// SettlementID is set for settlement activities.
	SettlementID string

	// ExpenseID is set for expense activities.
	ExpenseID string

	// Detail is a human-readable summary, e.g. "C paid A 13.33 CHF".
	Detail string

	// Actor is the member who triggered the activity, if known.
	Actor string

	// CreatedAt is the Unix timestamp when the activity was recorded.
	CreatedAt int64
}
