package ledger

import (
	"context"
	"errors"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/tracker"
)

var messages = []struct {
	err error
	msg string
}{
	{tracker.ErrAlreadyProcessing, "This payment is already being confirmed."},
	{tracker.ErrInvalidTransition, "This payment cannot change to that state."},
	{tracker.ErrSettlementNotFound, "Payment not found. Settlements may have been recalculated."},
	{tracker.ErrTrackerClosed, "Settlements were recalculated before this payment was confirmed."},
	{ErrNoPlan, "No settlement plan yet for this group."},
	{calculator.ErrEmptyParticipantSet, "An expense needs at least one participant."},
	{calculator.ErrPayerNotParticipant, "The payer must take part in the expense."},
	{calculator.ErrSplitMismatch, "The split does not add up to the expense total."},
	{calculator.ErrNonPositiveTotal, "The expense amount must be greater than zero."},
	{calculator.ErrUnknownMember, "Someone in the expense is not a member of the group."},
	{calculator.ErrUnbalancedInput, "Balances do not add up. Please contact support."},
	{calculator.ErrUnknownSplitKind, "Unknown way of splitting the expense."},
	{money.ErrCurrencyMismatch, "Amounts must all be in the group's currency."},
	{money.ErrInvalidCurrency, "Unknown currency code."},
	{money.ErrInvalidAmount, "The amount is not valid."},
	{storage.ErrNotFound, "Not found."},
	{storage.ErrMalformedRecord, "Stored data is damaged. Please contact support."},
	{storage.ErrConstraint, "This conflicts with data that is already stored."},
	{storage.ErrStoreUnavailable, "The ledger is temporarily unavailable. Please try again."},
	{context.Canceled, "The request was cancelled."},
	{context.DeadlineExceeded, "The request took too long."},
}

// Message returns a short user-facing description of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	return "Something went wrong."
}
