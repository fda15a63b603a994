package calculator

import "errors"

// Structural data errors. None of them is retryable.
var (
	ErrEmptyParticipantSet = errors.New("split has no participants")
	ErrPayerNotParticipant = errors.New("payer is not a split participant")
	ErrSplitMismatch       = errors.New("split does not add up to the expense total")
	ErrNonPositiveTotal    = errors.New("expense total must be positive")
	ErrUnknownMember       = errors.New("unknown group member")
	ErrUnbalancedInput     = errors.New("balances do not sum to zero")
	ErrUnknownSplitKind    = errors.New("unknown split kind")
)
