package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/tracker"
)

var codes = []struct {
	err  error
	code connect.Code
}{
	{tracker.ErrAlreadyProcessing, connect.CodeAborted},
	{tracker.ErrTrackerClosed, connect.CodeAborted},
	{tracker.ErrInvalidTransition, connect.CodeFailedPrecondition},
	{ledger.ErrNoPlan, connect.CodeFailedPrecondition},
	{tracker.ErrSettlementNotFound, connect.CodeNotFound},
	{storage.ErrNotFound, connect.CodeNotFound},
	{storage.ErrStoreUnavailable, connect.CodeUnavailable},
	{storage.ErrMalformedRecord, connect.CodeDataLoss},
	{storage.ErrConstraint, connect.CodeFailedPrecondition},
	{calculator.ErrUnbalancedInput, connect.CodeInternal},
	{calculator.ErrEmptyParticipantSet, connect.CodeInvalidArgument},
	{calculator.ErrPayerNotParticipant, connect.CodeInvalidArgument},
	{calculator.ErrSplitMismatch, connect.CodeInvalidArgument},
	{calculator.ErrNonPositiveTotal, connect.CodeInvalidArgument},
	{calculator.ErrUnknownMember, connect.CodeInvalidArgument},
	{calculator.ErrUnknownSplitKind, connect.CodeInvalidArgument},
	{money.ErrCurrencyMismatch, connect.CodeInvalidArgument},
	{money.ErrInvalidCurrency, connect.CodeInvalidArgument},
	{money.ErrInvalidAmount, connect.CodeInvalidArgument},
	{context.Canceled, connect.CodeCanceled},
	{context.DeadlineExceeded, connect.CodeDeadlineExceeded},
}

func codeOf(err error) connect.Code {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return connect.CodeInternal
}

// toConnectError logs err and converts it into a connect error carrying the
// user-facing message for its kind.
func toConnectError(op string, err error, attrs ...any) *connect.Error {
	code := codeOf(err)
	attrs = append(attrs, "code", code, "error", err)
	if code == connect.CodeInternal || code == connect.CodeUnavailable || code == connect.CodeDataLoss {
		slog.Error(op+" failed", attrs...)
	} else {
		slog.Warn(op+" failed", attrs...)
	}
	return connect.NewError(code, errors.New(ledger.Message(err)))
}

func invalidArgument(format string, args ...any) *connect.Error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf(format, args...))
}
