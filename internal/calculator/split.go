package calculator

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var hundred = decimal.NewFromInt(100)

// Options holds validation rules that are product policy rather than arithmetic.
type Options struct {
	// RequirePayerParticipant rejects expenses whose payer is not part of the split.
	// By default a member may pay for something they do not share in.
	RequirePayerParticipant bool
}

// ResolveSplit computes how much each participant owes for one expense.
//
// The returned contributions always sum exactly to exp.Total. Equal, percent
// and shares splits are apportioned with the largest-remainder method:
// every participant gets floor(total × weight / Σweights) minor units and
// the leftover units go, one each, to the largest fractional remainders,
// ties broken by ascending participant ID. For an equal split all
// remainders tie, so 10.00 over A, B, C yields 3.34, 3.33, 3.33.
func ResolveSplit(exp models.Expense, opts Options) (map[string]money.Money, error) {
	total := exp.Total
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", ErrNonPositiveTotal, total)
	}

	ids := exp.Split.ParticipantIDs()
	if len(ids) == 0 {
		return nil, ErrEmptyParticipantSet
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			return nil, fmt.Errorf("%w: participant %q listed twice", ErrSplitMismatch, ids[i])
		}
	}
	if opts.RequirePayerParticipant {
		if _, found := slices.BinarySearch(ids, exp.PayerID); !found {
			return nil, fmt.Errorf("%w: %q", ErrPayerNotParticipant, exp.PayerID)
		}
	}

	switch exp.Split.Kind {
	case models.SplitEqual:
		weights := make(map[string]decimal.Decimal, len(ids))
		for _, id := range ids {
			weights[id] = decimal.NewFromInt(1)
		}
		return apportion(total, ids, weights, decimal.NewFromInt(int64(len(ids)))), nil

	case models.SplitExact:
		return exactSplit(total, ids, exp.Split.Amounts)

	case models.SplitPercent:
		sum := decimal.Zero
		for _, id := range ids {
			pct := exp.Split.Percentages[id]
			if !pct.IsPositive() {
				return nil, fmt.Errorf("%w: percentage for %q must be positive, got %s", ErrSplitMismatch, id, pct)
			}
			sum = sum.Add(pct)
		}
		if !sum.Equal(hundred) {
			return nil, fmt.Errorf("%w: percentages sum to %s, want 100", ErrSplitMismatch, sum)
		}
		return apportion(total, ids, exp.Split.Percentages, hundred), nil

	case models.SplitShares:
		weights := make(map[string]decimal.Decimal, len(ids))
		sum := decimal.Zero
		for _, id := range ids {
			share := exp.Split.Shares[id]
			if share <= 0 {
				return nil, fmt.Errorf("%w: shares for %q must be positive, got %d", ErrSplitMismatch, id, share)
			}
			weights[id] = decimal.NewFromInt(share)
			sum = sum.Add(weights[id])
		}
		return apportion(total, ids, weights, sum), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownSplitKind, exp.Split.Kind)
}

func exactSplit(total money.Money, ids []string, amounts map[string]money.Money) (map[string]money.Money, error) {
	sum := money.Zero(total.Currency())
	for _, id := range ids {
		amount := amounts[id]
		if amount.IsNegative() {
			return nil, fmt.Errorf("%w: amount for %q is negative", ErrSplitMismatch, id)
		}
		var err error
		if sum, err = sum.Add(amount); err != nil {
			return nil, fmt.Errorf("amount for %q: %w", id, err)
		}
	}
	if sum != total {
		return nil, fmt.Errorf("%w: amounts sum to %s, total is %s", ErrSplitMismatch, sum, total)
	}

	splits := make(map[string]money.Money, len(ids))
	for _, id := range ids {
		splits[id] = amounts[id]
	}
	return splits, nil
}

type portion struct {
	id        string
	minor     int64
	remainder decimal.Decimal
}

// apportion divides total by weights/denom. ids must be sorted and the
// weights must sum to denom exactly.
func apportion(total money.Money, ids []string, weights map[string]decimal.Decimal, denom decimal.Decimal) map[string]money.Money {
	t := decimal.NewFromInt(total.Minor())

	parts := make([]portion, len(ids))
	allocated := int64(0)
	for i, id := range ids {
		q, r := t.Mul(weights[id]).QuoRem(denom, 0)
		parts[i] = portion{id: id, minor: q.IntPart(), remainder: r}
		allocated += parts[i].minor
	}

	// Stable on an ID-sorted slice, so ties keep ascending ID order.
	slices.SortStableFunc(parts, func(a, b portion) int {
		return b.remainder.Cmp(a.remainder)
	})
	for i := int64(0); i < total.Minor()-allocated; i++ {
		parts[i].minor++
	}

	splits := make(map[string]money.Money, len(parts))
	for _, p := range parts {
		splits[p.id] = money.FromMinor(p.minor, total.Currency())
	}
	return splits
}
