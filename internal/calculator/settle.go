package calculator

import (
	"fmt"
	"slices"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

type party struct {
	id        string
	remaining int64
}

// PlanSettlements derives the payments that bring every balance to zero.
//
// Greedy algorithm: repeatedly match the largest remaining debtor with the
// largest remaining creditor for min(debt, credit), dropping whoever reaches
// zero. Ties go to the smaller member ID. Every step clears at least one
// party, so n non-zero balances produce at most n-1 transfers, and the same
// input always yields the same list in the same order.
func PlanSettlements(balances map[string]money.Money) ([]models.Transfer, error) {
	if len(balances) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(balances))
	for id := range balances {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	currency := balances[ids[0]].Currency()
	sum := money.Zero(currency)
	var creditors, debtors []party
	for _, id := range ids {
		b := balances[id]
		var err error
		if sum, err = sum.Add(b); err != nil {
			return nil, fmt.Errorf("balance of %s: %w", id, err)
		}
		switch {
		case b.IsPositive():
			creditors = append(creditors, party{id: id, remaining: b.Minor()})
		case b.IsNegative():
			debtors = append(debtors, party{id: id, remaining: -b.Minor()})
		}
	}
	if !sum.IsZero() {
		return nil, fmt.Errorf("%w: off by %s", ErrUnbalancedInput, sum)
	}

	var transfers []models.Transfer
	for len(creditors) > 0 && len(debtors) > 0 {
		ci, di := largest(creditors), largest(debtors)
		amount := min(creditors[ci].remaining, debtors[di].remaining)

		transfers = append(transfers, models.Transfer{
			From:   debtors[di].id,
			To:     creditors[ci].id,
			Amount: money.FromMinor(amount, currency),
		})

		creditors[ci].remaining -= amount
		debtors[di].remaining -= amount
		if creditors[ci].remaining == 0 {
			creditors = slices.Delete(creditors, ci, ci+1)
		}
		if debtors[di].remaining == 0 {
			debtors = slices.Delete(debtors, di, di+1)
		}
	}

	return transfers, nil
}

// largest returns the index of the party with the most remaining; parties are
// kept in ID order so the first maximum is the smallest ID.
func largest(parties []party) int {
	best := 0
	for i := 1; i < len(parties); i++ {
		if parties[i].remaining > parties[best].remaining {
			best = i
		}
	}
	return best
}
