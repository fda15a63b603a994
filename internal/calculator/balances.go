package calculator

import (
	"fmt"
	"slices"
	"strings"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	MemberID string
	Net      money.Money // Positive = owed money, Negative = owes money
	Paid     money.Money // Total amount paid across all expenses
	Owed     money.Money // Total share of all expenses
}

// CalculateGroupBalances folds every expense of a group into one balance per
// member, sorted by member ID.
//
// Algorithm:
//   - Every member starts at zero
//   - For each expense: payer is credited the total, each participant is
//     debited their resolved contribution
//   - net = paid - owed
//
// The fold is over the complete expense set; there is no incremental update.
// Payers or participants missing from members fail with ErrUnknownMember.
func CalculateGroupBalances(currency string, members []models.Participant, expenses []models.Expense, opts Options) ([]MemberBalance, error) {
	if err := money.ValidateCurrency(currency); err != nil {
		return nil, err
	}

	balances := make(map[string]*MemberBalance, len(members))
	for _, m := range members {
		balances[m.ID] = &MemberBalance{
			MemberID: m.ID,
			Paid:     money.Zero(currency),
			Owed:     money.Zero(currency),
		}
	}

	for _, exp := range expenses {
		if exp.Total.Currency() != currency {
			return nil, fmt.Errorf("expense %s: %w: %s in a %s group",
				exp.ID, money.ErrCurrencyMismatch, exp.Total.Currency(), currency)
		}

		payer, ok := balances[exp.PayerID]
		if !ok {
			return nil, fmt.Errorf("expense %s: %w: payer %q", exp.ID, ErrUnknownMember, exp.PayerID)
		}

		contributions, err := ResolveSplit(exp, opts)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", exp.ID, err)
		}

		if payer.Paid, err = payer.Paid.Add(exp.Total); err != nil {
			return nil, fmt.Errorf("expense %s: %w", exp.ID, err)
		}

		for id, share := range contributions {
			bal, ok := balances[id]
			if !ok {
				return nil, fmt.Errorf("expense %s: %w: participant %q", exp.ID, ErrUnknownMember, id)
			}
			if bal.Owed, err = bal.Owed.Add(share); err != nil {
				return nil, fmt.Errorf("expense %s: %w", exp.ID, err)
			}
		}
	}

	result := make([]MemberBalance, 0, len(balances))
	sum := money.Zero(currency)
	for _, bal := range balances {
		net, err := bal.Paid.Sub(bal.Owed)
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", bal.MemberID, err)
		}
		bal.Net = net
		if sum, err = sum.Add(net); err != nil {
			return nil, err
		}
		result = append(result, *bal)
	}
	if !sum.IsZero() {
		return nil, fmt.Errorf("%w: off by %s", ErrUnbalancedInput, sum)
	}

	slices.SortFunc(result, func(a, b MemberBalance) int {
		return strings.Compare(a.MemberID, b.MemberID)
	})
	return result, nil
}

// NetBalances returns member ID → net balance, the planner's input.
func NetBalances(balances []MemberBalance) map[string]money.Money {
	nets := make(map[string]money.Money, len(balances))
	for _, b := range balances {
		nets[b.MemberID] = b.Net
	}
	return nets
}
