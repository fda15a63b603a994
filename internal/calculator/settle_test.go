package calculator

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// applyTransfers pays out every transfer and returns the resulting balances.
func applyTransfers(t *testing.T, balances map[string]money.Money, transfers []models.Transfer) map[string]money.Money {
	t.Helper()
	out := make(map[string]money.Money, len(balances))
	for id, b := range balances {
		out[id] = b
	}
	for _, tr := range transfers {
		var err error
		out[tr.From], err = out[tr.From].Add(tr.Amount)
		require.NoError(t, err)
		out[tr.To], err = out[tr.To].Sub(tr.Amount)
		require.NoError(t, err)
	}
	return out
}

func TestPlanSettlements(t *testing.T) {
	tests := []struct {
		name     string
		balances map[string]money.Money
		want     []models.Transfer
	}{
		{
			name:     "empty",
			balances: map[string]money.Money{},
			want:     nil,
		},
		{
			name:     "everyone even",
			balances: map[string]money.Money{"A": chf(0), "B": chf(0)},
			want:     nil,
		},
		{
			name:     "one debtor one creditor",
			balances: map[string]money.Money{"A": chf(500), "B": chf(-500)},
			want:     []models.Transfer{{From: "B", To: "A", Amount: chf(500)}},
		},
		{
			name:     "largest debtor pays largest creditor first",
			balances: map[string]money.Money{"A": chf(1000), "B": chf(200), "C": chf(-900), "D": chf(-300)},
			want: []models.Transfer{
				{From: "C", To: "A", Amount: chf(900)},
				{From: "D", To: "B", Amount: chf(200)},
				{From: "D", To: "A", Amount: chf(100)},
			},
		},
		{
			name:     "ties go to the smaller id",
			balances: map[string]money.Money{"A": chf(100), "B": chf(100), "C": chf(-100), "D": chf(-100)},
			want: []models.Transfer{
				{From: "C", To: "A", Amount: chf(100)},
				{From: "D", To: "B", Amount: chf(100)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanSettlements(tt.balances)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanSettlements_Errors(t *testing.T) {
	_, err := PlanSettlements(map[string]money.Money{"A": chf(100), "B": chf(-99)})
	assert.ErrorIs(t, err, ErrUnbalancedInput)

	_, err = PlanSettlements(map[string]money.Money{"A": chf(100), "B": money.FromMinor(-100, "EUR")})
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestPlanSettlements_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}

	for round := range 100 {
		balances, err := CalculateGroupBalances("CHF", members(ids...), randomExpenses(r, ids, r.IntN(40)+1), Options{})
		require.NoError(t, err)
		nets := NetBalances(balances)

		transfers, err := PlanSettlements(nets)
		require.NoError(t, err, "round %d", round)

		nonZero := 0
		for _, b := range nets {
			if !b.IsZero() {
				nonZero++
			}
		}
		if nonZero > 0 {
			assert.LessOrEqual(t, len(transfers), nonZero-1, "round %d", round)
		}

		for _, tr := range transfers {
			assert.True(t, tr.Amount.IsPositive(), "round %d: transfer %+v", round, tr)
			assert.NotEqual(t, tr.From, tr.To)
		}

		for id, b := range applyTransfers(t, nets, transfers) {
			assert.True(t, b.IsZero(), "round %d: %s left with %s", round, id, b)
		}

		again, err := PlanSettlements(nets)
		require.NoError(t, err)
		assert.Equal(t, transfers, again, "round %d", round)
	}
}
