package storage

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// ExpenseRow is an expense exactly as a backend stores it.
// The split payload is kept as a JSON document next to its kind.
type ExpenseRow struct {
	ID          string
	GroupID     string
	Description string
	PayerID     string
	AmountMinor int64
	Currency    string
	SplitKind   string
	SplitData   []byte
	CreatedAt   int64
}

// splitDoc is the stored form of a SplitPolicy. Amounts are minor-unit
// integers in the expense currency, percentages are decimal strings.
type splitDoc struct {
	Participants []string                   `json:"participants,omitempty"`
	Amounts      map[string]int64           `json:"amounts,omitempty"`
	Percentages  map[string]decimal.Decimal `json:"percentages,omitempty"`
	Shares       map[string]int64           `json:"shares,omitempty"`
}

func malformed(id, format string, args ...any) error {
	return fmt.Errorf("%w: expense %s: %s", ErrMalformedRecord, id, fmt.Sprintf(format, args...))
}

// EncodeExpense converts an expense into its stored row form.
func EncodeExpense(e *models.Expense) (ExpenseRow, error) {
	doc := splitDoc{}
	switch e.Split.Kind {
	case models.SplitEqual:
		doc.Participants = e.Split.Participants
	case models.SplitExact:
		doc.Amounts = make(map[string]int64, len(e.Split.Amounts))
		for id, m := range e.Split.Amounts {
			if m.Currency() != e.Total.Currency() {
				return ExpenseRow{}, fmt.Errorf("amount for %q: %w", id, money.ErrCurrencyMismatch)
			}
			doc.Amounts[id] = m.Minor()
		}
	case models.SplitPercent:
		doc.Percentages = e.Split.Percentages
	case models.SplitShares:
		doc.Shares = e.Split.Shares
	default:
		return ExpenseRow{}, fmt.Errorf("unknown split kind %q", e.Split.Kind)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return ExpenseRow{}, fmt.Errorf("failed to encode split: %w", err)
	}

	return ExpenseRow{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		PayerID:     e.PayerID,
		AmountMinor: e.Total.Minor(),
		Currency:    e.Total.Currency(),
		SplitKind:   string(e.Split.Kind),
		SplitData:   data,
		CreatedAt:   e.CreatedAt,
	}, nil
}

// DecodeExpense validates a stored row and converts it into an Expense.
// Anything that does not match the expected shape fails with
// ErrMalformedRecord instead of leaking into the calculator.
func DecodeExpense(row ExpenseRow) (models.Expense, error) {
	if row.ID == "" {
		return models.Expense{}, malformed("?", "missing id")
	}
	if row.GroupID == "" {
		return models.Expense{}, malformed(row.ID, "missing group id")
	}
	if row.PayerID == "" {
		return models.Expense{}, malformed(row.ID, "missing payer")
	}
	if err := money.ValidateCurrency(row.Currency); err != nil {
		return models.Expense{}, malformed(row.ID, "%v", err)
	}

	var doc splitDoc
	if err := json.Unmarshal(row.SplitData, &doc); err != nil {
		return models.Expense{}, malformed(row.ID, "split payload: %v", err)
	}

	policy := models.SplitPolicy{Kind: models.SplitKind(row.SplitKind)}
	switch policy.Kind {
	case models.SplitEqual:
		if len(doc.Amounts)+len(doc.Percentages)+len(doc.Shares) > 0 {
			return models.Expense{}, malformed(row.ID, "equal split carries weights")
		}
		policy.Participants = doc.Participants
	case models.SplitExact:
		if doc.Amounts == nil {
			return models.Expense{}, malformed(row.ID, "exact split without amounts")
		}
		policy.Amounts = make(map[string]money.Money, len(doc.Amounts))
		for id, minor := range doc.Amounts {
			policy.Amounts[id] = money.FromMinor(minor, row.Currency)
		}
	case models.SplitPercent:
		if doc.Percentages == nil {
			return models.Expense{}, malformed(row.ID, "percent split without percentages")
		}
		policy.Percentages = doc.Percentages
	case models.SplitShares:
		if doc.Shares == nil {
			return models.Expense{}, malformed(row.ID, "shares split without shares")
		}
		policy.Shares = doc.Shares
	default:
		return models.Expense{}, malformed(row.ID, "unknown split kind %q", row.SplitKind)
	}

	return models.Expense{
		ID:          row.ID,
		GroupID:     row.GroupID,
		Description: row.Description,
		PayerID:     row.PayerID,
		Total:       money.FromMinor(row.AmountMinor, row.Currency),
		Split:       policy,
		CreatedAt:   row.CreatedAt,
	}, nil
}
