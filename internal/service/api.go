package service

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// Wire types for LedgerService. Amounts are money.Money, which encodes as
// {"amount":"12.50","currency":"EUR"}.

type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type Group struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Currency  string        `json:"currency"`
	Members   []Participant `json:"members"`
	CreatedAt int64         `json:"createdAt"`
}

// Split is a SplitPolicy on the wire. Kind selects which payload is read.
type Split struct {
	Kind         string                     `json:"kind"`
	Participants []string                   `json:"participants,omitempty"`
	Amounts      map[string]money.Money     `json:"amounts,omitempty"`
	Percentages  map[string]decimal.Decimal `json:"percentages,omitempty"`
	Shares       map[string]int64           `json:"shares,omitempty"`
}

type Expense struct {
	ID          string      `json:"id"`
	GroupID     string      `json:"groupId"`
	Description string      `json:"description,omitempty"`
	PayerID     string      `json:"payerId"`
	Amount      money.Money `json:"amount"`
	Split       Split       `json:"split"`
	CreatedAt   int64       `json:"createdAt"`
}

type Balance struct {
	MemberID string      `json:"memberId"`
	Net      money.Money `json:"net"`
	Paid     money.Money `json:"paid"`
	Owed     money.Money `json:"owed"`
}

type Settlement struct {
	ID        string      `json:"id"`
	PlanID    string      `json:"planId"`
	From      string      `json:"from"`
	To        string      `json:"to"`
	Amount    money.Money `json:"amount"`
	Status    string      `json:"status"`
	UpdatedAt int64       `json:"updatedAt"`
	UpdatedBy string      `json:"updatedBy,omitempty"`
}

type Activity struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	SettlementID string `json:"settlementId,omitempty"`
	ExpenseID    string `json:"expenseId,omitempty"`
	Detail       string `json:"detail"`
	Actor        string `json:"actor,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
}

type CreateGroupRequest struct {
	Name     string        `json:"name"`
	Currency string        `json:"currency"`
	Members  []Participant `json:"members"`
}

type GroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type AddMembersRequest struct {
	GroupID string        `json:"groupId"`
	Members []Participant `json:"members"`
}

type AddExpenseRequest struct {
	GroupID     string      `json:"groupId"`
	Description string      `json:"description"`
	PayerID     string      `json:"payerId"`
	Amount      money.Money `json:"amount"`
	Split       Split       `json:"split"`
}

type ReplaceExpenseRequest struct {
	ExpenseID   string      `json:"expenseId"`
	Description string      `json:"description"`
	PayerID     string      `json:"payerId"`
	Amount      money.Money `json:"amount"`
	Split       Split       `json:"split"`
}

type ExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type DeleteExpenseResponse struct{}

type ListExpensesRequest struct {
	GroupID string `json:"groupId"`
}

type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

type GetBalancesRequest struct {
	GroupID string `json:"groupId"`
}

type GetBalancesResponse struct {
	Balances []Balance `json:"balances"`
}

type PlanSettlementsRequest struct {
	GroupID string `json:"groupId"`
}

type SettlementsResponse struct {
	PlanID      string       `json:"planId"`
	Settlements []Settlement `json:"settlements"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"groupId"`
}

type SettlementRequest struct {
	SettlementID string `json:"settlementId"`
}

type SettlementResponse struct {
	Settlement Settlement `json:"settlement"`
}

type ListActivityRequest struct {
	GroupID string `json:"groupId"`
}

type ListActivityResponse struct {
	Activities []Activity `json:"activities"`
}

func participantsFromAPI(ps []Participant) []models.Participant {
	out := make([]models.Participant, len(ps))
	for i, p := range ps {
		out[i] = models.Participant{ID: p.ID, Name: p.Name, Email: p.Email}
	}
	return out
}

func groupToAPI(g *models.Group) Group {
	members := make([]Participant, len(g.Members))
	for i, m := range g.Members {
		members[i] = Participant{ID: m.ID, Name: m.Name, Email: m.Email}
	}
	return Group{
		ID:        g.ID,
		Name:      g.Name,
		Currency:  g.Currency,
		Members:   members,
		CreatedAt: g.CreatedAt,
	}
}

func splitFromAPI(s Split) models.SplitPolicy {
	return models.SplitPolicy{
		Kind:         models.SplitKind(s.Kind),
		Participants: s.Participants,
		Amounts:      s.Amounts,
		Percentages:  s.Percentages,
		Shares:       s.Shares,
	}
}

func splitToAPI(p models.SplitPolicy) Split {
	return Split{
		Kind:         string(p.Kind),
		Participants: p.Participants,
		Amounts:      p.Amounts,
		Percentages:  p.Percentages,
		Shares:       p.Shares,
	}
}

func expenseToAPI(e *models.Expense) Expense {
	return Expense{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Description: e.Description,
		PayerID:     e.PayerID,
		Amount:      e.Total,
		Split:       splitToAPI(e.Split),
		CreatedAt:   e.CreatedAt,
	}
}

func balancesToAPI(bs []calculator.MemberBalance) []Balance {
	out := make([]Balance, len(bs))
	for i, b := range bs {
		out[i] = Balance{MemberID: b.MemberID, Net: b.Net, Paid: b.Paid, Owed: b.Owed}
	}
	return out
}

func settlementToAPI(r models.SettlementRecord) Settlement {
	return Settlement{
		ID:        r.ID,
		PlanID:    r.PlanID,
		From:      r.Transfer.From,
		To:        r.Transfer.To,
		Amount:    r.Transfer.Amount,
		Status:    string(r.Status),
		UpdatedAt: r.UpdatedAt,
		UpdatedBy: r.UpdatedBy,
	}
}

func settlementsToAPI(rs []models.SettlementRecord) []Settlement {
	out := make([]Settlement, len(rs))
	for i, r := range rs {
		out[i] = settlementToAPI(r)
	}
	return out
}

func activityToAPI(a models.Activity) Activity {
	return Activity{
		ID:           a.ID,
		Kind:         string(a.Kind),
		SettlementID: a.SettlementID,
		ExpenseID:    a.ExpenseID,
		Detail:       a.Detail,
		Actor:        a.Actor,
		CreatedAt:    a.CreatedAt,
	}
}
