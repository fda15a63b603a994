package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

func chf(minor int64) money.Money { return money.FromMinor(minor, "CHF") }

// setupTestServer serves a LedgerService backed by a temp sqlite database.
func setupTestServer(t *testing.T, delay time.Duration) *LedgerClient {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine, err := ledger.New(ledger.Config{
		Source:          store,
		Activities:      store,
		Identity:        middleware.GetUserID,
		SettlementDelay: delay,
	})
	require.NoError(t, err)

	path, handler := NewLedgerServiceHandler(
		NewLedgerService(store, engine),
		connect.WithInterceptors(middleware.Identity(), middleware.LoggingInterceptor()),
	)
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewLedgerClient(server.Client(), server.URL)
}

func as[T any](user string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	if user != "" {
		req.Header().Set(middleware.UserIDHeader, user)
	}
	return req
}

func createSkiTrip(t *testing.T, client *LedgerClient) string {
	t.Helper()
	resp, err := client.CreateGroup(context.Background(), connect.NewRequest(&CreateGroupRequest{
		Name:     "Ski Trip",
		Currency: "CHF",
		Members:  []Participant{{ID: "A", Name: "Anna"}, {ID: "B"}, {ID: "C"}},
	}))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Msg.Group.ID)
	return resp.Msg.Group.ID
}

func addRoundTripExpenses(t *testing.T, client *LedgerClient, groupID string) {
	t.Helper()
	ctx := context.Background()
	_, err := client.AddExpense(ctx, as("A", &AddExpenseRequest{
		GroupID:     groupID,
		Description: "Chalet",
		PayerID:     "A",
		Amount:      chf(3000),
		Split:       Split{Kind: "equal", Participants: []string{"A", "B", "C"}},
	}))
	require.NoError(t, err)
	_, err = client.AddExpense(ctx, as("B", &AddExpenseRequest{
		GroupID:     groupID,
		Description: "Fondue",
		PayerID:     "B",
		Amount:      chf(1000),
		Split:       Split{Kind: "equal", Participants: []string{"A", "B", "C"}},
	}))
	require.NoError(t, err)
}

func TestGroupsAndMembers(t *testing.T) {
	client := setupTestServer(t, 0)
	ctx := context.Background()
	groupID := createSkiTrip(t, client)

	resp, err := client.AddMembers(ctx, connect.NewRequest(&AddMembersRequest{
		GroupID: groupID,
		Members: []Participant{{ID: "D", Email: "d@example.com"}},
	}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Group.Members, 4)
	assert.Equal(t, "Anna", resp.Msg.Group.Members[0].Name)
	assert.Equal(t, "d@example.com", resp.Msg.Group.Members[3].Email)

	got, err := client.GetGroup(ctx, connect.NewRequest(&GetGroupRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, "CHF", got.Msg.Group.Currency)
	assert.NotZero(t, got.Msg.Group.CreatedAt)
}

func TestSettlementRoundTrip(t *testing.T) {
	client := setupTestServer(t, 0)
	ctx := context.Background()
	groupID := createSkiTrip(t, client)
	addRoundTripExpenses(t, client, groupID)

	balances, err := client.GetBalances(ctx, connect.NewRequest(&GetBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, balances.Msg.Balances, 3)
	assert.Equal(t, chf(1666), balances.Msg.Balances[0].Net)
	assert.Equal(t, chf(3000), balances.Msg.Balances[0].Paid)
	assert.Equal(t, chf(-333), balances.Msg.Balances[1].Net)
	assert.Equal(t, chf(-1333), balances.Msg.Balances[2].Net)

	plan, err := client.PlanSettlements(ctx, connect.NewRequest(&PlanSettlementsRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, plan.Msg.Settlements, 2)
	first, second := plan.Msg.Settlements[0], plan.Msg.Settlements[1]
	assert.Equal(t, "C", first.From)
	assert.Equal(t, "A", first.To)
	assert.Equal(t, chf(1333), first.Amount)
	assert.Equal(t, "B", second.From)
	assert.Equal(t, chf(333), second.Amount)
	assert.Equal(t, "pending", first.Status)

	paid, err := client.MarkPaid(ctx, as("C", &SettlementRequest{SettlementID: first.ID}))
	require.NoError(t, err)
	assert.Equal(t, "paid", paid.Msg.Settlement.Status)
	assert.Equal(t, "C", paid.Msg.Settlement.UpdatedBy)

	undone, err := client.UndoSettlement(ctx, as("A", &SettlementRequest{SettlementID: first.ID}))
	require.NoError(t, err)
	assert.Equal(t, "pending", undone.Msg.Settlement.Status)

	cancelled, err := client.CancelSettlement(ctx, as("B", &SettlementRequest{SettlementID: second.ID}))
	require.NoError(t, err)
	assert.Equal(t, "undone", cancelled.Msg.Settlement.Status)

	list, err := client.ListSettlements(ctx, connect.NewRequest(&ListSettlementsRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, plan.Msg.PlanID, list.Msg.PlanID)
	assert.Equal(t, "pending", list.Msg.Settlements[0].Status)
	assert.Equal(t, "undone", list.Msg.Settlements[1].Status)

	activity, err := client.ListActivity(ctx, connect.NewRequest(&ListActivityRequest{GroupID: groupID}))
	require.NoError(t, err)
	kinds := make([]string, len(activity.Msg.Activities))
	for i, a := range activity.Msg.Activities {
		kinds[i] = a.Kind
	}
	assert.ElementsMatch(t, []string{
		string(models.ActivityExpenseAdded),
		string(models.ActivityExpenseAdded),
		string(models.ActivitySettlementPaid),
		string(models.ActivitySettlementUndone),
		string(models.ActivitySettlementCancelled),
	}, kinds)
}

func TestExpenseEditing(t *testing.T) {
	client := setupTestServer(t, 0)
	ctx := context.Background()
	groupID := createSkiTrip(t, client)

	created, err := client.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{
		GroupID: groupID,
		PayerID: "A",
		Amount:  chf(1000),
		Split: Split{Kind: "percent", Percentages: map[string]decimal.Decimal{
			"A": decimal.RequireFromString("33.4"),
			"B": decimal.RequireFromString("33.3"),
			"C": decimal.RequireFromString("33.3"),
		}},
	}))
	require.NoError(t, err)
	expenseID := created.Msg.Expense.ID

	replaced, err := client.ReplaceExpense(ctx, connect.NewRequest(&ReplaceExpenseRequest{
		ExpenseID: expenseID,
		PayerID:   "B",
		Amount:    chf(900),
		Split: Split{Kind: "exact", Amounts: map[string]money.Money{
			"A": chf(400),
			"C": chf(500),
		}},
	}))
	require.NoError(t, err)
	assert.Equal(t, groupID, replaced.Msg.Expense.GroupID)
	assert.Equal(t, created.Msg.Expense.CreatedAt, replaced.Msg.Expense.CreatedAt)

	balances, err := client.GetBalances(ctx, connect.NewRequest(&GetBalancesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Equal(t, chf(-400), balances.Msg.Balances[0].Net)
	assert.Equal(t, chf(900), balances.Msg.Balances[1].Net)
	assert.Equal(t, chf(-500), balances.Msg.Balances[2].Net)

	listed, err := client.ListExpenses(ctx, connect.NewRequest(&ListExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	require.Len(t, listed.Msg.Expenses, 1)
	assert.Equal(t, "exact", listed.Msg.Expenses[0].Split.Kind)

	_, err = client.DeleteExpense(ctx, connect.NewRequest(&DeleteExpenseRequest{ExpenseID: expenseID}))
	require.NoError(t, err)

	listed, err = client.ListExpenses(ctx, connect.NewRequest(&ListExpensesRequest{GroupID: groupID}))
	require.NoError(t, err)
	assert.Empty(t, listed.Msg.Expenses)
}

func TestErrorCodes(t *testing.T) {
	client := setupTestServer(t, 0)
	ctx := context.Background()
	groupID := createSkiTrip(t, client)

	tests := []struct {
		name     string
		call     func() error
		wantCode connect.Code
		wantMsg  string
	}{
		{
			name: "bad currency",
			call: func() error {
				_, err := client.CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{Name: "x", Currency: "chf"}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "Unknown currency code.",
		},
		{
			name: "missing name",
			call: func() error {
				_, err := client.CreateGroup(ctx, connect.NewRequest(&CreateGroupRequest{Currency: "CHF"}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "unknown group",
			call: func() error {
				_, err := client.GetBalances(ctx, connect.NewRequest(&GetBalancesRequest{GroupID: "missing"}))
				return err
			},
			wantCode: connect.CodeNotFound,
		},
		{
			name: "participant outside group",
			call: func() error {
				_, err := client.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{
					GroupID: groupID, PayerID: "A", Amount: chf(100),
					Split: Split{Kind: "equal", Participants: []string{"A", "Z"}},
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "Someone in the expense is not a member of the group.",
		},
		{
			name: "wrong currency",
			call: func() error {
				_, err := client.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{
					GroupID: groupID, PayerID: "A", Amount: money.FromMinor(100, "EUR"),
					Split: Split{Kind: "equal", Participants: []string{"A"}},
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "Amounts must all be in the group's currency.",
		},
		{
			name: "exact split mismatch",
			call: func() error {
				_, err := client.AddExpense(ctx, connect.NewRequest(&AddExpenseRequest{
					GroupID: groupID, PayerID: "A", Amount: chf(100),
					Split: Split{Kind: "exact", Amounts: map[string]money.Money{"A": chf(60), "B": chf(30)}},
				}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
			wantMsg:  "The split does not add up to the expense total.",
		},
		{
			name: "no plan yet",
			call: func() error {
				_, err := client.ListSettlements(ctx, connect.NewRequest(&ListSettlementsRequest{GroupID: groupID}))
				return err
			},
			wantCode: connect.CodeFailedPrecondition,
		},
		{
			name: "unknown settlement",
			call: func() error {
				_, err := client.MarkPaid(ctx, connect.NewRequest(&SettlementRequest{SettlementID: "nope:0"}))
				return err
			},
			wantCode: connect.CodeNotFound,
		},
		{
			name: "missing settlement id",
			call: func() error {
				_, err := client.UndoSettlement(ctx, connect.NewRequest(&SettlementRequest{}))
				return err
			},
			wantCode: connect.CodeInvalidArgument,
		},
		{
			name: "replace unknown expense",
			call: func() error {
				_, err := client.ReplaceExpense(ctx, connect.NewRequest(&ReplaceExpenseRequest{
					ExpenseID: "missing", PayerID: "A", Amount: chf(100),
					Split: Split{Kind: "equal", Participants: []string{"A"}},
				}))
				return err
			},
			wantCode: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
			if tt.wantMsg != "" {
				var connectErr *connect.Error
				require.ErrorAs(t, err, &connectErr)
				assert.Equal(t, tt.wantMsg, connectErr.Message())
			}
		})
	}
}

func TestUndoPendingIsFailedPrecondition(t *testing.T) {
	client := setupTestServer(t, 0)
	ctx := context.Background()
	groupID := createSkiTrip(t, client)
	addRoundTripExpenses(t, client, groupID)

	plan, err := client.PlanSettlements(ctx, connect.NewRequest(&PlanSettlementsRequest{GroupID: groupID}))
	require.NoError(t, err)

	_, err = client.UndoSettlement(ctx, connect.NewRequest(&SettlementRequest{SettlementID: plan.Msg.Settlements[0].ID}))
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))

	// A new plan invalidates the old settlement IDs.
	_, err = client.PlanSettlements(ctx, connect.NewRequest(&PlanSettlementsRequest{GroupID: groupID}))
	require.NoError(t, err)
	_, err = client.MarkPaid(ctx, connect.NewRequest(&SettlementRequest{SettlementID: plan.Msg.Settlements[0].ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestMarkPaid_ConcurrentRequestAborted(t *testing.T) {
	client := setupTestServer(t, 200*time.Millisecond)
	ctx := context.Background()
	groupID := createSkiTrip(t, client)
	addRoundTripExpenses(t, client, groupID)

	plan, err := client.PlanSettlements(ctx, connect.NewRequest(&PlanSettlementsRequest{GroupID: groupID}))
	require.NoError(t, err)
	id := plan.Msg.Settlements[0].ID

	var wg sync.WaitGroup
	codes := make([]connect.Code, 2)
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.MarkPaid(ctx, as("C", &SettlementRequest{SettlementID: id}))
			if err != nil {
				codes[i] = connect.CodeOf(err)
			}
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []connect.Code{0, connect.CodeAborted}, codes)
}
