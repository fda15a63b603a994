package service

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// LedgerService implements the splitledger.v1.LedgerService procedures.
type LedgerService struct {
	store  storage.Store
	engine *ledger.Engine
}

// NewLedgerService creates a LedgerService. Writes go to store directly;
// balances and settlements go through engine.
func NewLedgerService(store storage.Store, engine *ledger.Engine) *LedgerService {
	return &LedgerService{store: store, engine: engine}
}

func validateMembers(members []Participant) error {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if strings.TrimSpace(m.ID) == "" {
			return invalidArgument("member id required")
		}
		if seen[m.ID] {
			return invalidArgument("member %q listed twice", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// CreateGroup creates a new group.
func (s *LedgerService) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"currency", req.Msg.Currency,
		"members_count", len(req.Msg.Members),
	)

	if strings.TrimSpace(req.Msg.Name) == "" {
		return nil, invalidArgument("name required")
	}
	if err := validateMembers(req.Msg.Members); err != nil {
		return nil, err
	}

	group := &models.Group{
		Name:     req.Msg.Name,
		Currency: req.Msg.Currency,
		Members:  participantsFromAPI(req.Msg.Members),
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, toConnectError("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID)
	return connect.NewResponse(&GroupResponse{Group: groupToAPI(group)}), nil
}

// GetGroup retrieves a group with its members.
func (s *LedgerService) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GroupResponse], error) {
	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, toConnectError("GetGroup", err, "group_id", req.Msg.GroupID)
	}
	return connect.NewResponse(&GroupResponse{Group: groupToAPI(group)}), nil
}

// AddMembers adds participants to a group. Existing member IDs are ignored.
func (s *LedgerService) AddMembers(ctx context.Context, req *connect.Request[AddMembersRequest]) (*connect.Response[GroupResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("AddMembers request received", "group_id", groupID, "members_count", len(req.Msg.Members))

	if err := validateMembers(req.Msg.Members); err != nil {
		return nil, err
	}
	if err := s.store.AddMembers(ctx, groupID, participantsFromAPI(req.Msg.Members)); err != nil {
		return nil, toConnectError("AddMembers", err, "group_id", groupID)
	}

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, toConnectError("AddMembers", err, "group_id", groupID)
	}
	return connect.NewResponse(&GroupResponse{Group: groupToAPI(group)}), nil
}

// AddExpense records a new expense after checking it against the group.
func (s *LedgerService) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	slog.Info("AddExpense request received",
		"group_id", req.Msg.GroupID,
		"payer_id", req.Msg.PayerID,
		"amount", req.Msg.Amount.String(),
		"split", req.Msg.Split.Kind,
	)

	expense := &models.Expense{
		GroupID:     req.Msg.GroupID,
		Description: req.Msg.Description,
		PayerID:     req.Msg.PayerID,
		Total:       req.Msg.Amount,
		Split:       splitFromAPI(req.Msg.Split),
	}
	if err := s.engine.ValidateExpense(ctx, *expense); err != nil {
		return nil, toConnectError("AddExpense", err, "group_id", expense.GroupID)
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, toConnectError("AddExpense", err, "group_id", expense.GroupID)
	}

	s.recordExpenseActivity(ctx, models.ActivityExpenseAdded, expense)
	slog.Info("Expense created", "expense_id", expense.ID, "group_id", expense.GroupID)
	return connect.NewResponse(&ExpenseResponse{Expense: expenseToAPI(expense)}), nil
}

// ReplaceExpense overwrites an expense. It stays in its group and keeps its
// position in creation order.
func (s *LedgerService) ReplaceExpense(ctx context.Context, req *connect.Request[ReplaceExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	expenseID := req.Msg.ExpenseID
	slog.Info("ReplaceExpense request received", "expense_id", expenseID)

	existing, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, toConnectError("ReplaceExpense", err, "expense_id", expenseID)
	}

	expense := &models.Expense{
		ID:          expenseID,
		GroupID:     existing.GroupID,
		Description: req.Msg.Description,
		PayerID:     req.Msg.PayerID,
		Total:       req.Msg.Amount,
		Split:       splitFromAPI(req.Msg.Split),
		CreatedAt:   existing.CreatedAt,
	}
	if err := s.engine.ValidateExpense(ctx, *expense); err != nil {
		return nil, toConnectError("ReplaceExpense", err, "expense_id", expenseID)
	}
	if err := s.store.ReplaceExpense(ctx, expense); err != nil {
		return nil, toConnectError("ReplaceExpense", err, "expense_id", expenseID)
	}

	s.recordExpenseActivity(ctx, models.ActivityExpenseReplaced, expense)
	return connect.NewResponse(&ExpenseResponse{Expense: expenseToAPI(expense)}), nil
}

// DeleteExpense removes an expense.
func (s *LedgerService) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	expenseID := req.Msg.ExpenseID
	slog.Info("DeleteExpense request received", "expense_id", expenseID)

	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, toConnectError("DeleteExpense", err, "expense_id", expenseID)
	}
	if err := s.store.DeleteExpense(ctx, expenseID); err != nil {
		return nil, toConnectError("DeleteExpense", err, "expense_id", expenseID)
	}

	s.recordExpenseActivity(ctx, models.ActivityExpenseDeleted, expense)
	return connect.NewResponse(&DeleteExpenseResponse{}), nil
}

// ListExpenses returns a group's expenses in creation order.
func (s *LedgerService) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	groupID := req.Msg.GroupID
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, toConnectError("ListExpenses", err, "group_id", groupID)
	}
	expenses, err := s.store.ListExpenses(ctx, groupID)
	if err != nil {
		return nil, toConnectError("ListExpenses", err, "group_id", groupID)
	}

	out := make([]Expense, len(expenses))
	for i := range expenses {
		out[i] = expenseToAPI(&expenses[i])
	}
	return connect.NewResponse(&ListExpensesResponse{Expenses: out}), nil
}

// GetBalances computes every member's balance.
func (s *LedgerService) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("GetBalances request received", "group_id", groupID)

	balances, err := s.engine.ComputeBalances(ctx, groupID)
	if err != nil {
		return nil, toConnectError("GetBalances", err, "group_id", groupID)
	}
	return connect.NewResponse(&GetBalancesResponse{Balances: balancesToAPI(balances)}), nil
}

// PlanSettlements computes a fresh settlement plan, replacing the previous one.
func (s *LedgerService) PlanSettlements(ctx context.Context, req *connect.Request[PlanSettlementsRequest]) (*connect.Response[SettlementsResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("PlanSettlements request received", "group_id", groupID)

	plan, err := s.engine.Plan(ctx, groupID)
	if err != nil {
		return nil, toConnectError("PlanSettlements", err, "group_id", groupID)
	}

	slog.Info("Settlements planned", "group_id", groupID, "plan_id", plan.ID, "transfers", len(plan.Transfers))
	return connect.NewResponse(&SettlementsResponse{
		PlanID:      plan.ID,
		Settlements: settlementsToAPI(plan.Records()),
	}), nil
}

// ListSettlements returns the current plan's settlements.
func (s *LedgerService) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[SettlementsResponse], error) {
	groupID := req.Msg.GroupID
	plan, err := s.engine.CurrentPlan(groupID)
	if err != nil {
		return nil, toConnectError("ListSettlements", err, "group_id", groupID)
	}
	return connect.NewResponse(&SettlementsResponse{
		PlanID:      plan.ID,
		Settlements: settlementsToAPI(plan.Records()),
	}), nil
}

// MarkPaid confirms a settlement. It blocks for the configured confirmation
// delay; a concurrent request for the same settlement is rejected.
func (s *LedgerService) MarkPaid(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return s.transition(ctx, "MarkPaid", req.Msg.SettlementID, s.engine.MarkPaid)
}

// UndoSettlement reverts a paid settlement to pending.
func (s *LedgerService) UndoSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return s.transition(ctx, "UndoSettlement", req.Msg.SettlementID, s.engine.Undo)
}

// CancelSettlement drops a pending settlement.
func (s *LedgerService) CancelSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return s.transition(ctx, "CancelSettlement", req.Msg.SettlementID, s.engine.Cancel)
}

func (s *LedgerService) transition(
	ctx context.Context,
	op, settlementID string,
	fn func(context.Context, string) (models.SettlementRecord, error),
) (*connect.Response[SettlementResponse], error) {
	slog.Info(op+" request received", "settlement_id", settlementID, "user_id", middleware.GetUserID(ctx))

	if settlementID == "" {
		return nil, invalidArgument("settlement_id required")
	}
	rec, err := fn(ctx, settlementID)
	if err != nil {
		return nil, toConnectError(op, err, "settlement_id", settlementID)
	}
	return connect.NewResponse(&SettlementResponse{Settlement: settlementToAPI(rec)}), nil
}

// ListActivity returns the group's history, newest first.
func (s *LedgerService) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	groupID := req.Msg.GroupID
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, toConnectError("ListActivity", err, "group_id", groupID)
	}
	activities, err := s.store.ListActivities(ctx, groupID)
	if err != nil {
		return nil, toConnectError("ListActivity", err, "group_id", groupID)
	}

	out := make([]Activity, len(activities))
	for i, a := range activities {
		out[i] = activityToAPI(a)
	}
	return connect.NewResponse(&ListActivityResponse{Activities: out}), nil
}

func (s *LedgerService) recordExpenseActivity(ctx context.Context, kind models.ActivityKind, e *models.Expense) {
	actor := middleware.GetUserID(ctx)
	detail := e.Description
	if detail == "" {
		detail = "expense"
	}
	switch kind {
	case models.ActivityExpenseAdded:
		detail = e.PayerID + " paid " + e.Total.String() + " for " + detail
	case models.ActivityExpenseReplaced:
		detail = detail + " changed to " + e.Total.String() + " paid by " + e.PayerID
	case models.ActivityExpenseDeleted:
		detail = detail + " (" + e.Total.String() + ") deleted"
	}

	err := s.store.RecordActivity(ctx, &models.Activity{
		GroupID:   e.GroupID,
		Kind:      kind,
		ExpenseID: e.ID,
		Detail:    detail,
		Actor:     actor,
	})
	if err != nil {
		slog.Warn("Failed to record activity", "expense_id", e.ID, "kind", kind, "error", err)
	}
}
