package service

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
)

// LedgerServiceName is the fully-qualified name of the service.
const LedgerServiceName = "splitledger.v1.LedgerService"

// Procedure paths, in the form connect expects.
const (
	CreateGroupProcedure      = "/" + LedgerServiceName + "/CreateGroup"
	GetGroupProcedure         = "/" + LedgerServiceName + "/GetGroup"
	AddMembersProcedure       = "/" + LedgerServiceName + "/AddMembers"
	AddExpenseProcedure       = "/" + LedgerServiceName + "/AddExpense"
	ReplaceExpenseProcedure   = "/" + LedgerServiceName + "/ReplaceExpense"
	DeleteExpenseProcedure    = "/" + LedgerServiceName + "/DeleteExpense"
	ListExpensesProcedure     = "/" + LedgerServiceName + "/ListExpenses"
	GetBalancesProcedure      = "/" + LedgerServiceName + "/GetBalances"
	PlanSettlementsProcedure  = "/" + LedgerServiceName + "/PlanSettlements"
	ListSettlementsProcedure  = "/" + LedgerServiceName + "/ListSettlements"
	MarkPaidProcedure         = "/" + LedgerServiceName + "/MarkPaid"
	UndoSettlementProcedure   = "/" + LedgerServiceName + "/UndoSettlement"
	CancelSettlementProcedure = "/" + LedgerServiceName + "/CancelSettlement"
	ListActivityProcedure     = "/" + LedgerServiceName + "/ListActivity"
)

// NewLedgerServiceHandler builds an HTTP handler serving every procedure of
// svc. It returns the path prefix to mount it on.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateGroupProcedure, connect.NewUnaryHandler(CreateGroupProcedure, svc.CreateGroup, opts...))
	mux.Handle(GetGroupProcedure, connect.NewUnaryHandler(GetGroupProcedure, svc.GetGroup, opts...))
	mux.Handle(AddMembersProcedure, connect.NewUnaryHandler(AddMembersProcedure, svc.AddMembers, opts...))
	mux.Handle(AddExpenseProcedure, connect.NewUnaryHandler(AddExpenseProcedure, svc.AddExpense, opts...))
	mux.Handle(ReplaceExpenseProcedure, connect.NewUnaryHandler(ReplaceExpenseProcedure, svc.ReplaceExpense, opts...))
	mux.Handle(DeleteExpenseProcedure, connect.NewUnaryHandler(DeleteExpenseProcedure, svc.DeleteExpense, opts...))
	mux.Handle(ListExpensesProcedure, connect.NewUnaryHandler(ListExpensesProcedure, svc.ListExpenses, opts...))
	mux.Handle(GetBalancesProcedure, connect.NewUnaryHandler(GetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(PlanSettlementsProcedure, connect.NewUnaryHandler(PlanSettlementsProcedure, svc.PlanSettlements, opts...))
	mux.Handle(ListSettlementsProcedure, connect.NewUnaryHandler(ListSettlementsProcedure, svc.ListSettlements, opts...))
	mux.Handle(MarkPaidProcedure, connect.NewUnaryHandler(MarkPaidProcedure, svc.MarkPaid, opts...))
	mux.Handle(UndoSettlementProcedure, connect.NewUnaryHandler(UndoSettlementProcedure, svc.UndoSettlement, opts...))
	mux.Handle(CancelSettlementProcedure, connect.NewUnaryHandler(CancelSettlementProcedure, svc.CancelSettlement, opts...))
	mux.Handle(ListActivityProcedure, connect.NewUnaryHandler(ListActivityProcedure, svc.ListActivity, opts...))

	return "/" + LedgerServiceName + "/", mux
}

// LedgerClient calls a LedgerService over the Connect protocol with JSON
// bodies.
type LedgerClient struct {
	createGroup      *connect.Client[CreateGroupRequest, GroupResponse]
	getGroup         *connect.Client[GetGroupRequest, GroupResponse]
	addMembers       *connect.Client[AddMembersRequest, GroupResponse]
	addExpense       *connect.Client[AddExpenseRequest, ExpenseResponse]
	replaceExpense   *connect.Client[ReplaceExpenseRequest, ExpenseResponse]
	deleteExpense    *connect.Client[DeleteExpenseRequest, DeleteExpenseResponse]
	listExpenses     *connect.Client[ListExpensesRequest, ListExpensesResponse]
	getBalances      *connect.Client[GetBalancesRequest, GetBalancesResponse]
	planSettlements  *connect.Client[PlanSettlementsRequest, SettlementsResponse]
	listSettlements  *connect.Client[ListSettlementsRequest, SettlementsResponse]
	markPaid         *connect.Client[SettlementRequest, SettlementResponse]
	undoSettlement   *connect.Client[SettlementRequest, SettlementResponse]
	cancelSettlement *connect.Client[SettlementRequest, SettlementResponse]
	listActivity     *connect.Client[ListActivityRequest, ListActivityResponse]
}

// NewLedgerClient creates a client for the service at baseURL.
func NewLedgerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &LedgerClient{
		createGroup:      connect.NewClient[CreateGroupRequest, GroupResponse](httpClient, baseURL+CreateGroupProcedure, opts...),
		getGroup:         connect.NewClient[GetGroupRequest, GroupResponse](httpClient, baseURL+GetGroupProcedure, opts...),
		addMembers:       connect.NewClient[AddMembersRequest, GroupResponse](httpClient, baseURL+AddMembersProcedure, opts...),
		addExpense:       connect.NewClient[AddExpenseRequest, ExpenseResponse](httpClient, baseURL+AddExpenseProcedure, opts...),
		replaceExpense:   connect.NewClient[ReplaceExpenseRequest, ExpenseResponse](httpClient, baseURL+ReplaceExpenseProcedure, opts...),
		deleteExpense:    connect.NewClient[DeleteExpenseRequest, DeleteExpenseResponse](httpClient, baseURL+DeleteExpenseProcedure, opts...),
		listExpenses:     connect.NewClient[ListExpensesRequest, ListExpensesResponse](httpClient, baseURL+ListExpensesProcedure, opts...),
		getBalances:      connect.NewClient[GetBalancesRequest, GetBalancesResponse](httpClient, baseURL+GetBalancesProcedure, opts...),
		planSettlements:  connect.NewClient[PlanSettlementsRequest, SettlementsResponse](httpClient, baseURL+PlanSettlementsProcedure, opts...),
		listSettlements:  connect.NewClient[ListSettlementsRequest, SettlementsResponse](httpClient, baseURL+ListSettlementsProcedure, opts...),
		markPaid:         connect.NewClient[SettlementRequest, SettlementResponse](httpClient, baseURL+MarkPaidProcedure, opts...),
		undoSettlement:   connect.NewClient[SettlementRequest, SettlementResponse](httpClient, baseURL+UndoSettlementProcedure, opts...),
		cancelSettlement: connect.NewClient[SettlementRequest, SettlementResponse](httpClient, baseURL+CancelSettlementProcedure, opts...),
		listActivity:     connect.NewClient[ListActivityRequest, ListActivityResponse](httpClient, baseURL+ListActivityProcedure, opts...),
	}
}

func (c *LedgerClient) CreateGroup(ctx context.Context, req *connect.Request[CreateGroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *LedgerClient) GetGroup(ctx context.Context, req *connect.Request[GetGroupRequest]) (*connect.Response[GroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *LedgerClient) AddMembers(ctx context.Context, req *connect.Request[AddMembersRequest]) (*connect.Response[GroupResponse], error) {
	return c.addMembers.CallUnary(ctx, req)
}

func (c *LedgerClient) AddExpense(ctx context.Context, req *connect.Request[AddExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.addExpense.CallUnary(ctx, req)
}

func (c *LedgerClient) ReplaceExpense(ctx context.Context, req *connect.Request[ReplaceExpenseRequest]) (*connect.Response[ExpenseResponse], error) {
	return c.replaceExpense.CallUnary(ctx, req)
}

func (c *LedgerClient) DeleteExpense(ctx context.Context, req *connect.Request[DeleteExpenseRequest]) (*connect.Response[DeleteExpenseResponse], error) {
	return c.deleteExpense.CallUnary(ctx, req)
}

func (c *LedgerClient) ListExpenses(ctx context.Context, req *connect.Request[ListExpensesRequest]) (*connect.Response[ListExpensesResponse], error) {
	return c.listExpenses.CallUnary(ctx, req)
}

func (c *LedgerClient) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}

func (c *LedgerClient) PlanSettlements(ctx context.Context, req *connect.Request[PlanSettlementsRequest]) (*connect.Response[SettlementsResponse], error) {
	return c.planSettlements.CallUnary(ctx, req)
}

func (c *LedgerClient) ListSettlements(ctx context.Context, req *connect.Request[ListSettlementsRequest]) (*connect.Response[SettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *LedgerClient) MarkPaid(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return c.markPaid.CallUnary(ctx, req)
}

func (c *LedgerClient) UndoSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return c.undoSettlement.CallUnary(ctx, req)
}

func (c *LedgerClient) CancelSettlement(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return c.cancelSettlement.CallUnary(ctx, req)
}

func (c *LedgerClient) ListActivity(ctx context.Context, req *connect.Request[ListActivityRequest]) (*connect.Response[ListActivityResponse], error) {
	return c.listActivity.CallUnary(ctx, req)
}
