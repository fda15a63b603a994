// Package ledger ties the calculator, the settlement tracker and the store
// together. An Engine is built from an explicit Config; there is no package
// state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/tracker"
)

var (
	ErrInvalidConfig = errors.New("invalid ledger config")
	ErrNoPlan        = errors.New("no settlement plan for group")
)

// Source is the read side of the store the engine depends on.
type Source interface {
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	Snapshot(ctx context.Context, groupID string) (*storage.GroupSnapshot, error)
	Subscribe(groupID string, fn func()) (cancel func())
}

// ActivityLog receives one entry per settlement transition.
type ActivityLog interface {
	RecordActivity(ctx context.Context, activity *models.Activity) error
}

// Observer is told about settlement transitions and balance computations.
type Observer interface {
	tracker.Observer
	BalancesComputed(d time.Duration, err error)
}

// Config holds everything an Engine needs.
type Config struct {
	// Source provides groups, members, expenses and change notifications.
	Source Source

	// Activities is optional.
	Activities ActivityLog

	// Notifier defaults to LogNotifier.
	Notifier Notifier

	// Identity returns the acting member for a request context.
	// Optional; without it actors are recorded as empty.
	Identity func(ctx context.Context) string

	// SettlementDelay is how long MarkPaid waits for confirmation.
	SettlementDelay time.Duration

	// RequirePayerParticipant rejects expenses whose payer is not in the split.
	RequirePayerParticipant bool

	// Observer is optional.
	Observer Observer

	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine computes balances and plans for groups and tracks the current plan
// of each group.
type Engine struct {
	cfg Config

	mu     sync.Mutex
	plans  map[string]*Plan // by group ID
	byPlan map[string]*Plan // by plan ID, current plans only
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: source is required", ErrInvalidConfig)
	}
	if cfg.SettlementDelay < 0 {
		return nil, fmt.Errorf("%w: negative settlement delay %s", ErrInvalidConfig, cfg.SettlementDelay)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{
		cfg:    cfg,
		plans:  make(map[string]*Plan),
		byPlan: make(map[string]*Plan),
	}, nil
}

func (e *Engine) options() calculator.Options {
	return calculator.Options{RequirePayerParticipant: e.cfg.RequirePayerParticipant}
}

func (e *Engine) actor(ctx context.Context) string {
	if e.cfg.Identity == nil {
		return ""
	}
	return e.cfg.Identity(ctx)
}

// Snapshot is one consistent read of a group's inputs.
type Snapshot struct {
	Group    models.Group
	Members  []models.Participant
	Expenses []models.Expense
}

// Snapshot reads the group, its members and its expenses as of one instant.
func (e *Engine) Snapshot(ctx context.Context, groupID string) (*Snapshot, error) {
	read, err := e.cfg.Source.Snapshot(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("snapshot group %s: %w", groupID, err)
	}
	return &Snapshot{
		Group:    read.Group,
		Members:  read.Group.Members,
		Expenses: read.Expenses,
	}, nil
}

// Balances computes member balances from a snapshot.
func (e *Engine) Balances(snap *Snapshot) ([]calculator.MemberBalance, error) {
	start := time.Now()
	balances, err := calculator.CalculateGroupBalances(snap.Group.Currency, snap.Members, snap.Expenses, e.options())
	if e.cfg.Observer != nil {
		e.cfg.Observer.BalancesComputed(time.Since(start), err)
	}
	return balances, err
}

// ComputeBalances returns the current balance of every member of the group,
// sorted by member ID.
func (e *Engine) ComputeBalances(ctx context.Context, groupID string) ([]calculator.MemberBalance, error) {
	snap, err := e.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return e.Balances(snap)
}

// PlanSettlements derives the transfers that settle balances.
func (e *Engine) PlanSettlements(balances map[string]money.Money) ([]models.Transfer, error) {
	return calculator.PlanSettlements(balances)
}

// ValidateExpense checks that exp resolves against the group's current
// members and currency.
func (e *Engine) ValidateExpense(ctx context.Context, exp models.Expense) error {
	group, err := e.cfg.Source.GetGroup(ctx, exp.GroupID)
	if err != nil {
		return err
	}
	_, err = calculator.CalculateGroupBalances(group.Currency, group.Members, []models.Expense{exp}, e.options())
	return err
}

func (e *Engine) logActivity(ctx context.Context, activity *models.Activity) {
	if e.cfg.Activities == nil {
		return
	}
	if err := e.cfg.Activities.RecordActivity(ctx, activity); err != nil {
		slog.Warn("Failed to record activity",
			"group_id", activity.GroupID,
			"kind", activity.Kind,
			"error", err,
		)
	}
}
