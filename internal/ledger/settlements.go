package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/tracker"
)

// Plan is one planning run for a group.
type Plan struct {
	ID        string
	GroupID   string
	Currency  string
	Balances  []calculator.MemberBalance
	Transfers []models.Transfer
	CreatedAt time.Time

	tracker *tracker.Tracker
}

// Records returns the current state of the plan's settlements.
func (p *Plan) Records() []models.SettlementRecord {
	return p.tracker.Records()
}

// Plan computes balances and transfers for the group and starts tracking
// them. The group's previous plan, if any, is discarded together with its
// settlement IDs; confirmations still running on it fail with
// tracker.ErrTrackerClosed and leave their settlement pending.
func (e *Engine) Plan(ctx context.Context, groupID string) (*Plan, error) {
	snap, err := e.Snapshot(ctx, groupID)
	if err != nil {
		return nil, err
	}
	balances, err := e.Balances(snap)
	if err != nil {
		return nil, err
	}
	transfers, err := e.PlanSettlements(calculator.NetBalances(balances))
	if err != nil {
		return nil, err
	}

	opts := []tracker.Option{
		tracker.WithDelay(e.cfg.SettlementDelay),
		tracker.WithClock(e.cfg.Now),
	}
	if e.cfg.Observer != nil {
		opts = append(opts, tracker.WithObserver(e.cfg.Observer))
	}

	plan := &Plan{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		Currency:  snap.Group.Currency,
		Balances:  balances,
		Transfers: transfers,
		CreatedAt: e.cfg.Now(),
	}
	plan.tracker = tracker.New(plan.ID, transfers, opts...)

	e.mu.Lock()
	old, replaced := e.plans[groupID]
	if replaced {
		delete(e.byPlan, old.ID)
	}
	e.plans[groupID] = plan
	e.byPlan[plan.ID] = plan
	e.mu.Unlock()

	if replaced {
		old.tracker.Close()
	}
	return plan, nil
}

// CurrentPlan returns the group's latest plan.
func (e *Engine) CurrentPlan(groupID string) (*Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.plans[groupID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPlan, groupID)
	}
	return plan, nil
}

// Settlements returns the settlements of the group's current plan.
func (e *Engine) Settlements(groupID string) ([]models.SettlementRecord, error) {
	plan, err := e.CurrentPlan(groupID)
	if err != nil {
		return nil, err
	}
	return plan.Records(), nil
}

func (e *Engine) planFor(settlementID string) (*Plan, error) {
	planID, _, ok := strings.Cut(settlementID, ":")
	if !ok {
		return nil, fmt.Errorf("%w: %s", tracker.ErrSettlementNotFound, settlementID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	plan, ok := e.byPlan[planID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", tracker.ErrSettlementNotFound, settlementID)
	}
	return plan, nil
}

// MarkPaid marks a settlement of a current plan as paid. It blocks for the
// configured settlement delay; see tracker.Tracker.MarkPaid.
func (e *Engine) MarkPaid(ctx context.Context, settlementID string) (models.SettlementRecord, error) {
	return e.apply(ctx, settlementID, models.ActivitySettlementPaid, func(t *tracker.Tracker, actor string) (models.SettlementRecord, error) {
		return t.MarkPaid(ctx, settlementID, actor)
	})
}

// Undo reverts a paid settlement to pending.
func (e *Engine) Undo(ctx context.Context, settlementID string) (models.SettlementRecord, error) {
	return e.apply(ctx, settlementID, models.ActivitySettlementUndone, func(t *tracker.Tracker, actor string) (models.SettlementRecord, error) {
		return t.Undo(settlementID, actor)
	})
}

// Cancel drops a pending settlement without paying it.
func (e *Engine) Cancel(ctx context.Context, settlementID string) (models.SettlementRecord, error) {
	return e.apply(ctx, settlementID, models.ActivitySettlementCancelled, func(t *tracker.Tracker, actor string) (models.SettlementRecord, error) {
		return t.Cancel(settlementID, actor)
	})
}

type transitionFunc func(t *tracker.Tracker, actor string) (models.SettlementRecord, error)

func (e *Engine) apply(ctx context.Context, settlementID string, kind models.ActivityKind, fn transitionFunc) (models.SettlementRecord, error) {
	actor := e.actor(ctx)

	plan, err := e.planFor(settlementID)
	if err != nil {
		e.cfg.Notifier.Notify(ctx, Notification{SettlementID: settlementID, Actor: actor, Message: Message(err), Err: err})
		return models.SettlementRecord{}, err
	}

	rec, err := fn(plan.tracker, actor)
	if err != nil {
		e.cfg.Notifier.Notify(ctx, Notification{GroupID: plan.GroupID, SettlementID: settlementID, Actor: actor, Message: Message(err), Err: err})
		return models.SettlementRecord{}, err
	}

	detail := describe(kind, rec)
	e.logActivity(ctx, &models.Activity{
		GroupID:      plan.GroupID,
		Kind:         kind,
		SettlementID: rec.ID,
		Detail:       detail,
		Actor:        actor,
	})
	e.cfg.Notifier.Notify(ctx, Notification{GroupID: plan.GroupID, SettlementID: rec.ID, Actor: actor, Message: detail})
	return rec, nil
}

func describe(kind models.ActivityKind, rec models.SettlementRecord) string {
	t := rec.Transfer
	switch kind {
	case models.ActivitySettlementPaid:
		return fmt.Sprintf("%s paid %s %s", t.From, t.To, t.Amount)
	case models.ActivitySettlementUndone:
		return fmt.Sprintf("payment of %s from %s to %s was undone", t.Amount, t.From, t.To)
	case models.ActivitySettlementCancelled:
		return fmt.Sprintf("payment of %s from %s to %s was cancelled", t.Amount, t.From, t.To)
	default:
		return string(kind)
	}
}
