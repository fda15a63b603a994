package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/internal/tracker"
)

type actorKey struct{}

func withActor(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, actorKey{}, id)
}

func actorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

type countingObserver struct {
	mu          sync.Mutex
	transitions []models.SettlementStatus
	computed    int
}

func (o *countingObserver) SettlementTransition(rec models.SettlementRecord, _ models.SettlementStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, rec.Status)
}

func (o *countingObserver) BalancesComputed(time.Duration, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.computed++
}

type fixture struct {
	store    *sqlite.SQLiteStore
	engine   *Engine
	notifier *recordingNotifier
	observer *countingObserver
	groupID  string
}

func chf(minor int64) money.Money { return money.FromMinor(minor, "CHF") }

func newFixture(t *testing.T, delay time.Duration) *fixture {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	group := &models.Group{
		Name:     "Ski Trip",
		Currency: "CHF",
		Members:  []models.Participant{{ID: "A"}, {ID: "B"}, {ID: "C"}},
	}
	require.NoError(t, store.CreateGroup(context.Background(), group))

	f := &fixture{
		store:    store,
		notifier: &recordingNotifier{},
		observer: &countingObserver{},
		groupID:  group.ID,
	}
	f.engine, err = New(Config{
		Source:          store,
		Activities:      store,
		Notifier:        f.notifier,
		Identity:        actorFrom,
		SettlementDelay: delay,
		Observer:        f.observer,
	})
	require.NoError(t, err)
	return f
}

// addRoundTripExpenses leaves A +16.66, B -3.33, C -13.33.
func (f *fixture) addRoundTripExpenses(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.CreateExpense(ctx, &models.Expense{
		GroupID: f.groupID, PayerID: "A", Total: chf(3000), Split: models.EqualSplit("A", "B", "C"), CreatedAt: 1,
	}))
	require.NoError(t, f.store.CreateExpense(ctx, &models.Expense{
		GroupID: f.groupID, PayerID: "B", Total: chf(1000), Split: models.EqualSplit("A", "B", "C"), CreatedAt: 2,
	}))
}

func TestNew_ValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	store, err := sqlite.New(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = New(Config{Source: store, SettlementDelay: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestComputeBalancesAndPlan(t *testing.T) {
	f := newFixture(t, 0)
	f.addRoundTripExpenses(t)
	ctx := context.Background()

	balances, err := f.engine.ComputeBalances(ctx, f.groupID)
	require.NoError(t, err)
	require.Len(t, balances, 3)
	assert.Equal(t, chf(1666), balances[0].Net)
	assert.Equal(t, chf(-333), balances[1].Net)
	assert.Equal(t, chf(-1333), balances[2].Net)

	plan, err := f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)
	assert.Equal(t, "CHF", plan.Currency)
	assert.Equal(t, []models.Transfer{
		{From: "C", To: "A", Amount: chf(1333)},
		{From: "B", To: "A", Amount: chf(333)},
	}, plan.Transfers)

	records, err := f.engine.Settlements(f.groupID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, tracker.RecordID(plan.ID, 0), records[0].ID)
	for _, r := range records {
		assert.Equal(t, models.StatusPending, r.Status)
	}
	assert.Equal(t, 2, f.observer.computed)
}

func TestSettlements_NoPlan(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.engine.Settlements(f.groupID)
	assert.ErrorIs(t, err, ErrNoPlan)
}

func TestSettlementLifecycle(t *testing.T) {
	f := newFixture(t, 0)
	f.addRoundTripExpenses(t)
	ctx := withActor(context.Background(), "C")

	plan, err := f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)
	first := tracker.RecordID(plan.ID, 0)
	second := tracker.RecordID(plan.ID, 1)

	rec, err := f.engine.MarkPaid(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, rec.Status)
	assert.Equal(t, "C", rec.UpdatedBy)

	rec, err = f.engine.Undo(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)

	rec, err = f.engine.Cancel(withActor(context.Background(), "B"), second)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUndone, rec.Status)

	_, err = f.engine.Undo(ctx, second)
	assert.ErrorIs(t, err, tracker.ErrInvalidTransition)

	activities, err := f.store.ListActivities(context.Background(), f.groupID)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	kinds := []models.ActivityKind{activities[0].Kind, activities[1].Kind, activities[2].Kind}
	assert.ElementsMatch(t, []models.ActivityKind{
		models.ActivitySettlementPaid,
		models.ActivitySettlementUndone,
		models.ActivitySettlementCancelled,
	}, kinds)
	for _, a := range activities {
		if a.Kind == models.ActivitySettlementPaid {
			assert.Equal(t, "C paid A 13.33 CHF", a.Detail)
			assert.Equal(t, "C", a.Actor)
			assert.Equal(t, first, a.SettlementID)
		}
	}

	notes := f.notifier.all()
	require.Len(t, notes, 4)
	assert.NoError(t, notes[0].Err)
	last := notes[3]
	assert.ErrorIs(t, last.Err, tracker.ErrInvalidTransition)
	assert.Equal(t, Message(tracker.ErrInvalidTransition), last.Message)
	assert.Equal(t, f.groupID, last.GroupID)
}

func TestReplannedSettlementsAreNotFound(t *testing.T) {
	f := newFixture(t, 0)
	f.addRoundTripExpenses(t)
	ctx := context.Background()

	old, err := f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)
	current, err := f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)
	require.NotEqual(t, old.ID, current.ID)

	_, err = f.engine.MarkPaid(ctx, tracker.RecordID(old.ID, 0))
	assert.ErrorIs(t, err, tracker.ErrSettlementNotFound)

	_, err = f.engine.MarkPaid(ctx, "garbage")
	assert.ErrorIs(t, err, tracker.ErrSettlementNotFound)

	_, err = f.engine.MarkPaid(ctx, tracker.RecordID(current.ID, 0))
	assert.NoError(t, err)
}

func TestPlan_ReplacingAbortsPendingConfirmation(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addRoundTripExpenses(t)
	ctx := withActor(context.Background(), "C")

	old, err := f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)
	id := tracker.RecordID(old.ID, 0)

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.MarkPaid(ctx, id)
		done <- err
	}()
	require.Eventually(t, func() bool {
		rec, err := old.tracker.Get(id)
		return err == nil && rec.Status == models.StatusProcessing
	}, time.Second, time.Millisecond)

	_, err = f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, tracker.ErrTrackerClosed)
		assert.Equal(t, Message(tracker.ErrTrackerClosed), Message(err))
	case <-time.After(5 * time.Second):
		t.Fatal("MarkPaid kept waiting on a replaced plan")
	}

	rec, err := old.tracker.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)

	activities, err := f.store.ListActivities(context.Background(), f.groupID)
	require.NoError(t, err)
	assert.Empty(t, activities)
	for _, n := range f.notifier.all() {
		assert.Error(t, n.Err)
	}
}

func TestMarkPaid_ConcurrentCallsRejected(t *testing.T) {
	f := newFixture(t, 100*time.Millisecond)
	f.addRoundTripExpenses(t)
	ctx := context.Background()

	plan, err := f.engine.Plan(ctx, f.groupID)
	require.NoError(t, err)
	id := tracker.RecordID(plan.ID, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.engine.MarkPaid(ctx, id)
		}()
	}
	wg.Wait()

	var ok, busy int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, tracker.ErrAlreadyProcessing):
			busy++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, busy)

	rec, err := plan.tracker.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, rec.Status)
}

func TestMarkPaid_CancelledLeavesPending(t *testing.T) {
	f := newFixture(t, time.Minute)
	f.addRoundTripExpenses(t)

	plan, err := f.engine.Plan(context.Background(), f.groupID)
	require.NoError(t, err)
	id := tracker.RecordID(plan.ID, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.engine.MarkPaid(ctx, id)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	records, err := f.engine.Settlements(f.groupID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, records[0].Status)

	activities, err := f.store.ListActivities(context.Background(), f.groupID)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestWatch_ReplansOnChange(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())

	plans := make(chan *Plan, 10)
	done := make(chan error, 1)
	go func() {
		done <- f.engine.Watch(ctx, f.groupID, func(p *Plan, err error) {
			if err == nil {
				plans <- p
			}
		})
	}()

	select {
	case p := <-plans:
		assert.Empty(t, p.Transfers)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial plan")
	}

	f.addRoundTripExpenses(t)

	deadline := time.After(5 * time.Second)
	for {
		var p *Plan
		select {
		case p = <-plans:
		case <-deadline:
			t.Fatal("no plan after expenses were added")
		}
		// The first expense alone also yields two transfers.
		if len(p.Balances) == 3 && p.Balances[0].Net == chf(1666) {
			assert.Equal(t, []models.Transfer{
				{From: "C", To: "A", Amount: chf(1333)},
				{From: "B", To: "A", Amount: chf(333)},
			}, p.Transfers)
			break
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop")
	}
}

type unavailableSource struct {
	storage.Broadcaster
}

func (*unavailableSource) GetGroup(context.Context, string) (*models.Group, error) {
	return nil, fmt.Errorf("failed to get group: %w", storage.ErrStoreUnavailable)
}

func (*unavailableSource) Snapshot(context.Context, string) (*storage.GroupSnapshot, error) {
	return nil, fmt.Errorf("failed to begin snapshot: %w", storage.ErrStoreUnavailable)
}

func TestComputeBalances_StoreUnavailable(t *testing.T) {
	engine, err := New(Config{Source: &unavailableSource{}})
	require.NoError(t, err)

	_, err = engine.ComputeBalances(context.Background(), "g")
	assert.ErrorIs(t, err, storage.ErrStoreUnavailable)
	assert.Equal(t, "The ledger is temporarily unavailable. Please try again.", Message(err))
}

func TestComputeBalances_ConcurrentMemberAndExpenseWrites(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	const joiners = 20
	done := make(chan struct{})
	writeErr := make(chan error, 1)
	go func() {
		defer close(done)
		for i := range joiners {
			id := fmt.Sprintf("D%02d", i)
			if err := f.store.AddMembers(ctx, f.groupID, []models.Participant{{ID: id}}); err != nil {
				writeErr <- err
				return
			}
			err := f.store.CreateExpense(ctx, &models.Expense{
				GroupID: f.groupID, PayerID: id, Total: chf(300), Split: models.EqualSplit("A", id),
			})
			if err != nil {
				writeErr <- err
				return
			}
		}
	}()

	// Every read must see a member before any expense that names them.
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		_, err := f.engine.ComputeBalances(ctx, f.groupID)
		require.NoError(t, err)
	}
	select {
	case err := <-writeErr:
		require.NoError(t, err)
	default:
	}

	balances, err := f.engine.ComputeBalances(ctx, f.groupID)
	require.NoError(t, err)
	assert.Len(t, balances, 3+joiners)
}

func TestValidateExpense(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	ok := models.Expense{GroupID: f.groupID, PayerID: "A", Total: chf(900), Split: models.EqualSplit("B", "C")}
	assert.NoError(t, f.engine.ValidateExpense(ctx, ok))

	stranger := models.Expense{GroupID: f.groupID, PayerID: "A", Total: chf(900), Split: models.EqualSplit("B", "Z")}
	assert.ErrorIs(t, f.engine.ValidateExpense(ctx, stranger), calculator.ErrUnknownMember)

	euros := models.Expense{GroupID: f.groupID, PayerID: "A", Total: money.FromMinor(900, "EUR"), Split: models.EqualSplit("A")}
	assert.ErrorIs(t, f.engine.ValidateExpense(ctx, euros), money.ErrCurrencyMismatch)

	missing := models.Expense{GroupID: "missing", PayerID: "A", Total: chf(900), Split: models.EqualSplit("A")}
	assert.ErrorIs(t, f.engine.ValidateExpense(ctx, missing), storage.ErrNotFound)
}

func TestMessage_DistinctPerKind(t *testing.T) {
	seen := make(map[string]error)
	for _, m := range messages {
		msg := Message(fmt.Errorf("wrapped: %w", m.err))
		require.Equal(t, m.msg, msg)
		if prev, dup := seen[msg]; dup {
			t.Errorf("%v and %v share message %q", prev, m.err, msg)
		}
		seen[msg] = m.err
	}
	assert.Equal(t, "Something went wrong.", Message(errors.New("boom")))
	assert.Empty(t, Message(nil))
}
