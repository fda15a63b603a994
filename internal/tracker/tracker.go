// Package tracker keeps the paid/pending/undone state of one settlement plan.
//
// Records move through:
//
//	pending ──MarkPaid──▶ processing ──(delay elapsed)──▶ paid
//	   ▲                      │
//	   └──(ctx cancelled)─────┘
//	paid ──Undo──▶ pending
//	pending ──Cancel──▶ undone
//
// Transitions on one record are serialized: while a record is processing,
// every other request for it fails with ErrAlreadyProcessing. Records do not
// block each other.
//
// Close tears the tracker down when its plan is replaced. A MarkPaid still
// waiting for confirmation then returns its record to pending, and no record
// changes state afterwards.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mmynk/splitledger/internal/models"
)

var (
	ErrAlreadyProcessing  = errors.New("settlement is already being processed")
	ErrInvalidTransition  = errors.New("invalid settlement transition")
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrTrackerClosed      = errors.New("settlement plan was replaced")
)

// Observer is told about every status change, after it happened.
type Observer interface {
	SettlementTransition(rec models.SettlementRecord, from models.SettlementStatus)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDelay sets how long MarkPaid waits for payment confirmation.
// Zero completes immediately.
func WithDelay(d time.Duration) Option {
	return func(t *Tracker) { t.delay = d }
}

// WithObserver registers an observer for status changes.
func WithObserver(o Observer) Option {
	return func(t *Tracker) { t.observers = append(t.observers, o) }
}

// WithClock overrides time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Tracker holds the records of one planning run.
type Tracker struct {
	planID    string
	delay     time.Duration
	now       func() time.Time
	observers []Observer

	mu      sync.Mutex
	records []models.SettlementRecord

	closed    chan struct{}
	closeOnce sync.Once
}

// RecordID returns the settlement ID of the index-th transfer of a plan.
func RecordID(planID string, index int) string {
	return fmt.Sprintf("%s:%d", planID, index)
}

// New creates a tracker with one pending record per transfer.
func New(planID string, transfers []models.Transfer, opts ...Option) *Tracker {
	t := &Tracker{planID: planID, now: time.Now, closed: make(chan struct{})}
	for _, opt := range opts {
		opt(t)
	}

	createdAt := t.now().Unix()
	t.records = make([]models.SettlementRecord, len(transfers))
	for i, tr := range transfers {
		t.records[i] = models.SettlementRecord{
			ID:        RecordID(planID, i),
			PlanID:    planID,
			Index:     i,
			Transfer:  tr,
			Status:    models.StatusPending,
			UpdatedAt: createdAt,
		}
	}
	return t
}

// PlanID returns the planning run this tracker belongs to.
func (t *Tracker) PlanID() string { return t.planID }

// Records returns a copy of all records in plan order.
func (t *Tracker) Records() []models.SettlementRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.SettlementRecord, len(t.records))
	copy(out, t.records)
	return out
}

// Get returns a copy of one record.
func (t *Tracker) Get(id string) (models.SettlementRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, err := t.index(id)
	if err != nil {
		return models.SettlementRecord{}, err
	}
	return t.records[i], nil
}

// Close stops the tracker. It is safe to call more than once.
func (t *Tracker) Close() {
	t.closeOnce.Do(func() { close(t.closed) })
}

func (t *Tracker) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Tracker) index(id string) (int, error) {
	for i := range t.records {
		if t.records[i].ID == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrSettlementNotFound, id)
}

// transition moves record id from one of the allowed states to "to".
// Must not be called with mu held.
func (t *Tracker) transition(id, actor string, to models.SettlementStatus, allowed ...models.SettlementStatus) (models.SettlementRecord, error) {
	return t.move(true, id, actor, to, allowed...)
}

// revert returns a processing record to pending, also after Close.
func (t *Tracker) revert(id, actor string) error {
	_, err := t.move(false, id, actor, models.StatusPending, models.StatusProcessing)
	return err
}

func (t *Tracker) move(open bool, id, actor string, to models.SettlementStatus, allowed ...models.SettlementStatus) (models.SettlementRecord, error) {
	t.mu.Lock()
	if open && t.isClosed() {
		t.mu.Unlock()
		return models.SettlementRecord{}, fmt.Errorf("%w: %s", ErrTrackerClosed, id)
	}
	i, err := t.index(id)
	if err != nil {
		t.mu.Unlock()
		return models.SettlementRecord{}, err
	}

	rec := &t.records[i]
	from := rec.Status
	ok := false
	for _, s := range allowed {
		if from == s {
			ok = true
			break
		}
	}
	if !ok {
		t.mu.Unlock()
		if from == models.StatusProcessing {
			return models.SettlementRecord{}, fmt.Errorf("%w: %s", ErrAlreadyProcessing, id)
		}
		return models.SettlementRecord{}, fmt.Errorf("%w: %s is %s, cannot become %s", ErrInvalidTransition, id, from, to)
	}

	rec.Status = to
	rec.UpdatedAt = t.now().Unix()
	rec.UpdatedBy = actor
	snapshot := *rec
	t.mu.Unlock()

	for _, o := range t.observers {
		o.SettlementTransition(snapshot, from)
	}
	return snapshot, nil
}

// MarkPaid marks a pending record as paid after the confirmation delay.
//
// The record is processing while MarkPaid waits; concurrent calls for it fail
// with ErrAlreadyProcessing. If ctx ends during the wait the record returns
// to pending and ctx.Err() is returned; if the tracker is closed instead,
// ErrTrackerClosed is.
func (t *Tracker) MarkPaid(ctx context.Context, id, actor string) (models.SettlementRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.SettlementRecord{}, err
	}
	if _, err := t.transition(id, actor, models.StatusProcessing, models.StatusPending); err != nil {
		return models.SettlementRecord{}, err
	}

	err := t.wait(ctx, id)
	if err == nil {
		var rec models.SettlementRecord
		// Paid only if the tracker is still open at this instant.
		if rec, err = t.transition(id, actor, models.StatusPaid, models.StatusProcessing); err == nil {
			return rec, nil
		}
	}
	if rerr := t.revert(id, actor); rerr != nil {
		return models.SettlementRecord{}, errors.Join(err, rerr)
	}
	return models.SettlementRecord{}, err
}

func (t *Tracker) wait(ctx context.Context, id string) error {
	if t.delay > 0 {
		timer := time.NewTimer(t.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.closed:
			return fmt.Errorf("%w: %s", ErrTrackerClosed, id)
		case <-timer.C:
		}
	}
	// A cancellation racing the timer still wins.
	return ctx.Err()
}

// Undo reverts a paid record to pending.
func (t *Tracker) Undo(id, actor string) (models.SettlementRecord, error) {
	return t.transition(id, actor, models.StatusPending, models.StatusPaid)
}

// Cancel marks a pending record as undone without paying it.
func (t *Tracker) Cancel(id, actor string) (models.SettlementRecord, error) {
	return t.transition(id, actor, models.StatusUndone, models.StatusPending)
}
