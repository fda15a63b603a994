package ledger

import (
	"context"
)

// Watch re-plans the group once immediately and again after every change to
// its expenses or members, passing each result to fn. Each firing is a full
// recomputation. Changes that arrive while a recomputation is running are
// folded into a single follow-up run.
//
// Watch blocks until ctx ends, then unsubscribes and returns ctx.Err().
func (e *Engine) Watch(ctx context.Context, groupID string, fn func(*Plan, error)) error {
	changed := make(chan struct{}, 1)
	trigger := func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	cancel := e.cfg.Source.Subscribe(groupID, trigger)
	defer cancel()

	trigger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
			plan, err := e.Plan(ctx, groupID)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fn(plan, err)
		}
	}
}
