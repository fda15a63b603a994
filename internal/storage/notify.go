package storage

import "sync"

// Broadcaster fans group change notifications out to subscribers.
// Store implementations embed one and call Notify after each committed write.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func()
}

// Subscribe registers fn for groupID and returns its cancel func.
func (b *Broadcaster) Subscribe(groupID string, fn func()) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[string]map[int]func())
	}
	if b.subs[groupID] == nil {
		b.subs[groupID] = make(map[int]func())
	}
	id := b.nextID
	b.nextID++
	b.subs[groupID][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[groupID], id)
			if len(b.subs[groupID]) == 0 {
				delete(b.subs, groupID)
			}
		})
	}
}

// Notify calls every subscriber of groupID. Callbacks run outside the lock,
// so they may subscribe or unsubscribe.
func (b *Broadcaster) Notify(groupID string) {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.subs[groupID]))
	for _, fn := range b.subs[groupID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
