// Package notify delivers account snapshots to registered listeners. The
// consumer owns the subscription lifecycle: subscribe on mount, call the
// returned handle on teardown. Snapshots are whole-state, so delivering the
// same snapshot twice is harmless for a well-behaved consumer.
package notify

import (
	"sync"

	"github.com/VoiceForge-io/voiceforge/internal/models"
)

// UnsubscribeFunc removes a subscription when called. Safe to call more
// than once.
type UnsubscribeFunc func()

// Registry manages per-user snapshot subscriptions
type Registry struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(models.Snapshot)
}

// NewRegistry creates an empty subscription registry
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[string]map[int]func(models.Snapshot)),
	}
}

// Subscribe registers onChange for account changes of uid
func (r *Registry) Subscribe(uid string, onChange func(models.Snapshot)) UnsubscribeFunc {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.subs[uid] == nil {
		r.subs[uid] = make(map[int]func(models.Snapshot))
	}
	id := r.nextID
	r.nextID++
	r.subs[uid][id] = onChange

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.subs[uid], id)
			if len(r.subs[uid]) == 0 {
				delete(r.subs, uid)
			}
		})
	}
}

// Publish delivers a snapshot to every subscriber of its uid
func (r *Registry) Publish(snapshot models.Snapshot) {
	r.mu.RLock()
	listeners := make([]func(models.Snapshot), 0, len(r.subs[snapshot.UID]))
	for _, fn := range r.subs[snapshot.UID] {
		listeners = append(listeners, fn)
	}
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// SubscriberCount returns the number of active subscriptions for uid
func (r *Registry) SubscriberCount(uid string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[uid])
}
