package storage

import (
	"sync"

	"pokemon-battle-server/game"
)

// Broker fans committed states out to in-process subscribers.
// Each subscription remembers the last revision it delivered and drops
// anything older, so a subscriber never observes the state going backwards
// even when publishes race.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*subscription
}

type subscription struct {
	mu           sync.Mutex
	lastRevision int64
	onChange     func(*game.GameState)
}

// NewBroker creates an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[uint64]*subscription)}
}

// Subscribe registers onChange for session id and returns an unsubscribe func.
func (b *Broker) Subscribe(id string, onChange func(*game.GameState)) func() {
	b.mu.Lock()
	b.nextID++
	subID := b.nextID
	if b.subs[id] == nil {
		b.subs[id] = make(map[uint64]*subscription)
	}
	b.subs[id][subID] = &subscription{onChange: onChange}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[id], subID)
			if len(b.subs[id]) == 0 {
				delete(b.subs, id)
			}
		})
	}
}

// Publish delivers state to every subscriber of id. Each subscriber gets its own copy.
func (b *Broker) Publish(id string, state *game.GameState) {
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs[id]))
	for _, s := range b.subs[id] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		s.deliver(state)
	}
}

// Subscribers returns the number of live subscriptions for id.
func (b *Broker) Subscribers(id string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[id])
}

func (s *subscription) deliver(state *game.GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.Revision <= s.lastRevision {
		return
	}
	s.lastRevision = state.Revision
	s.onChange(state.Clone())
}
