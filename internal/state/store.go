// Package state holds the agent's single source of truth and publishes
// snapshots of it to subscribers.
package state

import (
	"sync"

	"soulchat-agent/internal/domain/auth"
	"soulchat-agent/internal/domain/notification"
)

// State is everything UI bindings render from.
type State struct {
	Session   auth.Snapshot               `json:"session"`
	Counters  notification.UnreadCounters `json:"counters"`
	Recent    []notification.Event        `json:"recent"`
	Connected bool                        `json:"connected"`
	Version   uint64                      `json:"version"`
}

func (s State) clone() State {
	out := s
	if s.Recent != nil {
		out.Recent = make([]notification.Event, len(s.Recent))
		for i, e := range s.Recent {
			out.Recent[i] = e.Clone()
		}
	}
	if s.Session.User != nil {
		u := *s.Session.User
		out.Session.User = &u
	}
	return out
}

// Store serialises every mutation under one lock and fans the result out.
// Subscribers receive the latest snapshot; intermediate ones may be skipped
// when a subscriber is slow.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan State
	nextID int
}

func NewStore() *Store {
	return &Store{
		state: State{Session: auth.Snapshot{Status: auth.StatusLoading}},
		subs:  make(map[int]chan State),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Update applies fn to the state atomically and publishes the result.
func (s *Store) Update(fn func(*State)) State {
	s.mu.Lock()
	fn(&s.state)
	s.state.Version++
	snap := s.state.clone()
	for _, ch := range s.subs {
		publish(ch, snap.clone())
	}
	s.mu.Unlock()
	return snap
}

// Subscribe returns a channel that receives the current state immediately and
// every later state. Call the returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan State, 1)
	ch <- s.state.clone()
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// publish replaces any unread snapshot with the newer one.
func publish(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
