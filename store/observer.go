package store

import "sync"

// Listener receives a state snapshot after every effective mutation.
type Listener[S any] func(S)

// subject fans snapshots out to registered listeners. Listeners are called
// outside the owning store's lock, in registration order.
type subject[S any] struct {
	mu        sync.Mutex
	nextID    uint64
	order     []uint64
	listeners map[uint64]Listener[S]
}

func (s *subject[S]) subscribe(l Listener[S]) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listeners == nil {
		s.listeners = make(map[uint64]Listener[S])
	}
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *subject[S]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listeners, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *subject[S]) notify(state S) {
	s.mu.Lock()
	targets := make([]Listener[S], 0, len(s.order))
	for _, id := range s.order {
		targets = append(targets, s.listeners[id])
	}
	s.mu.Unlock()

	for _, l := range targets {
		l(state)
	}
}

func (s *subject[S]) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
