package surface

import "sync"

// Listeners is a concurrency-safe set of callbacks for one event kind.
type Listeners[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	fns    map[uint64]func(T)
}

// Add registers fn and returns a func that removes it. The remover is safe to call repeatedly.
func (l *Listeners[T]) Add(fn func(T)) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fns == nil {
		l.fns = make(map[uint64]func(T))
	}
	id := l.nextID
	l.nextID++
	l.fns[id] = fn

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

// Emit calls every registered listener with v. Listeners run outside the lock, so they may
// add or remove listeners.
func (l *Listeners[T]) Emit(v T) {
	l.mu.RLock()
	fns := make([]func(T), 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Len returns the number of registered listeners.
func (l *Listeners[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fns)
}

// Signals adapts a Listeners[struct{}] to the no-argument callbacks used for navigation.
type Signals struct {
	listeners Listeners[struct{}]
}

// Add registers fn and returns its remover.
func (s *Signals) Add(fn func()) (remove func()) {
	return s.listeners.Add(func(struct{}) { fn() })
}

// Emit calls every registered callback.
func (s *Signals) Emit() {
	s.listeners.Emit(struct{}{})
}

// Len returns the number of registered callbacks.
func (s *Signals) Len() int {
	return s.listeners.Len()
}
