package chart

import "sync"

// Slot is the session-scoped place where a tool leaves the figure it
// produced for the turn that is being processed.
type Slot struct {
	mu  sync.Mutex
	fig *Figure
}

// Put stores f, replacing any figure already there.
func (s *Slot) Put(f *Figure) {
	s.mu.Lock()
	s.fig = f
	s.mu.Unlock()
}

// Take returns the stored figure, if any, and empties the slot.
func (s *Slot) Take() *Figure {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.fig
	s.fig = nil
	return f
}

// Clear empties the slot.
func (s *Slot) Clear() {
	s.Put(nil)
}
