package database

import (
	"context"
	"errors"
	"sync"
)

// Selector resolves selections to handles and keeps one handle per key for
// its lifetime. A session owns one Selector and closes it on reset.
type Selector struct {
	mu      sync.Mutex
	opts    Options
	handles map[string]*Handle
}

// NewSelector creates an empty selector.
func NewSelector(opts Options) *Selector {
	return &Selector{
		opts:    opts,
		handles: make(map[string]*Handle),
	}
}

// Resolve returns the cached handle for sel, opening it on first use.
// Failures are not cached.
func (s *Selector) Resolve(ctx context.Context, sel Selection) (*Handle, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := sel.Key()
	if h, ok := s.handles[key]; ok {
		return h, nil
	}

	h, err := Open(ctx, sel, s.opts)
	if err != nil {
		return nil, err
	}
	s.handles[key] = h
	return h, nil
}

// Len reports how many handles are cached.
func (s *Selector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close closes every cached handle and empties the cache.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for key, h := range s.handles {
		if err := h.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.handles, key)
	}
	return errors.Join(errs...)
}
