package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/mcdev12/roomboard/go/internal/models"
)

// Store is the subscribable key-path tree every component reads and writes.
// Values are JSON-shaped: map[string]any, []any, string, float64, bool or nil.
type Store interface {
	// Get returns the value at path, or nil when nothing is stored there.
	Get(ctx context.Context, path string) (any, error)
	// Set replaces the whole subtree at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the subtree at path, leaving siblings untouched.
	// Keys may contain "/" to address nested leaves; nil values delete.
	Update(ctx context.Context, path string, fields map[string]any) error
	// UpdateIf is Update guarded by match, which sees the value currently at
	// path. Nothing is written when match rejects it.
	UpdateIf(ctx context.Context, path string, match func(current any) bool, fields map[string]any) (bool, error)
	Remove(ctx context.Context, path string) error
	// Subscribe delivers the current value at path and then every change to it.
	// Errors go to onError and never end the subscription.
	Subscribe(ctx context.Context, path string, onChange func(value any), onError func(err error)) (*Subscription, error)
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	path   string
	cancel context.CancelFunc
	closed atomic.Bool
}

func newSubscription(path string, cancel context.CancelFunc) *Subscription {
	return &Subscription{path: path, cancel: cancel}
}

func (s *Subscription) Path() string { return s.path }

// Unsubscribe stops deliveries. It is safe to call more than once and from
// inside a callback. A callback already running when it is called may finish.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	if s.closed.CompareAndSwap(false, true) {
		s.cancel()
	}
}

func (s *Subscription) active() bool {
	return !s.closed.Load()
}

// Group collects release functions and runs them together once.
type Group struct {
	mu       sync.Mutex
	releases []func()
	released bool
}

// Add registers release. If the group was already released it runs immediately.
func (g *Group) Add(release func()) {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		release()
		return
	}
	g.releases = append(g.releases, release)
	g.mu.Unlock()
}

// AddSubscription is shorthand for Add(sub.Unsubscribe)
func (g *Group) AddSubscription(sub *Subscription) {
	g.Add(sub.Unsubscribe)
}

// Release runs every registered release in reverse order.
func (g *Group) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	releases := g.releases
	g.releases = nil
	g.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

// OperationError wraps a backend failure on a store call.
type OperationError struct {
	Op   string
	Path string
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

func (e *OperationError) Is(target error) bool {
	return target == models.ErrStoreOperationFailed
}

// Exists reports whether anything is stored at path
func Exists(ctx context.Context, s Store, path string) (bool, error) {
	v, err := s.Get(ctx, path)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}
