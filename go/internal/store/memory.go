package store

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBackend keeps documents in process. Used for single-node runs and tests.
type MemoryBackend struct {
	mu       sync.RWMutex
	docs     map[string][]byte
	watchers map[string]map[chan WatchEvent]struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		docs:     make(map[string][]byte),
		watchers: make(map[string]map[chan WatchEvent]struct{}),
	}
}

// NewMemoryStore is a DocumentStore over a fresh MemoryBackend
func NewMemoryStore() *DocumentStore {
	return NewDocumentStore(NewMemoryBackend())
}

func (b *MemoryBackend) Load(ctx context.Context, root string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.docs[root], nil
}

func (b *MemoryBackend) Mutate(ctx context.Context, root string, fn func(current []byte) ([]byte, error)) error {
	b.mu.Lock()
	current := b.docs[root]
	next, err := fn(current)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	if next == nil {
		delete(b.docs, root)
	} else {
		b.docs[root] = next
	}
	changed := !bytes.Equal(current, next)
	var targets []chan WatchEvent
	if changed {
		for ch := range b.watchers[root] {
			targets = append(targets, ch)
		}
	}
	b.mu.Unlock()

	for _, ch := range targets {
		// buffered by one; a pending signal already covers this change
		select {
		case ch <- WatchEvent{}:
		default:
		}
	}
	return nil
}

func (b *MemoryBackend) Watch(ctx context.Context, root string) (<-chan WatchEvent, error) {
	ch := make(chan WatchEvent, 1)

	b.mu.Lock()
	if b.watchers[root] == nil {
		b.watchers[root] = make(map[chan WatchEvent]struct{})
	}
	b.watchers[root][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers[root], ch)
		if len(b.watchers[root]) == 0 {
			delete(b.watchers, root)
		}
		b.mu.Unlock()
	}()

	return ch, nil
}

func (b *MemoryBackend) Close() error {
	return nil
}

// Watchers is the number of open watches across all documents
func (b *MemoryBackend) Watchers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, set := range b.watchers {
		n += len(set)
	}
	return n
}

// Documents returns a copy of every stored document keyed by root
func (b *MemoryBackend) Documents() map[string][]byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string][]byte, len(b.docs))
	for root, doc := range b.docs {
		out[root] = bytes.Clone(doc)
	}
	return out
}
