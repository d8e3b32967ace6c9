package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/roomboard/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Backend persists whole JSON documents keyed by their root
// ("hospitals/{id}", "users/{id}", "sections/{hospitalId}") and reports changes.
type Backend interface {
	// Load returns the raw document at root, or nil when none exists.
	Load(ctx context.Context, root string) ([]byte, error)
	// Mutate atomically replaces the document at root with fn(current).
	// A nil result deletes the document.
	Mutate(ctx context.Context, root string, fn func(current []byte) ([]byte, error)) error
	// Watch signals every change to the document at root until ctx is done.
	Watch(ctx context.Context, root string) (<-chan WatchEvent, error)
	Close() error
}

// WatchEvent is one change notification. A non-nil Err reports a transient
// watch failure; the watch keeps running.
type WatchEvent struct {
	Err error
}

// errUnmatched aborts a conditional mutation without writing
var errUnmatched = errors.New("stored value does not match")

// DocumentStore implements Store on top of a Backend.
type DocumentStore struct {
	backend Backend
}

// NewDocumentStore creates a store backed by backend
func NewDocumentStore(backend Backend) *DocumentStore {
	return &DocumentStore{backend: backend}
}

var _ Store = (*DocumentStore)(nil)

func (s *DocumentStore) ready() error {
	if s == nil || s.backend == nil {
		return models.ErrNotInitialized
	}
	return nil
}

// Get returns the value at path
func (s *DocumentStore) Get(ctx context.Context, path string) (any, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	root, segs, err := splitRoot(path)
	if err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, root)
	if err != nil {
		return nil, s.fail("get", path, err)
	}
	return getAt(doc, segs), nil
}

// Set replaces the subtree at path
func (s *DocumentStore) Set(ctx context.Context, path string, value any) error {
	if err := s.ready(); err != nil {
		return err
	}
	v, err := ToValue(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "set", path, func(doc any, segs []string) (any, error) {
		return setAt(doc, segs, v), nil
	})
}

// Update merges fields into the subtree at path
func (s *DocumentStore) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := s.ready(); err != nil {
		return err
	}
	changes, err := fieldChanges(path, fields)
	if err != nil {
		return err
	}
	return s.mutate(ctx, "update", path, func(doc any, segs []string) (any, error) {
		return changes.apply(doc, segs), nil
	})
}

// UpdateIf merges fields into the subtree at path only while match accepts
// the value stored there. The check and the merge happen in one mutation.
// It reports whether the merge was applied.
func (s *DocumentStore) UpdateIf(ctx context.Context, path string, match func(current any) bool, fields map[string]any) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}
	changes, err := fieldChanges(path, fields)
	if err != nil {
		return false, err
	}
	err = s.mutate(ctx, "update", path, func(doc any, segs []string) (any, error) {
		if !match(getAt(doc, segs)) {
			return nil, errUnmatched
		}
		return changes.apply(doc, segs), nil
	})
	if errors.Is(err, errUnmatched) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type fieldChange struct {
	segs  []string
	value any
}

type fieldChangeList []fieldChange

func fieldChanges(path string, fields map[string]any) (fieldChangeList, error) {
	changes := make(fieldChangeList, 0, len(fields))
	for key, value := range fields {
		keySegs := SplitPath(key)
		if len(keySegs) == 0 {
			return nil, fmt.Errorf("update %s: empty field key", path)
		}
		v, err := ToValue(value)
		if err != nil {
			return nil, err
		}
		changes = append(changes, fieldChange{segs: keySegs, value: v})
	}
	return changes, nil
}

func (c fieldChangeList) apply(doc any, segs []string) any {
	for _, change := range c {
		full := append(append([]string(nil), segs...), change.segs...)
		doc = setAt(doc, full, change.value)
	}
	return doc
}

// Remove deletes the subtree at path
func (s *DocumentStore) Remove(ctx context.Context, path string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.mutate(ctx, "remove", path, func(doc any, segs []string) (any, error) {
		return setAt(doc, segs, nil), nil
	})
}

// Subscribe watches path. The first delivery is the current value; later
// deliveries only happen when the value at path actually changed.
func (s *DocumentStore) Subscribe(ctx context.Context, path string, onChange func(value any), onError func(err error)) (*Subscription, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	root, segs, err := splitRoot(path)
	if err != nil {
		return nil, err
	}
	if onError == nil {
		onError = func(error) {}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	events, err := s.backend.Watch(watchCtx, root)
	if err != nil {
		cancel()
		return nil, s.fail("subscribe", path, err)
	}
	sub := newSubscription(path, cancel)

	go func() {
		defer cancel()

		var last any
		delivered := false
		refresh := func() {
			doc, err := s.load(watchCtx, root)
			if err != nil {
				if watchCtx.Err() == nil && sub.active() {
					onError(s.fail("subscribe", path, err))
				}
				return
			}
			value := getAt(doc, segs)
			if delivered && sameValue(last, value) {
				return
			}
			if !sub.active() {
				return
			}
			last, delivered = value, true
			onChange(value)
		}

		refresh()
		for {
			select {
			case <-watchCtx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Err != nil {
					log.Warn().Err(ev.Err).Str("path", path).Msg("watch error")
					if sub.active() {
						onError(&OperationError{Op: "watch", Path: path, Err: ev.Err})
					}
					continue
				}
				refresh()
			}
		}
	}()

	return sub, nil
}

// Close releases the backend
func (s *DocumentStore) Close() error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.backend.Close()
}

func (s *DocumentStore) load(ctx context.Context, root string) (any, error) {
	raw, err := s.backend.Load(ctx, root)
	if err != nil {
		return nil, err
	}
	return decodeDocument(raw)
}

func (s *DocumentStore) mutate(ctx context.Context, op, path string, apply func(doc any, segs []string) (any, error)) error {
	root, segs, err := splitRoot(path)
	if err != nil {
		return err
	}
	err = s.backend.Mutate(ctx, root, func(current []byte) ([]byte, error) {
		doc, err := decodeDocument(current)
		if err != nil {
			return nil, err
		}
		next, err := apply(doc, segs)
		if err != nil {
			return nil, err
		}
		return encodeDocument(next)
	})
	if errors.Is(err, errUnmatched) {
		return err
	}
	if err != nil {
		return s.fail(op, path, err)
	}
	return nil
}

func (s *DocumentStore) fail(op, path string, err error) error {
	log.Error().Err(err).Str("op", op).Str("path", path).Msg("store operation failed")
	return &OperationError{Op: op, Path: path, Err: err}
}
