// Package state owns the in-memory collections and their persistence contract.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrDuplicateID is returned when an entry id already exists in a collection.
var ErrDuplicateID = errors.New("duplicate id")

// Backend persists serialized collections under named slots.
type Backend interface {
	ReadSlot(ctx context.Context, key string) ([]byte, bool, error)
	WriteSlots(ctx context.Context, slots map[string][]byte) error
}

// Collection is an ordered, newest-first list of entries with unique ids.
// Every mutation is flushed to the backend before it returns; a failed
// flush restores the previous contents.
type Collection[T any] struct {
	key     string
	backend Backend
	idOf    func(*T) *string
	items   []T
	dirty   bool
}

func newCollection[T any](key string, backend Backend, idOf func(*T) *string) *Collection[T] {
	return &Collection[T]{key: key, backend: backend, idOf: idOf, items: []T{}}
}

// Add assigns an id when absent, prepends the entry and flushes.
func (c *Collection[T]) Add(ctx context.Context, entry T) (T, error) {
	id := c.idOf(&entry)
	if *id == "" {
		*id = c.freshID()
	} else if c.has(*id) {
		var zero T
		return zero, fmt.Errorf("%w: %s", ErrDuplicateID, *id)
	}
	next := make([]T, 0, len(c.items)+1)
	next = append(next, entry)
	next = append(next, c.items...)
	if err := c.commit(ctx, next); err != nil {
		var zero T
		return zero, err
	}
	return entry, nil
}

// ReplaceAll swaps the whole collection verbatim and flushes.
func (c *Collection[T]) ReplaceAll(ctx context.Context, entries []T) error {
	next, err := c.prepare(entries)
	if err != nil {
		return err
	}
	return c.commit(ctx, next)
}

// Clear empties the collection and flushes.
func (c *Collection[T]) Clear(ctx context.Context) error {
	return c.commit(ctx, []T{})
}

// LoadAll returns a copy of the entries, newest first.
func (c *Collection[T]) LoadAll() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the entry count.
func (c *Collection[T]) Len() int {
	return len(c.items)
}

func (c *Collection[T]) commit(ctx context.Context, next []T) error {
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", c.key, err)
	}
	if err := c.backend.WriteSlots(ctx, map[string][]byte{c.key: raw}); err != nil {
		return fmt.Errorf("failed to flush %s: %w", c.key, err)
	}
	c.items = next
	c.dirty = true
	return nil
}

// prepare copies entries, filling missing ids and rejecting repeats.
func (c *Collection[T]) prepare(entries []T) ([]T, error) {
	next := make([]T, len(entries))
	copy(next, entries)
	seen := make(map[string]struct{}, len(next))
	for i := range next {
		id := c.idOf(&next[i])
		if *id == "" {
			*id = c.freshID()
		}
		if _, ok := seen[*id]; ok {
			return nil, fmt.Errorf("%w in %s: %s", ErrDuplicateID, c.key, *id)
		}
		seen[*id] = struct{}{}
	}
	return next, nil
}

func (c *Collection[T]) load(raw []byte) error {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	next, err := c.prepare(items)
	if err != nil {
		return err
	}
	c.items = next
	return nil
}

func (c *Collection[T]) has(id string) bool {
	for i := range c.items {
		if *c.idOf(&c.items[i]) == id {
			return true
		}
	}
	return false
}

func (c *Collection[T]) freshID() string {
	for {
		id := uuid.NewString()
		if !c.has(id) {
			return id
		}
	}
}
