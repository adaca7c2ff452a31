package events

import "sync"

// List keeps items in arrival order and merges updates by key.
type List[K comparable, T any] struct {
	key   func(T) K
	match func(old, update T) bool
	merge func(old, update T) T

	mu    sync.Mutex
	items []T
}

func NewList[K comparable, T any](key func(T) K) *List[K, T] {
	return &List[K, T]{key: key}
}

// WithMatch makes Upsert find the existing item with match instead of by
// key. Call it before the list is shared.
func (l *List[K, T]) WithMatch(match func(old, update T) bool) *List[K, T] {
	l.match = match
	return l
}

// WithMerge makes Upsert store merge(old, update) instead of update.
func (l *List[K, T]) WithMerge(merge func(old, update T) T) *List[K, T] {
	l.merge = merge
	return l
}

// Upsert replaces the matching item in place, or appends it. It returns the
// item's index and whether it was appended.
func (l *List[K, T]) Upsert(item T) (int, bool) {
	k := l.key(item)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		same := false
		if l.match != nil {
			same = l.match(l.items[i], item)
		} else {
			same = l.key(l.items[i]) == k
		}
		if !same {
			continue
		}
		if l.merge != nil {
			item = l.merge(l.items[i], item)
		}
		l.items[i] = item
		return i, false
	}
	l.items = append(l.items, item)
	return len(l.items) - 1, true
}

func (l *List[K, T]) Get(k K) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range l.items {
		if l.key(it) == k {
			return it, true
		}
	}
	var zero T
	return zero, false
}

func (l *List[K, T]) At(i int) (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, false
	}
	return l.items[i], true
}

// Items returns a copy of the list.
func (l *List[K, T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]T(nil), l.items...)
}

func (l *List[K, T]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}
