package valueindex

import "sync"

// Mutator is the write side of an index.
type Mutator[T any] interface {
	Add(id uint32, value T) error
	Remove(id uint32, value T) error
}

// Buffer sits in front of an index and absorbs a removal that is immediately
// followed by an add of the same (id, value).
//
// Updating an indexed property is modeled as removing the old value and adding
// the new one. When both are equal the pair cancels out and the index (and its
// version stamp) stays untouched.
//
// Add and Remove are called by the single writer. Dequeue is called by readers
// before they query the index. All methods take the buffer mutex, so Dequeue
// may race with the writer path.
type Buffer[T comparable] struct {
	target Mutator[T]

	mu      sync.Mutex
	pending bool
	id      uint32
	value   T
}

// NewBuffer creates a write coalescing buffer in front of target.
func NewBuffer[T comparable](target Mutator[T]) *Buffer[T] {
	return &Buffer[T]{target: target}
}

// Add forwards (id, value) to the index unless it cancels the pending removal.
func (b *Buffer[T]) Add(id uint32, value T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending && b.id == id && b.value == value {
		b.pending = false
		return nil
	}
	if err := b.flush(); err != nil {
		return err
	}
	return b.target.Add(id, value)
}

// Remove holds (id, value) back as the pending removal after flushing any
// earlier one.
func (b *Buffer[T]) Remove(id uint32, value T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flush(); err != nil {
		return err
	}
	b.pending, b.id, b.value = true, id, value
	return nil
}

// Dequeue forces the pending removal through to the index.
func (b *Buffer[T]) Dequeue() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flush()
}

// Pending returns the held back removal, if any.
func (b *Buffer[T]) Pending() (id uint32, value T, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id, b.value, b.pending
}

func (b *Buffer[T]) flush() error {
	if !b.pending {
		return nil
	}
	b.pending = false
	return b.target.Remove(b.id, b.value)
}
