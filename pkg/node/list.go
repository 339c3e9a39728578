//go:build go1.21

package node

import "github.com/catlinz/catcore-memory/pkg/xunsafe/layout"

// listNode is one singly-linked node of a [List].
type listNode[T any] struct {
	value T
	next  *listNode[T]
}

// List is a minimal singly-linked list built entirely on the
// [Allocated] embedding contract: every node comes from the container's
// own allocator instead of the Go heap.
//
// List deliberately does not auto-fall-back to heap allocation when its
// allocator is exhausted: Append reports failure and the list is left
// unchanged, which is the deterministic choice scenario S6 calls for.
type List[T any] struct {
	Allocated
	head, tail *listNode[T]
	length     int
}

// NewList constructs an empty List backed by an owned pool of n node-sized
// blocks.
func NewList[T any](n int) *List[T] {
	l := &List[T]{}
	l.Init(l.IsEmpty)
	l.CreateAllocator(n, layout.Of[listNode[T]]())
	return l
}

// IsEmpty reports whether the list holds no elements.
func (l *List[T]) IsEmpty() bool { return l.length == 0 }

// Len returns the number of elements currently held.
func (l *List[T]) Len() int { return l.length }

// Append adds value to the end of the list. It returns false, leaving the
// list unchanged, if the backing allocator is exhausted.
func (l *List[T]) Append(value T) bool {
	n := allocNode[listNode[T]](&l.Allocated)
	if n == nil {
		return false
	}
	n.value = value
	n.next = nil

	if l.tail == nil {
		l.head = n
		l.tail = n
	} else {
		l.tail.next = n
		l.tail = n
	}
	l.length++
	return true
}

// Each calls fn for every element in order.
func (l *List[T]) Each(fn func(T)) {
	for n := l.head; n != nil; n = n.next {
		fn(n.value)
	}
}

// Clear releases every node back to the allocator, resetting the list (and,
// since nodes are the allocator's only blocks, the allocator itself) to a
// fully empty state.
func (l *List[T]) Clear() {
	for n := l.head; n != nil; {
		next := n.next
		freeNode(&l.Allocated, n)
		n = next
	}
	l.head, l.tail, l.length = nil, nil, 0
}
