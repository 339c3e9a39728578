//go:build go1.21

package node

import (
	"github.com/dolthub/maphash"

	"github.com/catlinz/catcore-memory/pkg/xunsafe/layout"
)

// tableNode is one chain link of a [Table] bucket.
type tableNode[K comparable, V any] struct {
	key   K
	value V
	next  *tableNode[K, V]
}

// Table is a minimal chained hash map, built on the [Allocated] embedding
// contract the same way [List] is: every bucket node comes from the
// container's own allocator.
//
// Table exists to give [github.com/dolthub/maphash] a second home besides
// the generic hash-map container the node-allocator contract was lifted
// from — its own bucket-index hashing is exactly the kind of
// name-to-identifier lookup the hash-name interface (§6) describes for
// ObjMap.
type Table[K comparable, V any] struct {
	Allocated
	hash    maphash.Hasher[K]
	buckets []*tableNode[K, V]
	length  int
}

// NewTable constructs a Table with the given bucket count, backed by an
// owned pool of n node-sized blocks.
func NewTable[K comparable, V any](buckets, n int) *Table[K, V] {
	if buckets <= 0 {
		buckets = 16
	}
	t := &Table[K, V]{
		hash:    maphash.NewHasher[K](),
		buckets: make([]*tableNode[K, V], buckets),
	}
	t.Init(t.IsEmpty)
	t.CreateAllocator(n, layout.Of[tableNode[K, V]]())
	return t
}

// IsEmpty reports whether the table holds no entries.
func (t *Table[K, V]) IsEmpty() bool { return t.length == 0 }

// Len returns the number of entries currently held.
func (t *Table[K, V]) Len() int { return t.length }

func (t *Table[K, V]) bucketOf(key K) int {
	return int(t.hash.Hash(key) % uint64(len(t.buckets)))
}

// Get returns the value stored under key, if any.
func (t *Table[K, V]) Get(key K) (V, bool) {
	for n := t.buckets[t.bucketOf(key)]; n != nil; n = n.next {
		if n.key == key {
			return n.value, true
		}
	}
	var zero V
	return zero, false
}

// Put inserts or updates the value stored under key. It returns false,
// leaving the table unchanged, if key is new and the backing allocator is
// exhausted.
func (t *Table[K, V]) Put(key K, value V) bool {
	b := t.bucketOf(key)
	for n := t.buckets[b]; n != nil; n = n.next {
		if n.key == key {
			n.value = value
			return true
		}
	}

	n := allocNode[tableNode[K, V]](&t.Allocated)
	if n == nil {
		return false
	}
	n.key, n.value = key, value
	n.next = t.buckets[b]
	t.buckets[b] = n
	t.length++
	return true
}

// Remove deletes the entry stored under name, if present, releasing its
// node back to the allocator.
func (t *Table[K, V]) Remove(name K) bool {
	b := t.bucketOf(name)
	var prev *tableNode[K, V]
	for n := t.buckets[b]; n != nil; n = n.next {
		if n.key == name {
			if prev == nil {
				t.buckets[b] = n.next
			} else {
				prev.next = n.next
			}
			freeNode(&t.Allocated, n)
			t.length--
			return true
		}
		prev = n
	}
	return false
}

// Clear releases every entry back to the allocator.
func (t *Table[K, V]) Clear() {
	for b, n := range t.buckets {
		for n != nil {
			next := n.next
			freeNode(&t.Allocated, n)
			n = next
		}
		t.buckets[b] = nil
	}
	t.length = 0
}
