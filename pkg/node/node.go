//go:build go1.21

// Package node defines the small contract that lets a fixed-node
// container — the kind of thing ObjList or ObjMap would be — embed one of
// the allocators in [github.com/catlinz/catcore-memory/pkg/memory] rather
// than going to the Go heap for every node.
//
// This package does not reimplement ObjList or ObjMap: it carries only
// the embedding contract those containers would consume, plus two small
// conformance fixtures ([List] and [Table]) that exercise it end to end.
package node

import (
	"unsafe"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memory"
	"github.com/catlinz/catcore-memory/pkg/xunsafe/layout"
)

// OID identifies a named object the way ObjMap's hash-name interface
// would: every name hashes to one 32-bit identifier via [CRC32Name], and
// objects are expected to expose that identifier as their own oid.
type OID = memory.OID

// Allocated is satisfied by any container that embeds an allocator using
// the node package's ownership contract: [SetAllocator] and
// [CreateAllocator] populate it, [Allocator] and [OwnsAllocator] inspect
// it.
type Allocated struct {
	alloc memory.Allocator
	owned bool
	empty func() bool
}

// Init wires isEmpty into a, so that [SetAllocator] can enforce
// "only when the container is empty". Containers embedding Allocated
// call this once, from their own constructor.
func (a *Allocated) Init(isEmpty func() bool) {
	a.empty = isEmpty
}

// SetAllocator installs an externally owned allocator. It fails — and is
// a no-op, with a diagnostic — unless the container is currently empty;
// the caller retains ownership and must free alloc itself.
func (a *Allocated) SetAllocator(alloc memory.Allocator) bool {
	if a.empty != nil && !a.empty() {
		debug.Log(nil, "set-allocator", "container is not empty, refusing to swap allocators")
		return false
	}
	if a.owned && a.alloc != nil {
		a.alloc.Free()
	}
	a.alloc = alloc
	a.owned = false
	return true
}

// CreateAllocator builds a [memory.Pool] sized for n nodes of layout lay,
// installs it, and marks the container as the owner: Release will free it.
// Fails under the same empty-container rule as SetAllocator.
func (a *Allocated) CreateAllocator(n int, lay layout.Layout) bool {
	if a.empty != nil && !a.empty() {
		debug.Log(nil, "create-allocator", "container is not empty, refusing to replace allocators")
		return false
	}
	if a.owned && a.alloc != nil {
		a.alloc.Free()
	}
	a.alloc = memory.NewPool(lay.Size, n, lay.Align)
	a.owned = true
	return true
}

// Allocator returns the allocator currently backing this container, or
// nil if none has been installed.
func (a *Allocated) Allocator() memory.Allocator { return a.alloc }

// OwnsAllocator reports whether the container is responsible for freeing
// its allocator (true after CreateAllocator, false after SetAllocator).
func (a *Allocated) OwnsAllocator() bool { return a.owned }

// Release frees the allocator if this container owns it, and clears the
// embedding regardless of ownership.
func (a *Allocated) Release() {
	if a.owned && a.alloc != nil {
		a.alloc.Free()
	}
	a.alloc = nil
	a.owned = false
}

// allocNode places a single T-sized node in a.alloc, returning nil on
// exhaustion.
func allocNode[T any](a *Allocated) *T {
	if a.alloc == nil {
		return nil
	}
	lay := layout.Of[T]()
	p := a.alloc.AllocAligned(lay.Size, lay.Align)
	if p == nil {
		return nil
	}
	return (*T)(p)
}

// freeNode returns a single node to a.alloc.
func freeNode[T any](a *Allocated, p *T) {
	if a.alloc == nil || p == nil {
		return
	}
	a.alloc.Dealloc(unsafe.Pointer(p))
}
