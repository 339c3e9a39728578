//go:build go1.21

// Package memory implements the fixed-purpose allocator family that backs
// the rest of the foundation library: [Pool], [Stack], [Chunk] and
// [DynamicChunk], all reachable through the single polymorphic [Allocator]
// contract, and managed for their whole lifetime by a process-wide
// [Registry].
//
// # Design
//
// Each allocator owns one (or, for DynamicChunk, several) raw memory
// region obtained from the Go heap and never returns it until Free. Inside
// that region, Pool, Chunk and DynamicChunk thread a classic intrusive
// free list through the free blocks themselves: the first pointer-sized
// word of a free block stores the address of the next free block, and the
// chain terminates in a nil sentinel. Stack instead grows a bump pointer
// up from the bottom of its region and a marker stack down from the top,
// meeting somewhere in the middle.
//
// None of the four allocators are safe for concurrent use; serializing
// access is the caller's responsibility. None of them run destructors for
// the caller — [Dealloc] only returns memory to the free list or bump
// pointer, it never inspects what was stored there.
//
// # Capability matrix
//
//	Kind          Alloc()  AllocAligned  Dealloc(p)  Unwind()  Reset  Free
//	Pool          yes      alias         yes         no        yes    terminal
//	Stack         no       yes           no          yes       yes    terminal
//	Chunk         no       yes           yes         no        yes    terminal
//	DynamicChunk  no       yes           yes(routed) no        yes    recoverable
//
// Calling an unsupported operation is never a panic: it is reported on the
// diagnostic channel ([github.com/catlinz/catcore-memory/internal/debug])
// and the call is a no-op, returning the nil sentinel for allocating calls.
package memory

import (
	"unsafe"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/xunsafe/layout"
)

// OID is the opaque identifier a [Registry] assigns to an allocator it
// owns. The zero OID never names a live allocator.
type OID uint32

// Allocator is the capability set every allocator kind in this package
// implements. Kinds that do not support a given operation report it on
// the diagnostic channel and treat the call as a no-op.
type Allocator interface {
	// Alloc returns a block sized for this allocator's fixed block size.
	// Only [Pool] supports this; others warn and return nil.
	Alloc() unsafe.Pointer

	// AllocAligned returns size bytes aligned to align (0 means "no
	// explicit alignment"). Pool ignores size/align and behaves like
	// Alloc. Returns nil on exhaustion or on an invalid-configuration
	// allocator.
	AllocAligned(size, align int) unsafe.Pointer

	// Dealloc returns a previously allocated block to this allocator.
	// Stack does not support this; it warns and is a no-op.
	Dealloc(p unsafe.Pointer)

	// Unwind is the marker-less deallocation operation: only [Stack]
	// supports it (rewind to the last marker, or to the base if there is
	// none). Other kinds warn and are a no-op.
	Unwind()

	// Reset rebuilds this allocator's free state as if newly constructed.
	// A no-op, with a warning, once Free has made the allocator inert
	// (except for DynamicChunk, whose Free is recoverable).
	Reset()

	// Free releases the allocator's backing memory. For Pool, Stack and
	// Chunk this is terminal: every later operation warns and is a no-op.
	// For DynamicChunk it is recoverable: AddChunk/AllocAligned may be
	// used again afterward.
	Free()

	// OID returns the identifier a Registry tagged this allocator with,
	// or 0 if it was constructed directly.
	OID() OID
}

// New allocates storage sized and aligned for T from a, constructs value
// into it, and returns the typed pointer. Returns nil if a is exhausted
// or inert.
//
// This is the placement-construction entry point: it fuses AllocAligned
// with in-place initialization, mirroring the original library's
// `new (allocator) T(...)` operator.
func New[T any](a Allocator, value T) *T {
	lay := layout.Of[T]()

	p := a.AllocAligned(lay.Size, lay.Align)
	if p == nil {
		return nil
	}

	typed := (*T)(p)
	*typed = value

	return typed
}

// Free releases the storage a value of type T previously obtained from
// [New] occupies, via a.Dealloc. The caller must have already run any
// destructor-equivalent cleanup; Free never touches *p beyond handing the
// raw pointer back to a.
func Free[T any](a Allocator, p *T) {
	a.Dealloc(unsafe.Pointer(p))
}

// warnUnsupported reports that op is not supported by kind, on behalf of
// an Allocator method that has no meaningful implementation for that
// allocator kind. err is expected to be the result of a [debug.Unsupported]
// call made by the caller, so that the reported function name names the
// rejected method rather than this helper.
func warnUnsupported(kind string, oid OID, op string, err error) {
	debug.Log([]any{"oid=%d", oid}, op, "%s: %s", debug.Dict("unsupported", "kind", kind), err)
}
