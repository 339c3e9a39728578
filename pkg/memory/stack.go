//go:build go1.21

package memory

import (
	"unsafe"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memaddr"
	"github.com/catlinz/catcore-memory/pkg/xunsafe"
)

// Stack is a monotonic bump allocator over one contiguous region, with a
// LIFO stack of markers threaded downward from the top of the same
// region. Allocations grow next upward; markers grow marker downward; the
// two must never cross.
//
// Stack.Free is terminal. Stack is not safe for concurrent use.
type Stack struct {
	size int

	base    unsafe.Pointer     // backing allocation, or nil once freed
	next    memaddr.Addr[byte] // bump pointer
	marker  memaddr.Addr[byte] // top of the marker stack

	id OID
}

var _ Allocator = (*Stack)(nil)

// NewStack constructs a Stack over a freshly allocated region of size
// bytes.
func NewStack(size int) *Stack {
	s := &Stack{size: size}

	buf := make([]byte, size)
	s.base = unsafe.Pointer(unsafe.SliceData(buf))

	debug.Log(nil, "new-stack", "size=%d", size)
	s.Reset()

	return s
}

// Alloc is not supported by Stack: a size and alignment are always
// required. Use AllocAligned.
func (s *Stack) Alloc() unsafe.Pointer {
	warnUnsupported("Stack", s.id, "alloc", debug.Unsupported())
	return nil
}

// AllocAligned bumps next forward by size bytes, aligned to align (0
// means no explicit alignment), unless doing so would collide with the
// marker region, in which case it returns nil (capacity-exhausted).
func (s *Stack) AllocAligned(size, align int) unsafe.Pointer {
	aligned := s.next.AlignUp(max(align, 1))

	if aligned.Add(size).Int() > s.marker.Int() {
		debug.Log([]any{"oid=%d", s.id}, "alloc", "cannot allocate %d bytes, collides with marker region", size)
		return nil
	}

	s.next = aligned.Add(size)

	return unsafe.Pointer(aligned.Ptr())
}

// Dealloc is not supported by Stack: a specific pointer can never be
// freed, only markers can be rewound to. Use Unwind.
func (s *Stack) Dealloc(p unsafe.Pointer) {
	warnUnsupported("Stack", s.id, "dealloc", debug.Unsupported())
}

// Unwind deallocates back to the last marker, or to the base of the
// region if no marker was ever placed. A no-op if nothing has been
// allocated since construction or the last full rewind.
func (s *Stack) Unwind() {
	if s.base == nil {
		debug.Log([]any{"oid=%d", s.id}, "unwind", "stack has been freed, cannot unwind")
		return
	}

	baseAddr := memaddr.AddrOf((*byte)(s.base))
	if s.next == baseAddr {
		return
	}

	markAddr := memaddr.Addr[byte](*xunsafe.Cast[uintptr](s.marker.Ptr()))
	if markAddr.IsNil() {
		s.next = baseAddr
		return
	}

	s.next = markAddr
	s.marker = s.marker.Add(int(unsafe.Sizeof(uintptr(0))))
}

// Mark reserves one pointer-sized word immediately below the current top
// marker, records the current bump pointer into it, and advances the
// marker stack downward. A later Unwind rewinds exactly to this point.
//
// If placing this marker would overlap already-allocated memory, Mark
// fails conservatively (treated as capacity-exhausted) rather than
// corrupting the allocation region; the original C++ source does not
// check for this case at all.
func (s *Stack) Mark() bool {
	if s.base == nil {
		debug.Log([]any{"oid=%d", s.id}, "mark", "stack has been freed, cannot mark")
		return false
	}

	ptrSize := int(unsafe.Sizeof(uintptr(0)))
	markAddr := s.marker.Add(-ptrSize)

	if markAddr.Int() < s.next.Int() {
		debug.Log([]any{"oid=%d", s.id}, "mark", "marker region would collide with next")
		return false
	}

	*xunsafe.Cast[uintptr](markAddr.Ptr()) = uintptr(s.next)
	s.marker = markAddr

	return true
}

// Reset clears every marker and rewinds next to the base of the region.
// A no-op, with a warning, if Free has already released the backing
// memory.
func (s *Stack) Reset() {
	if s.base == nil {
		debug.Log([]any{"oid=%d", s.id}, "reset", "stack has been freed, cannot reset")
		return
	}

	baseAddr := memaddr.AddrOf((*byte)(s.base))
	ptrSize := int(unsafe.Sizeof(uintptr(0)))

	markerAddr := baseAddr.Add(s.size - ptrSize).AlignUp(ptrSize)
	*xunsafe.Cast[uintptr](markerAddr.Ptr()) = 0

	s.marker = markerAddr
	s.next = baseAddr
}

// Free releases the backing region. Terminal: every later call other than
// OID warns and is a no-op.
func (s *Stack) Free() {
	if s.base == nil {
		debug.Log([]any{"oid=%d", s.id}, "free", "stack already freed")
		return
	}

	s.base = nil
	s.next = 0
	s.marker = 0
}

// OID returns the identifier this Stack was tagged with by a Registry, or
// 0 if constructed directly.
func (s *Stack) OID() OID { return s.id }

// Size returns the total capacity of the region in bytes.
func (s *Stack) Size() int { return s.size }
