//go:build go1.21

package memory

import (
	"unsafe"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memaddr"
	"github.com/catlinz/catcore-memory/pkg/xunsafe"
)

// Pool hands out fixed-size, fixed-count blocks from one contiguous
// region, using an intrusive free list threaded through the blocks
// themselves: each free block's first pointer-sized word stores the
// address of the next free block, down to a nil-terminated tail.
//
// Pool.Free is terminal. Pool is not safe for concurrent use.
type Pool struct {
	blockSize  int
	blockCount int
	alignment  int

	unaligned unsafe.Pointer       // as returned by the backing allocation, or nil once freed
	aligned   memaddr.Addr[byte]   // start of the usable, aligned region
	nextFree  memaddr.Addr[byte]   // head of the free list, or nil when exhausted

	id OID
}

var _ Allocator = (*Pool)(nil)

// NewPool constructs a Pool of blockCount blocks, each blockSize bytes,
// aligned to alignment (a power of two). blockSize must be at least
// sizeof(pointer), since each free block stores a pointer-sized link.
//
// On failure (bad blockSize, or the backing allocation failing) Pool is
// left inert: every Alloc call will return nil until the caller discards
// it. Go's allocator cannot itself fail short of an OOM panic, but the
// size-guard failure mode from the original C++ allocator is preserved
// for configuration errors.
func NewPool(blockSize, blockCount, alignment int) *Pool {
	p := &Pool{alignment: alignment}

	if blockSize < int(unsafe.Sizeof(uintptr(0))) {
		debug.Log(nil, "new-pool", "block_size %d must be >= sizeof(pointer)", blockSize)
		return p
	}

	p.blockSize = blockSize
	p.blockCount = blockCount

	// Request enough memory for every block plus the worst-case alignment
	// slop, exactly like the original malloc(block_size*count + alignment).
	buf := make([]byte, blockSize*blockCount+alignment)
	p.unaligned = unsafe.Pointer(unsafe.SliceData(buf))

	raw := memaddr.AddrOf((*byte)(p.unaligned))
	p.aligned = raw.AlignUp(max(alignment, 1))

	debug.Log(nil, "new-pool", "block_size=%d count=%d align=%d", blockSize, blockCount, alignment)
	p.Reset()

	return p
}

// Alloc returns the next free block, or nil if the pool is exhausted or
// was never successfully constructed.
func (p *Pool) Alloc() unsafe.Pointer {
	if p.nextFree.IsNil() {
		debug.Log([]any{"oid=%d", p.id}, "alloc", "pool exhausted")
		return nil
	}

	block := p.nextFree.Ptr()
	p.nextFree = memaddr.Addr[byte](*xunsafe.Cast[uintptr](block))

	return unsafe.Pointer(block)
}

// AllocAligned ignores size and align and behaves exactly like Alloc: a
// Pool's blocks are already fixed-size and fixed-alignment.
func (p *Pool) AllocAligned(size, align int) unsafe.Pointer {
	return p.Alloc()
}

// Dealloc threads memory back onto the head of the free list. The caller
// must already have run any destructor for the object stored there.
func (p *Pool) Dealloc(memoryBlock unsafe.Pointer) {
	if memoryBlock == nil {
		return
	}
	if p.unaligned == nil {
		debug.Log([]any{"oid=%d", p.id}, "dealloc", "pool has been freed, cannot dealloc")
		return
	}

	block := (*byte)(memoryBlock)
	*xunsafe.Cast[uintptr](block) = uintptr(p.nextFree)
	p.nextFree = memaddr.AddrOf(block)
}

// Unwind is not supported by Pool.
func (p *Pool) Unwind() {
	warnUnsupported("Pool", p.id, "unwind", debug.Unsupported())
}

// Reset rebuilds the free list in ascending address order: block i points
// to block i+1, and the last block is nil-terminated. A no-op, with a
// warning, if Free has already released the backing memory.
func (p *Pool) Reset() {
	if p.unaligned == nil {
		debug.Log([]any{"oid=%d", p.id}, "reset", "pool has been freed, cannot reset")
		return
	}

	cur := p.aligned
	maxAddr := p.aligned.Add(p.blockSize * (p.blockCount - 1))

	for cur.Less(maxAddr) {
		next := cur.Add(p.blockSize)
		*xunsafe.Cast[uintptr](cur.Ptr()) = uintptr(next)
		cur = next
	}
	*xunsafe.Cast[uintptr](cur.Ptr()) = 0

	p.nextFree = p.aligned
}

// Free releases the backing region. Terminal: every later call other than
// OID warns and is a no-op.
func (p *Pool) Free() {
	if p.unaligned == nil {
		debug.Log([]any{"oid=%d", p.id}, "free", "pool already freed")
		return
	}

	p.unaligned = nil
	p.aligned = 0
	p.nextFree = 0
}

// OID returns the identifier this Pool was tagged with by a Registry, or
// 0 if constructed directly.
func (p *Pool) OID() OID { return p.id }

// BlockSize returns the fixed size of each block.
func (p *Pool) BlockSize() int { return p.blockSize }

// BlockCount returns the total number of blocks.
func (p *Pool) BlockCount() int { return p.blockCount }
