//go:build go1.21

package memory

import (
	"unsafe"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memaddr"
	"github.com/catlinz/catcore-memory/pkg/xunsafe"
)

// Chunk is like [Pool] except blockSize must be a power of two, which
// lets each allocation request its own sub-alignment within a block in
// O(1): the block's own power-of-two mask derives both the aligned
// pointer handed to the caller and, on Dealloc, the enclosing block
// address from any interior pointer.
//
// This lets many differently-sized (and -aligned) objects, each no
// larger than blockSize, share one pool.
//
// Chunk.Free is terminal. Chunk is not safe for concurrent use.
type Chunk struct {
	blockSize  int
	blockCount int

	unaligned unsafe.Pointer
	aligned   memaddr.Addr[byte]
	nextFree  memaddr.Addr[byte]

	id OID
}

var _ Allocator = (*Chunk)(nil)

// NewChunk constructs a Chunk of blockCount blocks, each blockSize bytes.
// blockSize must be a power of two and at least sizeof(pointer); either
// failure leaves the Chunk inert.
func NewChunk(blockSize, blockCount int) *Chunk {
	c := &Chunk{}

	if blockSize < int(unsafe.Sizeof(uintptr(0))) {
		debug.Log(nil, "new-chunk", "block_size %d must be >= sizeof(pointer)", blockSize)
		return c
	}
	if !memaddr.IsPow2(uint64(blockSize)) {
		debug.Log(nil, "new-chunk", "block_size %d must be a power of two", blockSize)
		return c
	}

	c.blockSize = blockSize
	c.blockCount = blockCount

	buf := make([]byte, blockSize*blockCount+blockSize)
	c.unaligned = unsafe.Pointer(unsafe.SliceData(buf))

	raw := memaddr.AddrOf((*byte)(c.unaligned))
	c.aligned = raw.AlignUp(blockSize)

	debug.Log(nil, "new-chunk", "block_size=%d count=%d", blockSize, blockCount)
	c.Reset()

	return c
}

// Alloc is not supported by Chunk: a size and alignment are always
// required. Use AllocAligned.
func (c *Chunk) Alloc() unsafe.Pointer {
	warnUnsupported("Chunk", c.id, "alloc", debug.Unsupported())
	return nil
}

// AllocAligned pops the head of the free list and aligns it within its
// block to align (0 means no explicit alignment). The caller is
// responsible for ensuring size plus the resulting alignment padding
// fits within blockSize.
func (c *Chunk) AllocAligned(size, align int) unsafe.Pointer {
	if c.nextFree.IsNil() {
		debug.Log([]any{"oid=%d", c.id}, "alloc", "chunk exhausted")
		return nil
	}

	block := c.nextFree
	c.nextFree = memaddr.Addr[byte](*xunsafe.Cast[uintptr](block.Ptr()))

	return unsafe.Pointer(block.AlignUp(max(align, 1)).Ptr())
}

// Dealloc rounds p back down to its enclosing block using the
// power-of-two mask, then threads that block onto the free list exactly
// like [Pool.Dealloc].
func (c *Chunk) Dealloc(p unsafe.Pointer) {
	if p == nil {
		return
	}
	if c.unaligned == nil {
		debug.Log([]any{"oid=%d", c.id}, "dealloc", "chunk has been freed, cannot dealloc")
		return
	}

	blockAddr := memaddr.Addr[byte](memaddr.MaskDown(uintptr(p), uintptr(c.blockSize)))

	*xunsafe.Cast[uintptr](blockAddr.Ptr()) = uintptr(c.nextFree)
	c.nextFree = blockAddr
}

// Unwind is not supported by Chunk.
func (c *Chunk) Unwind() {
	warnUnsupported("Chunk", c.id, "unwind", debug.Unsupported())
}

// Reset rebuilds the free list in ascending address order. A no-op, with
// a warning, if Free has already released the backing memory.
func (c *Chunk) Reset() {
	if c.unaligned == nil {
		debug.Log([]any{"oid=%d", c.id}, "reset", "chunk has been freed, cannot reset")
		return
	}

	cur := c.aligned
	maxAddr := c.aligned.Add(c.blockSize * (c.blockCount - 1))

	for cur.Less(maxAddr) {
		next := cur.Add(c.blockSize)
		*xunsafe.Cast[uintptr](cur.Ptr()) = uintptr(next)
		cur = next
	}
	*xunsafe.Cast[uintptr](cur.Ptr()) = 0

	c.nextFree = c.aligned
}

// Free releases the backing region. Terminal: every later call other
// than OID warns and is a no-op.
func (c *Chunk) Free() {
	if c.unaligned == nil {
		debug.Log([]any{"oid=%d", c.id}, "free", "chunk already freed")
		return
	}

	c.unaligned = nil
	c.aligned = 0
	c.nextFree = 0
}

// OID returns the identifier this Chunk was tagged with by a Registry, or
// 0 if constructed directly.
func (c *Chunk) OID() OID { return c.id }

// BlockSize returns the fixed, power-of-two block size.
func (c *Chunk) BlockSize() int { return c.blockSize }

// BlockCount returns the total number of blocks.
func (c *Chunk) BlockCount() int { return c.blockCount }

// Owns reports whether p lies within this Chunk's backing region, i.e.
// whether Dealloc(p) would be routed here.
func (c *Chunk) Owns(p unsafe.Pointer) bool {
	if c.unaligned == nil || p == nil {
		return false
	}
	addr := uintptr(p)
	start := c.aligned.Int()
	end := start + uintptr(c.blockSize*c.blockCount)
	return addr >= start && addr < end
}
