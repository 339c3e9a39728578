//go:build go1.21

package memory

import (
	"unsafe"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memaddr"
)

// dcNode is one entry in DynamicChunk's sorted doubly linked list.
type dcNode struct {
	chunk *Chunk
	next  *dcNode
	prev  *dcNode
}

// DynamicChunk multiplexes an ordered set of [Chunk] allocators keyed by
// ascending block size. A request picks the smallest chunk that fits
// without wasting more than half its capacity (the "waste cap"); if none
// fits, a new, tightly-sized chunk is spawned and inserted in sorted
// position.
//
// Unlike the other three kinds, DynamicChunk.Free is recoverable: after
// freeing every child chunk, AddChunk/AllocAligned may be used again to
// grow a fresh set of children.
//
// DynamicChunk is not safe for concurrent use.
type DynamicChunk struct {
	defaultChunks int

	head         *dcNode
	count        int
	lastAccessed *Chunk

	id OID
}

var _ Allocator = (*DynamicChunk)(nil)

// NewDynamicChunk constructs an empty DynamicChunk. defaultChunks is the
// number of blocks a newly spawned child chunk gets; defaultChunks <= 0
// is treated as 32, matching the original library's default.
func NewDynamicChunk(defaultChunks int) *DynamicChunk {
	if defaultChunks <= 0 {
		defaultChunks = 32
	}
	return &DynamicChunk{defaultChunks: defaultChunks}
}

// Alloc is not supported by DynamicChunk: a size and alignment are always
// required. Use AllocAligned.
func (d *DynamicChunk) Alloc() unsafe.Pointer {
	warnUnsupported("DynamicChunk", d.id, "alloc", debug.Unsupported())
	return nil
}

// AllocAligned routes the request to the smallest child chunk whose
// block size is in [size, 2*size), spawning one via AddChunk if none
// qualifies.
//
// The hot-path check against lastAccessed uses a strict '>' on the low
// side (lastAccessed.BlockSize() > size), so a request for exactly the
// cursor's block size skips the hot path and falls through to the walk.
// This mirrors the original source's behavior; see spec Open Questions.
func (d *DynamicChunk) AllocAligned(size, align int) unsafe.Pointer {
	if d.head == nil {
		c := d.AddChunk(size, d.defaultChunks)
		if c == nil {
			return nil
		}
		d.lastAccessed = c
	}

	if d.lastAccessed != nil && d.lastAccessed.BlockSize() > size && d.lastAccessed.BlockSize() < 2*size {
		return d.lastAccessed.AllocAligned(size, align)
	}

	for n := d.head; n != nil; n = n.next {
		if n.chunk.BlockSize() >= size {
			if n.chunk.BlockSize() < 2*size {
				d.lastAccessed = n.chunk
				return n.chunk.AllocAligned(size, align)
			}
			break
		}
	}

	c := d.AddChunk(size, d.defaultChunks)
	if c == nil {
		debug.Log([]any{"oid=%d", d.id}, "alloc", "no chunk fits %d bytes and none could be spawned", size)
		return nil
	}
	d.lastAccessed = c

	return c.AllocAligned(size, align)
}

// Dealloc routes p to whichever child chunk owns it: first the hot
// cursor, then a full walk of the list. Warns and drops the request if no
// child claims it.
func (d *DynamicChunk) Dealloc(p unsafe.Pointer) {
	if p == nil {
		return
	}

	if d.lastAccessed != nil && d.lastAccessed.Owns(p) {
		d.lastAccessed.Dealloc(p)
		return
	}

	for n := d.head; n != nil; n = n.next {
		if n.chunk.Owns(p) {
			n.chunk.Dealloc(p)
			return
		}
	}

	debug.Log([]any{"oid=%d", d.id}, "dealloc", "no chunk owns pointer %p", p)
}

// Unwind is not supported by DynamicChunk.
func (d *DynamicChunk) Unwind() {
	warnUnsupported("DynamicChunk", d.id, "unwind", debug.Unsupported())
}

// Reset forwards to every child chunk.
func (d *DynamicChunk) Reset() {
	for n := d.head; n != nil; n = n.next {
		n.chunk.Reset()
	}
}

// Free destroys every child chunk. Unlike the other allocator kinds, the
// DynamicChunk itself remains usable afterward: AddChunk/AllocAligned may
// add new children.
func (d *DynamicChunk) Free() {
	for n := d.head; n != nil; {
		n.chunk.Free()
		n = n.next
	}
	d.head = nil
	d.count = 0
	d.lastAccessed = nil
}

// OID returns the identifier this DynamicChunk was tagged with by a
// Registry, or 0 if constructed directly.
func (d *DynamicChunk) OID() OID { return d.id }

// ChunkCount returns the number of child chunks currently held.
func (d *DynamicChunk) ChunkCount() int { return d.count }

// DefaultChunkCount returns the block count given to newly spawned
// children.
func (d *DynamicChunk) DefaultChunkCount() int { return d.defaultChunks }

// AddChunk creates and inserts a new Chunk sized to the next power of two
// >= chunkSize, with numChunks blocks, in sorted position by block size.
// Returns nil (with a diagnostic) if chunkSize is smaller than a pointer.
func (d *DynamicChunk) AddChunk(chunkSize, numChunks int) *Chunk {
	if chunkSize < int(unsafe.Sizeof(uintptr(0))) {
		debug.Log([]any{"oid=%d", d.id}, "add-chunk", "cannot allocate a chunk smaller than sizeof(pointer)")
		return nil
	}

	size := int(memaddr.NextPow2(uint64(chunkSize)))
	node := &dcNode{chunk: NewChunk(size, numChunks)}

	if d.head == nil {
		d.head = node
		d.count++
		return node.chunk
	}

	var prev *dcNode
	cur := d.head
	for cur != nil && cur.chunk.BlockSize() <= size {
		prev = cur
		cur = cur.next
	}

	switch {
	case prev == nil: // smallest yet: front of the list
		node.next = d.head
		d.head.prev = node
		d.head = node
	case cur == nil: // largest yet: end of the list
		node.prev = prev
		prev.next = node
	default:
		node.prev = prev
		node.next = cur
		prev.next = node
		cur.prev = node
	}

	d.count++
	return node.chunk
}

// FreeChunk removes and destroys the child chunk whose block size equals
// chunkSize rounded up to a power of two. Warns if no such chunk exists.
func (d *DynamicChunk) FreeChunk(chunkSize int) {
	size := int(memaddr.NextPow2(uint64(chunkSize)))

	var target *dcNode
	for n := d.head; n != nil; n = n.next {
		if n.chunk.BlockSize() == size {
			target = n
			break
		}
	}
	if target == nil {
		debug.Log([]any{"oid=%d", d.id}, "free-chunk", "no chunk with block_size=%d found", size)
		return
	}

	if target.next != nil {
		target.next.prev = target.prev
	}
	if target.prev != nil {
		target.prev.next = target.next
	}
	if d.head == target {
		d.head = target.next
	}
	if d.lastAccessed == target.chunk {
		if d.head != nil {
			d.lastAccessed = d.head.chunk
		} else {
			d.lastAccessed = nil
		}
	}

	target.chunk.Free()
	d.count--
}

// GetChunk returns the child chunk whose block size equals chunkSize
// rounded up to a power of two, or nil if none exists.
func (d *DynamicChunk) GetChunk(chunkSize int) *Chunk {
	size := int(memaddr.NextPow2(uint64(chunkSize)))
	for n := d.head; n != nil; n = n.next {
		if n.chunk.BlockSize() == size {
			return n.chunk
		}
	}
	return nil
}

// CanFit reports whether a future AllocAligned(blockSize, _) would find
// an existing chunk to serve it without spawning a new one.
func (d *DynamicChunk) CanFit(blockSize int) bool {
	for n := d.head; n != nil; n = n.next {
		if n.chunk.BlockSize() >= blockSize {
			return n.chunk.BlockSize() < 2*blockSize
		}
	}
	return false
}
