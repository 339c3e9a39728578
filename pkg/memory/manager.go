//go:build go1.21

package memory

import (
	"github.com/catlinz/catcore-memory/internal/debug"
)

// idTagger is implemented by every allocator kind so Registry can stamp
// its assigned identifier into the allocator after construction, letting
// OID() round-trip.
type idTagger interface {
	setOID(OID)
}

func (p *Pool) setOID(id OID)         { p.id = id }
func (s *Stack) setOID(id OID)        { s.id = id }
func (c *Chunk) setOID(id OID)        { c.id = id }
func (d *DynamicChunk) setOID(id OID) { d.id = id }

// Registry is the process-wide allocator table: a bounded set of slots,
// index 0 reserved so that OID 0 always means "invalid", each holding at
// most one live allocator. Registry itself is not safe for concurrent
// use; callers must serialize access externally, including around
// [InitSingleton]/[DestroySingleton] of the process-wide singleton
// returned by [GetSingleton].
type Registry struct {
	slots  []Allocator // len == maxAllocators+1; slots[0] unused
	length int
}

// DefaultMaxAllocators is the number of allocator slots a Registry gets
// when none is specified, matching the original library's default.
const DefaultMaxAllocators = 32

// NewRegistry constructs a standalone Registry with room for
// maxAllocators allocators. maxAllocators <= 0 is treated as
// [DefaultMaxAllocators].
func NewRegistry(maxAllocators int) *Registry {
	if maxAllocators <= 0 {
		maxAllocators = DefaultMaxAllocators
	}
	return &Registry{slots: make([]Allocator, maxAllocators+1)}
}

// Len returns the number of allocators currently held.
func (r *Registry) Len() int { return r.length }

// MaxAllocators returns the capacity of this registry.
func (r *Registry) MaxAllocators() int { return len(r.slots) - 1 }

// nextFreeSlot linearly scans for the lowest free slot index >= 1.
// Returns 0 if the table is full.
func (r *Registry) nextFreeSlot() int {
	for i := 1; i < len(r.slots); i++ {
		if r.slots[i] == nil {
			return i
		}
	}
	return 0
}

func (r *Registry) register(a Allocator) OID {
	slot := r.nextFreeSlot()
	if slot == 0 {
		debug.Log(nil, "register", "registry is full (max=%d)", r.MaxAllocators())
		return 0
	}

	r.slots[slot] = a
	r.length++

	if tagger, ok := a.(idTagger); ok {
		tagger.setOID(OID(slot))
	}

	return OID(slot)
}

// CreatePoolAllocator constructs a [Pool] and registers it, returning its
// assigned OID, or 0 if the registry is full.
func (r *Registry) CreatePoolAllocator(blockSize, blockCount, alignment int) OID {
	return r.register(NewPool(blockSize, blockCount, alignment))
}

// CreateStackAllocator constructs a [Stack] and registers it, returning
// its assigned OID, or 0 if the registry is full.
func (r *Registry) CreateStackAllocator(size int) OID {
	return r.register(NewStack(size))
}

// CreateChunkAllocator constructs a [Chunk] and registers it, returning
// its assigned OID, or 0 if the registry is full.
func (r *Registry) CreateChunkAllocator(blockSize, blockCount int) OID {
	return r.register(NewChunk(blockSize, blockCount))
}

// CreateDynamicChunkAllocator constructs a [DynamicChunk] and registers
// it, returning its assigned OID, or 0 if the registry is full.
func (r *Registry) CreateDynamicChunkAllocator(defaultChunks int) OID {
	return r.register(NewDynamicChunk(defaultChunks))
}

// Get returns the allocator registered under id, or nil (with a
// diagnostic) if id is out of [1, MaxAllocators] or names an empty slot.
func (r *Registry) Get(id OID) Allocator {
	if id < 1 || int(id) >= len(r.slots) {
		debug.Log(nil, "get", "object id %d out of bounds, must be between 1 and %d", id, len(r.slots)-1)
		return nil
	}
	return r.slots[id]
}

// FreeID frees and unregisters the allocator with the given id. A no-op,
// with a diagnostic, if id is out of bounds or already empty.
func (r *Registry) FreeID(id OID) {
	if id < 1 || int(id) >= len(r.slots) {
		debug.Log(nil, "free", "object id %d out of bounds, must be between 1 and %d", id, len(r.slots)-1)
		return
	}
	a := r.slots[id]
	if a == nil {
		debug.Log(nil, "free", "object id %d is already empty", id)
		return
	}

	a.Free()
	r.slots[id] = nil
	r.length--
}

// FreeAllocator frees and unregisters a, looked up by a.OID(). A no-op if
// a is nil or its OID isn't currently registered here.
func (r *Registry) FreeAllocator(a Allocator) {
	if a == nil {
		return
	}
	r.FreeID(a.OID())
}

// Destroy releases every allocator still held and empties the registry.
// Calling Destroy a second time is a no-op with a diagnostic.
func (r *Registry) Destroy() {
	if r.slots == nil {
		debug.Log(nil, "destroy", "registry already destroyed")
		return
	}

	for i := 1; i < len(r.slots); i++ {
		if r.slots[i] != nil {
			r.slots[i].Free()
			r.slots[i] = nil
		}
	}

	r.slots = nil
	r.length = 0
}

// singleton is the process-wide Registry instance managed by
// InitSingleton/GetSingleton/DestroySingleton.
var singleton *Registry

// InitSingleton initializes the process-wide Registry singleton with room
// for maxAllocators allocators. maxAllocators <= 0 uses
// [DefaultMaxAllocators].
func InitSingleton(maxAllocators int) {
	singleton = NewRegistry(maxAllocators)
}

// GetSingleton returns the process-wide Registry, or nil (with a
// diagnostic) if InitSingleton hasn't been called, or was undone by
// DestroySingleton.
func GetSingleton() *Registry {
	if singleton == nil {
		debug.Log(nil, "get-singleton", "getting singleton instance of uninitialized Registry")
	}
	return singleton
}

// DestroySingleton tears down the process-wide Registry, freeing every
// allocator it still holds. Subsequent GetSingleton calls return nil
// until InitSingleton is called again.
func DestroySingleton() {
	if singleton == nil {
		debug.Log(nil, "destroy-singleton", "registry already destroyed")
		return
	}
	singleton.Destroy()
	singleton = nil
}
