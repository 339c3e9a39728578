//go:build go1.21

// Package memaddr provides the address abstraction shared by every
// allocator in [github.com/catlinz/catcore-memory/pkg/memory]: a value
// that can be read either as a raw pointer or as the integer equal to
// that pointer, plus the alignment arithmetic every allocator needs to
// hand out correctly-aligned blocks.
//
// This mirrors the MemAddr/Addr union from the original C++ source: one
// value, two views, always bit-identical.
package memaddr

import "unsafe"

// Addr is an address into memory of type T. It is always exactly the
// bit pattern of a *T; the two representations (Ptr, Int) are obtained
// from the same underlying uintptr and can never diverge.
type Addr[T any] uintptr

// Nil is the sentinel address returned on allocation failure or
// exhaustion.
func Nil[T any]() Addr[T] { return 0 }

// AddrOf returns the address of p.
func AddrOf[T any](p *T) Addr[T] {
	return Addr[T](uintptr(unsafe.Pointer(p)))
}

// Int returns the integer view of this address.
func (a Addr[T]) Int() uintptr { return uintptr(a) }

// Ptr returns the pointer view of this address. Returns nil if a is the
// nil sentinel.
func (a Addr[T]) Ptr() *T {
	if a == 0 {
		return nil
	}
	return (*T)(unsafe.Pointer(uintptr(a)))
}

// IsNil reports whether a is the nil sentinel.
func (a Addr[T]) IsNil() bool { return a == 0 }

// Add returns a advanced by n bytes.
func (a Addr[T]) Add(n int) Addr[T] {
	return a + Addr[T](n)
}

// Sub returns the distance, in bytes, from b to a (a - b).
func (a Addr[T]) Sub(b Addr[T]) int {
	return int(a) - int(b)
}

// Less reports whether a is strictly below b.
func (a Addr[T]) Less(b Addr[T]) bool { return a < b }

// Cast reinterprets a as an address of a different element type, without
// changing the underlying bit pattern.
func Cast[To, From any](a Addr[From]) Addr[To] {
	return Addr[To](a)
}

// AlignUp returns the smallest address >= addr that satisfies the given
// alignment. alignment must be a power of two, or 0 (meaning "no
// alignment requirement", treated identically to 1).
//
// AlignUp is idempotent: aligning an already-aligned address returns it
// unchanged. It is monotone: the result is always >= addr.
func AlignUp(addr uintptr, alignment uintptr) uintptr {
	if alignment <= 1 {
		return addr
	}
	// aligned(a,k) = a + ((k - (a & (k-1))) mod k)
	return (addr + alignment - 1) &^ (alignment - 1)
}

// AlignUp returns a rounded up to the given byte alignment. alignment
// must be a power of two, or 0.
func (a Addr[T]) AlignUp(alignment int) Addr[T] {
	return Addr[T](AlignUp(uintptr(a), uintptr(alignment)))
}

// IsAligned reports whether addr already satisfies the given alignment.
func IsAligned(addr uintptr, alignment uintptr) bool {
	if alignment <= 1 {
		return true
	}
	return addr&(alignment-1) == 0
}

// MaskDown clears the low bits of addr below the power-of-two blockSize,
// i.e. rounds addr down to the start of its enclosing block. Used by
// [github.com/catlinz/catcore-memory/pkg/memory.Chunk] to recover the
// owning block from an interior pointer.
func MaskDown(addr uintptr, blockSize uintptr) uintptr {
	return addr &^ (blockSize - 1)
}

// IsPow2 reports whether n is a power of two. Zero is not a power of two.
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two >= n. NextPow2(0) is 1.
func NextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
