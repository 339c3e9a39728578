//go:build go1.21

package memory_test

import (
	"testing"
	"unsafe"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memory"
)

// TestChunkMixedSizes covers spec scenario S3.
func TestChunkMixedSizes(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given a Chunk of 100 32-byte blocks", t, func() {
		c := memory.NewChunk(32, 100)

		p1 := c.AllocAligned(12, 4)
		p2 := c.AllocAligned(20, 8)
		p3 := c.AllocAligned(12, 4)
		p4 := c.AllocAligned(20, 8)

		Convey("Every allocation satisfies its requested alignment", func() {
			So(uintptr(p1)%4, ShouldEqual, 0)
			So(uintptr(p2)%8, ShouldEqual, 0)
			So(uintptr(p3)%4, ShouldEqual, 0)
			So(uintptr(p4)%8, ShouldEqual, 0)
		})

		Convey("Successive blocks are exactly 32 bytes apart", func() {
			So(uintptr(p2)-uintptr(p1), ShouldEqual, 32)
			So(uintptr(p3)-uintptr(p2), ShouldEqual, 32)
			So(uintptr(p4)-uintptr(p3), ShouldEqual, 32)
		})
	})

	Convey("Given a Chunk with a non-power-of-two block size", t, func() {
		c := memory.NewChunk(24, 10)

		Convey("It is left inert", func() {
			So(c.AllocAligned(8, 1), ShouldBeNil)
		})
	})

	Convey("Given a Chunk with an undersized block", t, func() {
		c := memory.NewChunk(2, 10)

		Convey("It is left inert", func() {
			So(c.AllocAligned(2, 1), ShouldBeNil)
		})
	})

	Convey("Given a Chunk", t, func() {
		c := memory.NewChunk(64, 10)

		Convey("Dealloc then Alloc reuses the same block", func() {
			p := c.AllocAligned(8, 1)
			c.Dealloc(p)
			reused := c.AllocAligned(8, 1)

			// Both requests land in the same 64-byte block (the block's
			// own address, not necessarily the first-returned pointer,
			// since alignment may differ between the two requests).
			blockOf := func(p unsafe.Pointer) uintptr {
				return uintptr(p) &^ (64 - 1)
			}
			So(blockOf(reused), ShouldEqual, blockOf(p))
		})

		Convey("Owns reports membership correctly", func() {
			p := c.AllocAligned(8, 1)
			So(c.Owns(p), ShouldBeTrue)

			var outside int
			So(c.Owns(unsafe.Pointer(&outside)), ShouldBeFalse)
		})

		Convey("alloc() with no arguments is unsupported", func() {
			var a memory.Allocator = c
			So(a.Alloc(), ShouldBeNil)
		})
	})
}
