//go:build go1.21

package memory_test

import (
	"testing"
	"unsafe"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memory"
)

// TestDynamicChunkRouting covers spec scenario S4.
func TestDynamicChunkRouting(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given an empty DynamicChunk with default_count=3", t, func() {
		d := memory.NewDynamicChunk(3)

		Convey("Two 12-byte allocations spawn a 16-byte chunk", func() {
			p1 := d.AllocAligned(12, 1)
			p2 := d.AllocAligned(12, 1)
			So(p1, ShouldNotBeNil)
			So(p2, ShouldNotBeNil)

			spawned := d.GetChunk(16)
			So(spawned, ShouldNotBeNil)
			So(spawned.BlockSize(), ShouldEqual, 16)

			Convey("A third 12-byte allocation exhausts the 16-byte chunk (count=3)", func() {
				p3 := d.AllocAligned(12, 1)
				So(p3, ShouldNotBeNil)

				Convey("A fourth exhausts it for good, since count=3", func() {
					So(d.AllocAligned(12, 1), ShouldBeNil)
				})
			})

			Convey("AddChunk(32,3) then allows 20-byte allocations", func() {
				d.AddChunk(32, 3)
				p := d.AllocAligned(20, 1)
				So(p, ShouldNotBeNil)

				Convey("FreeChunk(16) removes the small chunk", func() {
					d.FreeChunk(16)
					So(d.GetChunk(16), ShouldBeNil)

					Convey("A subsequent 12-byte allocation respects the waste cap: since the only remaining chunk (32 bytes) would waste more than 2x, a fresh tighter chunk is spawned rather than reusing it", func() {
						p := d.AllocAligned(12, 1)
						So(p, ShouldNotBeNil)

						spawned := d.GetChunk(16)
						So(spawned, ShouldNotBeNil)
						So(spawned.Owns(p), ShouldBeTrue)

						c32 := d.GetChunk(32)
						So(c32.Owns(p), ShouldBeFalse)
					})
				})
			})
		})
	})

	Convey("Given a DynamicChunk with several chunk sizes", t, func() {
		d := memory.NewDynamicChunk(8)
		d.AddChunk(16, 8)
		d.AddChunk(64, 8)
		d.AddChunk(256, 8)

		Convey("Each added chunk is found under its block size", func() {
			sizes := []int{}
			for size := 1; size <= 256; size *= 2 {
				if c := d.GetChunk(size); c != nil {
					sizes = append(sizes, c.BlockSize())
				}
			}
			So(sizes, ShouldResemble, []int{16, 64, 256})
		})

		Convey("No allocation wastes more than 2x its requested size", func() {
			for _, size := range []int{9, 20, 70, 200} {
				p := d.AllocAligned(size, 1)
				So(p, ShouldNotBeNil)

				// find owning chunk
				var owner *memory.Chunk
				for _, cs := range []int{16, 32, 64, 128, 256} {
					if c := d.GetChunk(cs); c != nil && c.Owns(p) {
						owner = c
						break
					}
				}
				So(owner, ShouldNotBeNil)
				So(owner.BlockSize(), ShouldBeLessThan, 2*size)
			}
		})

		Convey("CanFit reports whether an existing chunk could serve a size", func() {
			So(d.CanFit(10), ShouldBeTrue)
			So(d.CanFit(1000), ShouldBeFalse)
		})
	})

	Convey("Given a DynamicChunk", t, func() {
		d := memory.NewDynamicChunk(4)
		d.AddChunk(32, 4)

		Convey("Dealloc on an unowned pointer warns and is a no-op", func() {
			var x int
			So(func() { d.Dealloc(unsafe.Pointer(&x)) }, ShouldNotPanic)
		})

		Convey("Free is recoverable: AddChunk works again afterward", func() {
			d.Free()
			So(d.ChunkCount(), ShouldEqual, 0)

			d.AddChunk(16, 4)
			So(d.ChunkCount(), ShouldEqual, 1)
			So(d.AllocAligned(8, 1), ShouldNotBeNil)
		})

		Convey("alloc() with no arguments is unsupported", func() {
			var a memory.Allocator = d
			So(a.Alloc(), ShouldBeNil)
		})
	})
}
