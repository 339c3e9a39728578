//go:build go1.21

package memory_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/catlinz/catcore-memory/internal/debug"
	"github.com/catlinz/catcore-memory/pkg/memory"
)

// TestStackMarkers covers spec scenario S2.
func TestStackMarkers(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given a 10000-byte Stack", t, func() {
		s := memory.NewStack(10000)

		a := s.AllocAligned(16, 4)
		So(a, ShouldNotBeNil)
		s.Mark()

		b := s.AllocAligned(32, 8)
		So(b, ShouldNotBeNil)
		s.Mark()

		c := s.AllocAligned(16, 4)
		So(c, ShouldNotBeNil)
		s.Mark()

		d := s.AllocAligned(32, 8)
		So(d, ShouldNotBeNil)

		aNext := uintptr(a) + 16

		Convey("Unwinding three times returns to just after A", func() {
			s.Unwind()
			s.Unwind()
			s.Unwind()

			next := s.AllocAligned(0, 1)
			So(uintptr(next), ShouldEqual, aNext)
		})

		Convey("A fourth Unwind rewinds fully to the base", func() {
			s.Unwind()
			s.Unwind()
			s.Unwind()
			s.Unwind()

			So(s.AllocAligned(16, 4), ShouldEqual, a)
		})
	})

	Convey("Given an exhausted Stack", t, func() {
		s := memory.NewStack(32)

		first := s.AllocAligned(16, 1)
		So(first, ShouldNotBeNil)

		Convey("A request that would overflow returns nil", func() {
			So(s.AllocAligned(64, 1), ShouldBeNil)
		})
	})

	Convey("Given a Stack used through the Allocator interface", t, func() {
		var alloc memory.Allocator = memory.NewStack(256)

		Convey("Alloc() with no arguments is unsupported", func() {
			So(alloc.Alloc(), ShouldBeNil)
		})

		Convey("Dealloc(p) is unsupported", func() {
			p := alloc.AllocAligned(8, 1)
			So(func() { alloc.Dealloc(p) }, ShouldNotPanic)
		})
	})

	Convey("Given a fresh Stack", t, func() {
		s := memory.NewStack(128)

		Convey("Unwind with nothing allocated is a no-op", func() {
			So(func() { s.Unwind() }, ShouldNotPanic)
		})

		Convey("Reset after Free warns and does not panic", func() {
			s.Free()
			So(func() { s.Reset() }, ShouldNotPanic)
		})
	})
}

func TestStackAlignment(t *testing.T) {
	defer debug.WithTesting(t)()

	Convey("Given a Stack", t, func() {
		s := memory.NewStack(4096)

		Convey("Every returned address satisfies its requested alignment", func() {
			for _, align := range []int{1, 2, 4, 8, 16, 32} {
				p := s.AllocAligned(align, align)
				So(p, ShouldNotBeNil)
				So(uintptr(p)%uintptr(align), ShouldEqual, 0)
			}
		})
	})
}
