//go:build go1.21

package memaddr_test

import (
	"testing"
	"unsafe"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/catlinz/catcore-memory/pkg/memaddr"
)

func TestAddr(t *testing.T) {
	Convey("Given address operations", t, func() {
		Convey("When getting the address of a value", func() {
			i := 42
			addr := memaddr.AddrOf(&i)

			So(addr.Int(), ShouldEqual, uintptr(unsafe.Pointer(&i)))
			So(addr.Ptr(), ShouldEqual, &i)
			So(*addr.Ptr(), ShouldEqual, 42)
		})

		Convey("When advancing an address", func() {
			var buf [64]byte
			base := memaddr.AddrOf(&buf[0])

			advanced := base.Add(16)

			So(advanced.Sub(base), ShouldEqual, 16)
			So(advanced.Ptr(), ShouldEqual, &buf[16])
		})

		Convey("When testing the nil sentinel", func() {
			var zero memaddr.Addr[int]

			So(zero.IsNil(), ShouldBeTrue)
			So(zero.Ptr(), ShouldBeNil)
		})
	})
}

func TestAlignUp(t *testing.T) {
	Convey("Given the AlignUp helper", t, func() {
		Convey("When alignment is a power of two", func() {
			So(memaddr.AlignUp(0, 8), ShouldEqual, 0)
			So(memaddr.AlignUp(1, 8), ShouldEqual, 8)
			So(memaddr.AlignUp(8, 8), ShouldEqual, 8)
			So(memaddr.AlignUp(9, 8), ShouldEqual, 16)
			So(memaddr.AlignUp(17, 4), ShouldEqual, 20)
		})

		Convey("When alignment is 0 or 1, it means 'no requirement'", func() {
			So(memaddr.AlignUp(123, 0), ShouldEqual, 123)
			So(memaddr.AlignUp(123, 1), ShouldEqual, 123)
		})

		Convey("It is idempotent", func() {
			for _, align := range []uintptr{2, 4, 8, 16, 32, 64} {
				for addr := uintptr(0); addr < 256; addr++ {
					once := memaddr.AlignUp(addr, align)
					twice := memaddr.AlignUp(once, align)
					So(twice, ShouldEqual, once)
				}
			}
		})

		Convey("It is monotone: the result is always >= the input", func() {
			for _, align := range []uintptr{2, 4, 8, 16, 32, 64} {
				for addr := uintptr(0); addr < 256; addr++ {
					So(memaddr.AlignUp(addr, align), ShouldBeGreaterThanOrEqualTo, addr)
				}
			}
		})

		Convey("The result always satisfies the alignment", func() {
			for _, align := range []uintptr{2, 4, 8, 16, 32, 64} {
				for addr := uintptr(0); addr < 256; addr++ {
					aligned := memaddr.AlignUp(addr, align)
					So(aligned%align, ShouldEqual, 0)
				}
			}
		})
	})
}

func TestNextPow2(t *testing.T) {
	Convey("Given NextPow2", t, func() {
		So(memaddr.NextPow2(0), ShouldEqual, 1)
		So(memaddr.NextPow2(1), ShouldEqual, 1)
		So(memaddr.NextPow2(2), ShouldEqual, 2)
		So(memaddr.NextPow2(3), ShouldEqual, 4)
		So(memaddr.NextPow2(17), ShouldEqual, 32)
		So(memaddr.NextPow2(1024), ShouldEqual, 1024)
	})
}

func TestIsPow2(t *testing.T) {
	Convey("Given IsPow2", t, func() {
		So(memaddr.IsPow2(0), ShouldBeFalse)
		So(memaddr.IsPow2(1), ShouldBeTrue)
		So(memaddr.IsPow2(3), ShouldBeFalse)
		So(memaddr.IsPow2(64), ShouldBeTrue)
	})
}
