// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestValueIsOffsetGrid(t *testing.T) {
	c := qt.New(t)

	// A value lives inline exactly when its total byte size fits the
	// 4-byte slot, for every type and representative count.
	for typ := TypeByte; typ <= TypeDouble; typ++ {
		for _, count := range []uint32{1, 2, 4, 5} {
			tag := &Tag{ID: 0x100, Type: typ, Count: count}
			want := typ.Size()*count > 4
			c.Assert(tag.ValueIsOffset(), qt.Equals, want,
				qt.Commentf("type %s count %d", typ, count))
		}
	}
}

func TestTagDataSize(t *testing.T) {
	c := qt.New(t)

	tag := &Tag{ID: 0x111, Type: TypeLong, Count: 3}
	c.Assert(tag.dataSize(), qt.Equals, uint32(12))

	inline := &Tag{ID: 0x111, Type: TypeShort, Count: 2}
	c.Assert(inline.dataSize(), qt.Equals, uint32(0))
}

func TestDMSRoundTrip(t *testing.T) {
	c := qt.New(t)

	for _, deg := range []float64{0, 4.8357, 45.5, 179.99} {
		got := decodeDMS(encodeDMS(deg))
		c.Assert(got > deg-1e-6 && got < deg+1e-6, qt.IsTrue,
			qt.Commentf("deg %v got %v", deg, got))
	}
}

func TestIfdSize(t *testing.T) {
	c := qt.New(t)

	ifd := NewIfd()
	ifd.Set(0x100, TypeShort, 640)
	ifd.Set(0x101, TypeShort, 480)
	ifd.Set(0x11a, TypeRational, Rational{72, 1})

	ifdBytes, dataBytes := ifd.size()
	c.Assert(ifdBytes, qt.Equals, uint32(2+3*12+4))
	c.Assert(dataBytes, qt.Equals, uint32(8)) // one out-of-line rational
}
