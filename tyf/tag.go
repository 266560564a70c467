// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"bytes"
	"fmt"
	"math"
	"time"
	"unicode/utf16"
)

// Tag is one IFD entry. The raw value is a typed slice matching Type:
// []byte for ASCII and UNDEFINED, []uint16 for SHORT, []Rational for
// RATIONAL and so on.
type Tag struct {
	ID    uint16
	Type  Type
	Count uint32

	raw any
}

// ValueIsOffset reports whether the entry's 4-byte value slot holds an
// offset rather than the value itself. It depends only on the type and
// count: a value fits inline when its total byte size is at most 4.
func (t *Tag) ValueIsOffset() bool {
	return t.Type.Size()*t.Count > 4
}

// dataSize returns the bytes this tag occupies in the data area after
// the IFD, zero for inline values.
func (t *Tag) dataSize() uint32 {
	if !t.ValueIsOffset() {
		return 0
	}
	return t.Type.Size() * t.Count
}

// Raw returns the typed raw slice.
func (t *Tag) Raw() any { return t.raw }

// Value returns the decoded Go value. Tag-specific decoders run first
// (datetimes, GPS coordinates, UTF-16 strings); otherwise ASCII
// becomes a string and single-element slices collapse to a scalar.
func (t *Tag) Value() any {
	if dec, ok := tagDecoders[t.ID]; ok {
		if v, ok := dec(t); ok {
			return v
		}
	}
	return t.genericValue()
}

func (t *Tag) genericValue() any {
	switch v := t.raw.(type) {
	case []byte:
		if t.Type == TypeASCII {
			return string(bytes.TrimRight(v, "\x00"))
		}
		return v
	case []uint16:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []uint32:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []int8:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []int16:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []int32:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []Rational:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []SRational:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []float32:
		if len(v) == 1 {
			return v[0]
		}
		return v
	case []float64:
		if len(v) == 1 {
			return v[0]
		}
		return v
	}
	return t.raw
}

// readValue reads Count values of the tag's type from the current
// stream position.
func (t *Tag) readValue(sr *streamReader) {
	n := int(t.Count)
	switch t.Type {
	case TypeByte:
		t.raw = sr.readBytes(n)
	case TypeASCII, TypeUndefined:
		t.raw = sr.readBytes(n)
	case TypeShort:
		v := make([]uint16, n)
		for i := range v {
			v[i] = sr.read2()
		}
		t.raw = v
	case TypeLong:
		v := make([]uint32, n)
		for i := range v {
			v[i] = sr.read4()
		}
		t.raw = v
	case TypeRational:
		v := make([]Rational, n)
		for i := range v {
			v[i] = Rational{sr.read4(), sr.read4()}
		}
		t.raw = v
	case TypeSByte:
		b := sr.readBytes(n)
		v := make([]int8, n)
		for i := range v {
			v[i] = int8(b[i])
		}
		t.raw = v
	case TypeSShort:
		v := make([]int16, n)
		for i := range v {
			v[i] = int16(sr.read2())
		}
		t.raw = v
	case TypeSLong:
		v := make([]int32, n)
		for i := range v {
			v[i] = sr.read4s()
		}
		t.raw = v
	case TypeSRational:
		v := make([]SRational, n)
		for i := range v {
			v[i] = SRational{sr.read4s(), sr.read4s()}
		}
		t.raw = v
	case TypeFloat:
		v := make([]float32, n)
		for i := range v {
			v[i] = sr.readFloat32()
		}
		t.raw = v
	case TypeDouble:
		v := make([]float64, n)
		for i := range v {
			v[i] = sr.readFloat64()
		}
		t.raw = v
	default:
		sr.stop(newInvalidFormatErrorf("tag 0x%04x: type %d", t.ID, t.Type))
	}
}

// writeValue writes the raw values at the current stream position.
// Inline values are padded with zero bytes to fill the 4-byte slot.
func (t *Tag) writeValue(sw *streamWriter) {
	switch v := t.raw.(type) {
	case []byte:
		sw.write(v)
	case []uint16:
		for _, x := range v {
			sw.write2(x)
		}
	case []uint32:
		for _, x := range v {
			sw.write4(x)
		}
	case []int8:
		for _, x := range v {
			sw.write1(uint8(x))
		}
	case []int16:
		for _, x := range v {
			sw.write2(uint16(x))
		}
	case []int32:
		for _, x := range v {
			sw.write4s(x)
		}
	case []Rational:
		for _, x := range v {
			sw.write4(x.Num)
			sw.write4(x.Den)
		}
	case []SRational:
		for _, x := range v {
			sw.write4s(x.Num)
			sw.write4s(x.Den)
		}
	case []float32:
		for _, x := range v {
			sw.writeFloat32(x)
		}
	case []float64:
		for _, x := range v {
			sw.writeFloat64(x)
		}
	}
	if !t.ValueIsOffset() {
		for pad := 4 - int(t.Type.Size()*t.Count); pad > 0; pad-- {
			sw.write1(0)
		}
	}
}

// NewTag builds a tag from a Go value. Tag-specific encoders run first
// (datetimes, GPS coordinates, UTF-16 strings); otherwise the TIFF
// type is inferred from the Go type.
func NewTag(id uint16, value any) (*Tag, error) {
	if enc, ok := tagEncoders[id]; ok {
		if t, err := enc(id, value); t != nil || err != nil {
			return t, err
		}
	}
	return newTagGeneric(id, value)
}

func newTagGeneric(id uint16, value any) (*Tag, error) {
	switch v := value.(type) {
	case string:
		return newTagRaw(id, TypeASCII, nullTerminated(v)), nil
	case []byte:
		return newTagRaw(id, TypeUndefined, v), nil
	case uint16:
		return newTagRaw(id, TypeShort, []uint16{v}), nil
	case []uint16:
		return newTagRaw(id, TypeShort, v), nil
	case int:
		return newTagRaw(id, TypeLong, []uint32{clampLong(int64(v))}), nil
	case int64:
		return newTagRaw(id, TypeLong, []uint32{clampLong(v)}), nil
	case uint32:
		return newTagRaw(id, TypeLong, []uint32{v}), nil
	case []uint32:
		return newTagRaw(id, TypeLong, v), nil
	case []int:
		out := make([]uint32, len(v))
		for i, x := range v {
			out[i] = clampLong(int64(x))
		}
		return newTagRaw(id, TypeLong, out), nil
	case int32:
		return newTagRaw(id, TypeSLong, []int32{v}), nil
	case []int32:
		return newTagRaw(id, TypeSLong, v), nil
	case float64:
		return newTagRaw(id, TypeDouble, []float64{v}), nil
	case []float64:
		return newTagRaw(id, TypeDouble, v), nil
	case float32:
		return newTagRaw(id, TypeFloat, []float32{v}), nil
	case []float32:
		return newTagRaw(id, TypeFloat, v), nil
	case Rational:
		return newTagRaw(id, TypeRational, []Rational{v}), nil
	case []Rational:
		return newTagRaw(id, TypeRational, v), nil
	case SRational:
		return newTagRaw(id, TypeSRational, []SRational{v}), nil
	case []SRational:
		return newTagRaw(id, TypeSRational, v), nil
	case time.Time:
		return newTagRaw(id, TypeASCII, nullTerminated(v.Format(datetimeLayout))), nil
	default:
		return nil, fmt.Errorf("tyf: tag 0x%04x: cannot encode %T", id, value)
	}
}

// newTagRaw wraps an already-typed slice, computing the count from the
// slice length.
func newTagRaw(id uint16, typ Type, raw any) *Tag {
	t := &Tag{ID: id, Type: typ, raw: raw}
	switch v := raw.(type) {
	case []byte:
		t.Count = uint32(len(v))
	case []uint16:
		t.Count = uint32(len(v))
	case []uint32:
		t.Count = uint32(len(v))
	case []int8:
		t.Count = uint32(len(v))
	case []int16:
		t.Count = uint32(len(v))
	case []int32:
		t.Count = uint32(len(v))
	case []Rational:
		t.Count = uint32(len(v))
	case []SRational:
		t.Count = uint32(len(v))
	case []float32:
		t.Count = uint32(len(v))
	case []float64:
		t.Count = uint32(len(v))
	}
	return t
}

const datetimeLayout = "2006:01:02 15:04:05"

func nullTerminated(s string) []byte {
	b := []byte(s)
	if len(b) == 0 || b[len(b)-1] != 0 {
		b = append(b, 0)
	}
	return b
}

func clampLong(v int64) uint32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}

// tag-specific codecs

type tagDecoder func(*Tag) (any, bool)

type tagEncoder func(id uint16, value any) (*Tag, error)

const (
	tagDateTime          = 0x0132
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004
	tagUserComment       = 0x9286
	tagXPTitle           = 0x9c9b
	tagXPComment         = 0x9c9c
	tagXPAuthor          = 0x9c9d
)

var tagDecoders = map[uint16]tagDecoder{
	tagDateTime:          decodeDatetime,
	tagDateTimeOriginal:  decodeDatetime,
	tagDateTimeDigitized: decodeDatetime,
	tagUserComment:       decodeUserComment,
	tagXPTitle:           decodeUTF16,
	tagXPComment:         decodeUTF16,
	tagXPAuthor:          decodeUTF16,
}

var tagEncoders = map[uint16]tagEncoder{
	tagDateTime:          encodeDatetime,
	tagDateTimeOriginal:  encodeDatetime,
	tagDateTimeDigitized: encodeDatetime,
	tagUserComment:       encodeUserComment,
	tagXPTitle:           encodeUTF16,
	tagXPComment:         encodeUTF16,
	tagXPAuthor:          encodeUTF16,
}

func decodeDatetime(t *Tag) (any, bool) {
	b, ok := t.raw.([]byte)
	if !ok {
		return nil, false
	}
	v, err := time.Parse(datetimeLayout, string(bytes.TrimRight(b, "\x00")))
	if err != nil {
		return nil, false
	}
	return v, true
}

func encodeDatetime(id uint16, value any) (*Tag, error) {
	v, ok := value.(time.Time)
	if !ok {
		return nil, nil // fall through to the generic path
	}
	return newTagRaw(id, TypeASCII, nullTerminated(v.Format(datetimeLayout))), nil
}

func decodeUserComment(t *Tag) (any, bool) {
	b, ok := t.raw.([]byte)
	if !ok || len(b) < 8 {
		return nil, false
	}
	return string(bytes.TrimRight(b[8:], "\x00")), true
}

func encodeUserComment(id uint16, value any) (*Tag, error) {
	s, ok := value.(string)
	if !ok {
		return nil, nil
	}
	b := append([]byte("ASCII\x00\x00\x00"), s...)
	return newTagRaw(id, TypeUndefined, b), nil
}

// The XP* tags carry UTF-16LE text typed as BYTE.
func decodeUTF16(t *Tag) (any, bool) {
	b, ok := t.raw.([]byte)
	if !ok || len(b)%2 != 0 {
		return nil, false
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	for len(u) > 0 && u[len(u)-1] == 0 {
		u = u[:len(u)-1]
	}
	return string(utf16.Decode(u)), true
}

func encodeUTF16(id uint16, value any) (*Tag, error) {
	s, ok := value.(string)
	if !ok {
		return nil, nil
	}
	u := utf16.Encode([]rune(s))
	b := make([]byte, 0, 2*len(u)+2)
	for _, x := range u {
		b = append(b, byte(x), byte(x>>8))
	}
	b = append(b, 0, 0)
	return newTagRaw(id, TypeByte, b), nil
}

// GPS coordinate helpers shared by SetLocation and Location.

func encodeDMS(deg float64) []Rational {
	deg = math.Abs(deg)
	d := math.Floor(deg)
	minf := (deg - d) * 60
	m := math.Floor(minf)
	s := (minf - m) * 60
	if s >= 60-1e-4 {
		s = 0
		m++
	}
	if m >= 60-1e-4 {
		m = 0
		d++
	}
	return []Rational{
		{uint32(d), 1},
		{uint32(m), 1},
		{uint32(math.Round(s * 1e4)), 1e4},
	}
}

func decodeDMS(v []Rational) float64 {
	var deg float64
	div := 1.0
	for _, r := range v {
		deg += r.Float() / div
		div *= 60
	}
	return deg
}
