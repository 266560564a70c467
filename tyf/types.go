// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

// Package tyf reads and writes TIFF tag structures: the chained IFD
// tree with its EXIF, GPS and interoperability sub-IFDs, raster data
// blocks and the GeoTIFF key directory.
//
// The package is a tag codec, not an image decoder; pixel data is
// carried as opaque strips or tiles.
package tyf

import "fmt"

// Type is a TIFF field data type code.
type Type uint16

const (
	TypeByte      Type = 1
	TypeASCII     Type = 2
	TypeShort     Type = 3
	TypeLong      Type = 4
	TypeRational  Type = 5
	TypeSByte     Type = 6
	TypeUndefined Type = 7
	TypeSShort    Type = 8
	TypeSLong     Type = 9
	TypeSRational Type = 10
	TypeFloat     Type = 11
	TypeDouble    Type = 12
)

var typeSizes = [...]uint32{
	TypeByte:      1,
	TypeASCII:     1,
	TypeShort:     2,
	TypeLong:      4,
	TypeRational:  8,
	TypeSByte:     1,
	TypeUndefined: 1,
	TypeSShort:    2,
	TypeSLong:     4,
	TypeSRational: 8,
	TypeFloat:     4,
	TypeDouble:    8,
}

var typeNames = [...]string{
	TypeByte:      "BYTE",
	TypeASCII:     "ASCII",
	TypeShort:     "SHORT",
	TypeLong:      "LONG",
	TypeRational:  "RATIONAL",
	TypeSByte:     "SBYTE",
	TypeUndefined: "UNDEFINED",
	TypeSShort:    "SSHORT",
	TypeSLong:     "SLONG",
	TypeSRational: "SRATIONAL",
	TypeFloat:     "FLOAT",
	TypeDouble:    "DOUBLE",
}

// Size returns the byte size of one value of this type.
func (t Type) Size() uint32 {
	if !t.valid() {
		return 0
	}
	return typeSizes[t]
}

func (t Type) valid() bool {
	return t >= TypeByte && t <= TypeDouble
}

func (t Type) String() string {
	if !t.valid() {
		return fmt.Sprintf("TYPE(%d)", uint16(t))
	}
	return typeNames[t]
}

// Rational is an unsigned TIFF rational.
type Rational struct {
	Num uint32
	Den uint32
}

// Float returns the rational as a float64, +Inf for a zero
// denominator.
func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// SRational is a signed TIFF rational.
type SRational struct {
	Num int32
	Den int32
}

// Float returns the rational as a float64.
func (r SRational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

func (r SRational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}
