// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

// Package shapefile reads and writes the ESRI Shapefile triad: .shp
// (geometry), .shx (geometry index) and .dbf (attributes).
//
// A Reader parses the file headers eagerly and defers record payloads
// until requested; random access uses the .shx index when present and
// falls back to a linear scan of the .shp otherwise. A Writer emits
// records incrementally and backpatches the three headers on Close.
package shapefile

import (
	"math"

	"github.com/paulmach/orb"
)

// ShapeType is the geometry type of a shapefile, encoded as a
// little-endian int32 in the file header and in every record.
type ShapeType int32

const (
	Null        ShapeType = 0
	Point       ShapeType = 1
	PolyLine    ShapeType = 3
	Polygon     ShapeType = 5
	MultiPoint  ShapeType = 8
	PointZ      ShapeType = 11
	PolyLineZ   ShapeType = 13
	PolygonZ    ShapeType = 15
	MultiPointZ ShapeType = 18
	PointM      ShapeType = 21
	PolyLineM   ShapeType = 23
	PolygonM    ShapeType = 25
	MultiPointM ShapeType = 28
	MultiPatch  ShapeType = 31
)

var shapeTypeNames = map[ShapeType]string{
	Null:        "NULL",
	Point:       "POINT",
	PolyLine:    "POLYLINE",
	Polygon:     "POLYGON",
	MultiPoint:  "MULTIPOINT",
	PointZ:      "POINTZ",
	PolyLineZ:   "POLYLINEZ",
	PolygonZ:    "POLYGONZ",
	MultiPointZ: "MULTIPOINTZ",
	PointM:      "POINTM",
	PolyLineM:   "POLYLINEM",
	PolygonM:    "POLYGONM",
	MultiPointM: "MULTIPOINTM",
	MultiPatch:  "MULTIPATCH",
}

func (t ShapeType) String() string {
	if s, ok := shapeTypeNames[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// Valid reports whether t is one of the shape type codes defined by the
// shapefile specification.
func (t ShapeType) Valid() bool {
	_, ok := shapeTypeNames[t]
	return ok
}

func (t ShapeType) hasBBox() bool {
	switch t {
	case PolyLine, Polygon, MultiPoint, PolyLineZ, PolygonZ, MultiPointZ,
		PolyLineM, PolygonM, MultiPointM, MultiPatch:
		return true
	}
	return false
}

func (t ShapeType) hasParts() bool {
	switch t {
	case PolyLine, Polygon, PolyLineZ, PolygonZ, PolyLineM, PolygonM, MultiPatch:
		return true
	}
	return false
}

func (t ShapeType) hasZ() bool {
	switch t {
	case PointZ, PolyLineZ, PolygonZ, MultiPointZ, MultiPatch:
		return true
	}
	return false
}

func (t ShapeType) hasM() bool {
	switch t {
	case PointZ, PolyLineZ, PolygonZ, MultiPointZ, MultiPatch,
		PointM, PolyLineM, PolygonM, MultiPointM:
		return true
	}
	return false
}

func (t ShapeType) isSinglePoint() bool {
	return t == Point || t == PointZ || t == PointM
}

// measureNoData is the sentinel below which an M value means "no
// measurement". The spec reserves everything smaller than -10e38; we
// write exactly -10e38 for missing measures, as external tools do.
const measureNoData = -10e38

// NoData is the M value written to the file for a missing measure.
// In memory a missing measure is represented as NaN.
const NoData = measureNoData

// IsNoData reports whether an in-memory M value represents a missing
// measure.
func IsNoData(m float64) bool {
	return math.IsNaN(m)
}

// Shape is a single geometry record.
//
// Points holds the XY vertices of every part, flattened; Parts holds
// the index into Points where each part starts. Z and M, when present,
// are parallel to Points. A missing M value is NaN (see IsNoData).
type Shape struct {
	Type      ShapeType
	BBox      orb.Bound
	Parts     []int32
	PartTypes []int32 // MultiPatch only, parallel to Parts
	Points    []orb.Point
	Z         []float64
	M         []float64
}

// NewShape returns an empty shape of the given type.
func NewShape(t ShapeType) *Shape {
	return &Shape{Type: t}
}

// Bound computes the XY bounding box from the shape's points.
// The zero Bound is returned for shapes with no points.
func (s *Shape) Bound() orb.Bound {
	if len(s.Points) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: s.Points[0], Max: s.Points[0]}
	for _, p := range s.Points[1:] {
		b = b.Extend(p)
	}
	return b
}

// zRange returns the min and max of the Z values, or zeros if none.
func (s *Shape) zRange() (float64, float64) {
	if len(s.Z) == 0 {
		return 0, 0
	}
	lo, hi := s.Z[0], s.Z[0]
	for _, z := range s.Z[1:] {
		lo = math.Min(lo, z)
		hi = math.Max(hi, z)
	}
	return lo, hi
}

// mRange returns the min and max of the M values, skipping missing
// measures. Zeros are returned if every measure is missing.
func (s *Shape) mRange() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, m := range s.M {
		if IsNoData(m) {
			continue
		}
		lo = math.Min(lo, m)
		hi = math.Max(hi, m)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// numParts returns the part count, treating a single-part shape with an
// empty Parts slice as one part.
func (s *Shape) numParts() int {
	if len(s.Parts) == 0 && len(s.Points) > 0 {
		return 1
	}
	return len(s.Parts)
}

// partRange returns the [start, end) point index range of part i.
func (s *Shape) partRange(i int) (int, int) {
	if len(s.Parts) == 0 {
		return 0, len(s.Points)
	}
	start := int(s.Parts[i])
	end := len(s.Points)
	if i+1 < len(s.Parts) {
		end = int(s.Parts[i+1])
	}
	return start, end
}

// signedArea returns the signed area enclosed by a ring using the
// shoelace formula over the closed ring. A value >= 0 indicates a
// counter-clockwise oriented ring.
func signedArea(ring []orb.Point) float64 {
	n := len(ring)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		p := ring[i]
		next := ring[(i+1)%n]
		prev := ring[(i+n-1)%n]
		sum += p[0] * (next[1] - prev[1])
	}
	return sum / 2
}
