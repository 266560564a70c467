// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Geometry converts the shape to an orb.Geometry following the GeoJSON
// mapping used by GIS tooling: single-part polylines become
// LineStrings, multi-part ones MultiLineStrings, and polygon rings are
// regrouped into polygons by winding order (a clockwise ring opens a
// new polygon, counter-clockwise rings are holes of the current one).
// Rings keep the orientation they have in the file.
func (s *Shape) Geometry() orb.Geometry {
	switch s.Type {
	case Null:
		return nil
	case Point, PointZ, PointM:
		if len(s.Points) == 0 {
			return nil
		}
		return s.Points[0]
	case MultiPoint, MultiPointZ, MultiPointM:
		return orb.MultiPoint(s.Points)
	case PolyLine, PolyLineZ, PolyLineM:
		if s.numParts() <= 1 {
			return orb.LineString(s.Points)
		}
		mls := make(orb.MultiLineString, 0, s.numParts())
		for i, np := 0, s.numParts(); i < np; i++ {
			start, end := s.partRange(i)
			mls = append(mls, orb.LineString(s.Points[start:end]))
		}
		return mls
	case Polygon, PolygonZ, PolygonM:
		return s.polygonGeometry()
	default:
		return nil
	}
}

func (s *Shape) polygonGeometry() orb.Geometry {
	rings := make([]orb.Ring, 0, s.numParts())
	for i, np := 0, s.numParts(); i < np; i++ {
		start, end := s.partRange(i)
		rings = append(rings, orb.Ring(s.Points[start:end]))
	}
	if len(rings) == 0 {
		return nil
	}
	if len(rings) == 1 {
		return orb.Polygon{rings[0]}
	}

	// A clockwise ring (negative signed area) is an exterior and starts
	// a new polygon; everything else is a hole of the polygon opened
	// last.
	polys := []orb.Polygon{{rings[0]}}
	for _, ring := range rings[1:] {
		if signedArea(ring) < 0 {
			polys = append(polys, orb.Polygon{ring})
		} else {
			polys[len(polys)-1] = append(polys[len(polys)-1], ring)
		}
	}
	if len(polys) == 1 {
		return polys[0]
	}
	return orb.MultiPolygon(polys)
}

// NewShapeFromGeometry converts an orb.Geometry to a shape, applying
// the shapefile winding convention: exterior rings are forced
// clockwise, holes counter-clockwise, and every ring is closed.
func NewShapeFromGeometry(g orb.Geometry) (*Shape, error) {
	switch v := g.(type) {
	case nil:
		return NewShape(Null), nil
	case orb.Point:
		return &Shape{Type: Point, Points: []orb.Point{v}}, nil
	case orb.MultiPoint:
		s := &Shape{Type: MultiPoint, Points: append([]orb.Point(nil), v...)}
		s.BBox = s.Bound()
		return s, nil
	case orb.LineString:
		return newPartedShape(PolyLine, [][]orb.Point{v}), nil
	case orb.MultiLineString:
		parts := make([][]orb.Point, 0, len(v))
		for _, ls := range v {
			parts = append(parts, ls)
		}
		return newPartedShape(PolyLine, parts), nil
	case orb.Ring:
		return NewShapeFromGeometry(orb.Polygon{v})
	case orb.Polygon:
		return newPartedShape(Polygon, polygonRings(v)), nil
	case orb.MultiPolygon:
		var parts [][]orb.Point
		for _, poly := range v {
			parts = append(parts, polygonRings(poly)...)
		}
		return newPartedShape(Polygon, parts), nil
	case orb.Bound:
		return NewShapeFromGeometry(v.ToPolygon())
	default:
		return nil, fmt.Errorf("shapefile: unsupported geometry type %T", g)
	}
}

// polygonRings returns the rings of a polygon closed and oriented per
// the shapefile convention (exterior clockwise, holes counter-clockwise).
func polygonRings(poly orb.Polygon) [][]orb.Point {
	rings := make([][]orb.Point, 0, len(poly))
	for i, ring := range poly {
		r := closeRing(append([]orb.Point(nil), ring...))
		ccw := signedArea(r) >= 0
		if i == 0 && ccw || i > 0 && !ccw {
			reversePoints(r)
		}
		rings = append(rings, r)
	}
	return rings
}

func closeRing(ring []orb.Point) []orb.Point {
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return ring
}

func reversePoints(pts []orb.Point) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

func newPartedShape(t ShapeType, parts [][]orb.Point) *Shape {
	s := NewShape(t)
	for _, part := range parts {
		s.Parts = append(s.Parts, int32(len(s.Points)))
		s.Points = append(s.Points, part...)
	}
	s.BBox = s.Bound()
	return s
}
