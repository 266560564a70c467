// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	fileCode   = 9994
	version    = 1000
	headerSize = 100
)

// shpHeader is the decoded 100-byte header shared by .shp and .shx.
type shpHeader struct {
	length int64 // file length in bytes
	shape  ShapeType
	bbox   orb.Bound
	zmin   float64
	zmax   float64
	mmin   float64
	mmax   float64
}

func readSHPHeader(sr *streamReader) (h shpHeader, err error) {
	defer catchStop(&err, sr)

	sr.seek(0)
	if code := sr.read4sbe(); code != fileCode {
		return h, newCorruptHeaderErrorf("file code %d, want %d", code, fileCode)
	}
	sr.skip(20)
	h.length = int64(sr.read4sbe()) * 2
	if v := sr.read4sle(); v != version {
		return h, newCorruptHeaderErrorf("version %d, want %d", v, version)
	}
	h.shape = ShapeType(sr.read4sle())
	h.bbox.Min[0] = sr.readFloat64le()
	h.bbox.Min[1] = sr.readFloat64le()
	h.bbox.Max[0] = sr.readFloat64le()
	h.bbox.Max[1] = sr.readFloat64le()
	h.zmin = sr.readFloat64le()
	h.zmax = sr.readFloat64le()
	h.mmin = sr.readFloat64le()
	h.mmax = sr.readFloat64le()
	return h, nil
}

func writeSHPHeader(sw *streamWriter, h shpHeader) error {
	sw.seek(0)
	sw.write4sbe(fileCode)
	for ri := 0; ri < 5; ri++ {
		sw.write4sbe(0)
	}
	sw.write4sbe(int32(h.length / 2))
	sw.write4sle(version)
	sw.write4sle(int32(h.shape))
	sw.writeFloat64le(h.bbox.Min[0])
	sw.writeFloat64le(h.bbox.Min[1])
	sw.writeFloat64le(h.bbox.Max[0])
	sw.writeFloat64le(h.bbox.Max[1])
	sw.writeFloat64le(h.zmin)
	sw.writeFloat64le(h.zmax)
	sw.writeFloat64le(h.mmin)
	sw.writeFloat64le(h.mmax)
	return sw.err()
}

// fromFileMeasure maps the on-disk M value to the in-memory
// representation: anything at or below the nodata floor becomes NaN.
func fromFileMeasure(m float64) float64 {
	if m <= measureNoData {
		return math.NaN()
	}
	return m
}

func toFileMeasure(m float64) float64 {
	if IsNoData(m) {
		return measureNoData
	}
	return m
}

// readShape decodes one record payload. The shape type has already
// been established by the leading int32; recordEnd is the absolute
// offset just past the record content and bounds the optional
// trailing M section.
func readShape(sr *streamReader, recordEnd int64) *Shape {
	t := ShapeType(sr.read4sle())
	s := NewShape(t)
	if t == Null {
		return s
	}
	if !t.Valid() {
		sr.stop(newCorruptHeaderErrorf("shape type %d", t))
	}

	if t.isSinglePoint() {
		s.Points = []orb.Point{{sr.readFloat64le(), sr.readFloat64le()}}
		if t.hasZ() {
			s.Z = []float64{sr.readFloat64le()}
		}
		if t.hasM() {
			// Some writers omit the trailing measure entirely.
			if sr.pos()+8 <= recordEnd {
				s.M = []float64{fromFileMeasure(sr.readFloat64le())}
			} else {
				s.M = []float64{math.NaN()}
			}
		}
		s.BBox = s.Bound()
		return s
	}

	s.BBox.Min[0] = sr.readFloat64le()
	s.BBox.Min[1] = sr.readFloat64le()
	s.BBox.Max[0] = sr.readFloat64le()
	s.BBox.Max[1] = sr.readFloat64le()

	var nParts int32
	if t.hasParts() {
		nParts = sr.read4sle()
	}
	nPoints := sr.read4sle()
	if nParts < 0 || nPoints < 0 {
		sr.stop(newCorruptHeaderErrorf("negative part or point count"))
	}

	if t.hasParts() {
		s.Parts = make([]int32, nParts)
		for i := range s.Parts {
			s.Parts[i] = sr.read4sle()
		}
	}
	if t == MultiPatch {
		s.PartTypes = make([]int32, nParts)
		for i := range s.PartTypes {
			s.PartTypes[i] = sr.read4sle()
		}
	}

	s.Points = make([]orb.Point, nPoints)
	for i := range s.Points {
		s.Points[i] = orb.Point{sr.readFloat64le(), sr.readFloat64le()}
	}

	if t.hasZ() {
		sr.skip(16) // z range
		s.Z = make([]float64, nPoints)
		for i := range s.Z {
			s.Z[i] = sr.readFloat64le()
		}
	}
	if t.hasM() {
		// The M section (range plus values) is optional; detect its
		// presence from the bytes left before the record end.
		if sr.pos()+16+8*int64(nPoints) <= recordEnd {
			sr.skip(16) // m range
			s.M = make([]float64, nPoints)
			for i := range s.M {
				s.M[i] = fromFileMeasure(sr.readFloat64le())
			}
		} else {
			s.M = make([]float64, nPoints)
			for i := range s.M {
				s.M[i] = math.NaN()
			}
		}
	}
	return s
}

// shapeContentLength returns the record content size in bytes. The
// writer relies on it to emit the record header before the payload.
func shapeContentLength(s *Shape) int {
	t := s.Type
	n := 4 // shape type
	if t == Null {
		return n
	}
	if t.isSinglePoint() {
		n += 16
		if t.hasZ() {
			n += 8
		}
		if t.hasM() {
			n += 8
		}
		return n
	}
	n += 32 // bbox
	if t.hasParts() {
		n += 4 + 4*len(s.Parts)
	}
	if t == MultiPatch {
		n += 4 * len(s.PartTypes)
	}
	n += 4 + 16*len(s.Points)
	if t.hasZ() {
		n += 16 + 8*len(s.Points)
	}
	if t.hasM() {
		n += 16 + 8*len(s.Points)
	}
	return n
}

// writeShapePayload emits the record content. The bbox and ranges are
// recomputed from the vertex data, never taken from the struct.
func writeShapePayload(sw *streamWriter, s *Shape) {
	t := s.Type
	sw.write4sle(int32(t))
	if t == Null {
		return
	}

	if t.isSinglePoint() {
		p := orb.Point{}
		if len(s.Points) > 0 {
			p = s.Points[0]
		}
		sw.writeFloat64le(p[0])
		sw.writeFloat64le(p[1])
		if t.hasZ() {
			sw.writeFloat64le(zAt(s, 0))
		}
		if t.hasM() {
			sw.writeFloat64le(toFileMeasure(mAt(s, 0)))
		}
		return
	}

	b := s.Bound()
	sw.writeFloat64le(b.Min[0])
	sw.writeFloat64le(b.Min[1])
	sw.writeFloat64le(b.Max[0])
	sw.writeFloat64le(b.Max[1])

	if t.hasParts() {
		sw.write4sle(int32(len(s.Parts)))
	}
	sw.write4sle(int32(len(s.Points)))
	if t.hasParts() {
		for _, p := range s.Parts {
			sw.write4sle(p)
		}
	}
	if t == MultiPatch {
		for _, p := range s.PartTypes {
			sw.write4sle(p)
		}
	}
	for _, p := range s.Points {
		sw.writeFloat64le(p[0])
		sw.writeFloat64le(p[1])
	}

	if t.hasZ() {
		zlo, zhi := s.zRange()
		sw.writeFloat64le(zlo)
		sw.writeFloat64le(zhi)
		for i := range s.Points {
			sw.writeFloat64le(zAt(s, i))
		}
	}
	if t.hasM() {
		mlo, mhi := s.mRange()
		sw.writeFloat64le(mlo)
		sw.writeFloat64le(mhi)
		for i := range s.Points {
			sw.writeFloat64le(toFileMeasure(mAt(s, i)))
		}
	}
}

func zAt(s *Shape, i int) float64 {
	if i < len(s.Z) {
		return s.Z[i]
	}
	return 0
}

func mAt(s *Shape, i int) float64 {
	if i < len(s.M) {
		return s.M[i]
	}
	return math.NaN()
}
