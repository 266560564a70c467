// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
)

// Writer writes the shapefile triad incrementally. Records are
// appended as they arrive; the three headers carry placeholders until
// Close backpatches them with the final counts, lengths and bounding
// boxes. Not safe for concurrent use.
type Writer struct {
	opts *Options

	shp *streamWriter
	shx *streamWriter
	dbf *streamWriter

	closers []io.Closer
	closed  bool

	// shapeType is pinned by the first non-null shape written.
	shapeType ShapeType

	fields       []Field
	fieldsFrozen bool
	dbfStarted   bool

	numShapes  int
	numRecords int

	bbox    orb.Bound
	hasBBox bool
	zmin    float64
	zmax    float64
	hasZ    bool
	mmin    float64
	mmax    float64
	hasM    bool
}

// Create creates base.shp, base.shx and base.dbf under path, making
// parent directories as needed. Any extension on path is dropped.
func Create(path string, opts *Options) (*Writer, error) {
	base := trimShapefileExt(path)
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	var files [3]*os.File
	var closers []io.Closer
	for i, ext := range []string{".shp", ".shx", ".dbf"} {
		f, err := os.Create(base + ext)
		if err != nil {
			for _, c := range closers {
				c.Close()
			}
			return nil, err
		}
		files[i] = f
		closers = append(closers, f)
	}
	w, err := NewWriter(files[0], files[1], files[2], opts)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	w.closers = closers
	return w, nil
}

// NewWriter wraps already-open streams. Any component may be nil; the
// corresponding writes then fail with ErrNoSHP or ErrNoDBF. Placeholder
// .shp and .shx headers are written immediately so record offsets are
// final from the first write.
func NewWriter(shp, shx, dbf io.WriteSeeker, opts *Options) (*Writer, error) {
	w := &Writer{opts: optionsOrDefault(opts), shapeType: Null}
	if shp != nil {
		w.shp = newStreamWriter(shp)
		if err := writeSHPHeader(w.shp, shpHeader{}); err != nil {
			return nil, err
		}
	}
	if shx != nil {
		w.shx = newStreamWriter(shx)
		if err := writeSHPHeader(w.shx, shpHeader{}); err != nil {
			return nil, err
		}
	}
	if dbf != nil {
		w.dbf = newStreamWriter(dbf)
	}
	return w, nil
}

// NumShapes returns the number of geometry records written so far.
func (w *Writer) NumShapes() int { return w.numShapes }

// NumRecords returns the number of attribute rows written so far.
func (w *Writer) NumRecords() int { return w.numRecords }

// Fields returns the dbf columns declared so far.
func (w *Writer) Fields() []Field { return w.fields }

// AddField declares a dbf column. Date fields are forced to size 8
// with no decimals and logical fields to size 1, matching what dBASE
// consumers expect. Fields cannot be added once the first attribute
// row has been written.
func (w *Writer) AddField(name string, typ FieldType, size, decimal int) error {
	if w.fieldsFrozen {
		return ErrFieldsFrozen
	}
	if len(w.fields) >= maxFields {
		return ErrTooManyFields
	}
	switch typ {
	case FieldDate:
		size, decimal = 8, 0
	case FieldLogical:
		size, decimal = 1, 0
	case FieldCharacter, FieldNumber, FieldFloat:
	default:
		return fmt.Errorf("shapefile: unknown field type %q", string(typ))
	}
	if size < 1 || size > 255 {
		return fmt.Errorf("shapefile: field %s: size %d out of range", name, size)
	}
	// Descriptor names are 10 bytes plus a NUL terminator.
	if len(name) > 10 {
		name = name[:10]
	}
	w.fields = append(w.fields, Field{Name: name, Type: typ, Size: size, Decimal: decimal})
	return nil
}

// WriteShape appends a geometry record. The first non-null shape pins
// the file's shape type; later shapes must match it. A nil shape is
// written as a null record.
func (w *Writer) WriteShape(s *Shape) error {
	if w.shp == nil {
		return ErrNoSHP
	}
	if w.closed {
		return os.ErrClosed
	}
	if s == nil {
		s = NewShape(Null)
	}
	if s.Type != Null {
		if w.shapeType == Null {
			w.shapeType = s.Type
		} else if s.Type != w.shapeType {
			return fmt.Errorf("%w: %s in a %s file", ErrShapeTypeMismatch, s.Type, w.shapeType)
		}
	}

	contentLen := shapeContentLength(s)
	offset := w.shp.seekEnd()

	w.shp.write4sbe(int32(w.numShapes + 1))
	w.shp.write4sbe(int32(contentLen / 2))
	writeShapePayload(w.shp, s)
	if err := w.shp.err(); err != nil {
		return err
	}

	if w.shx != nil {
		w.shx.seekEnd()
		w.shx.write4sbe(int32(offset / 2))
		w.shx.write4sbe(int32(contentLen / 2))
		if err := w.shx.err(); err != nil {
			return err
		}
	}

	w.foldBounds(s)
	w.numShapes++
	return nil
}

func (w *Writer) foldBounds(s *Shape) {
	if len(s.Points) == 0 {
		return
	}
	b := s.Bound()
	if !w.hasBBox {
		w.bbox = b
		w.hasBBox = true
	} else {
		w.bbox = w.bbox.Extend(b.Min).Extend(b.Max)
	}
	if s.Type.hasZ() {
		lo, hi := s.zRange()
		if !w.hasZ {
			w.zmin, w.zmax = lo, hi
			w.hasZ = true
		} else {
			w.zmin = math.Min(w.zmin, lo)
			w.zmax = math.Max(w.zmax, hi)
		}
	}
	if s.Type.hasM() {
		lo, hi := s.mRange()
		if !w.hasM {
			w.mmin, w.mmax = lo, hi
			w.hasM = true
		} else {
			w.mmin = math.Min(w.mmin, lo)
			w.mmax = math.Max(w.mmax, hi)
		}
	}
}

// WriteNull appends a null geometry record.
func (w *Writer) WriteNull() error {
	return w.WriteShape(NewShape(Null))
}

// WriteGeometry converts an orb geometry and appends it.
func (w *Writer) WriteGeometry(g orb.Geometry) error {
	s, err := NewShapeFromGeometry(g)
	if err != nil {
		return err
	}
	return w.WriteShape(s)
}

// WritePoint appends a 2D point.
func (w *Writer) WritePoint(x, y float64) error {
	return w.WriteShape(&Shape{Type: Point, Points: []orb.Point{{x, y}}})
}

// WritePointM appends a measured point. Pass NoData (or NaN) for a
// missing measure.
func (w *Writer) WritePointM(x, y, m float64) error {
	return w.WriteShape(&Shape{Type: PointM, Points: []orb.Point{{x, y}}, M: []float64{fromFileMeasure(m)}})
}

// WritePointZ appends a 3D point.
func (w *Writer) WritePointZ(x, y, z, m float64) error {
	return w.WriteShape(&Shape{
		Type:   PointZ,
		Points: []orb.Point{{x, y}},
		Z:      []float64{z},
		M:      []float64{fromFileMeasure(m)},
	})
}

// WriteMultiPoint appends a 2D multipoint.
func (w *Writer) WriteMultiPoint(pts []orb.Point) error {
	s := &Shape{Type: MultiPoint, Points: append([]orb.Point(nil), pts...)}
	return w.WriteShape(s)
}

// WriteMultiPointM appends a measured multipoint. m is parallel to
// pts; a short slice leaves the remaining measures missing.
func (w *Writer) WriteMultiPointM(pts []orb.Point, m []float64) error {
	s := &Shape{Type: MultiPointM, Points: append([]orb.Point(nil), pts...), M: m}
	return w.WriteShape(s)
}

// WriteMultiPointZ appends a 3D multipoint.
func (w *Writer) WriteMultiPointZ(pts []orb.Point, z, m []float64) error {
	s := &Shape{Type: MultiPointZ, Points: append([]orb.Point(nil), pts...), Z: z, M: m}
	return w.WriteShape(s)
}

// WriteLine appends a polyline with one part per argument.
func (w *Writer) WriteLine(parts ...[]orb.Point) error {
	return w.WriteShape(newPartedShape(PolyLine, parts))
}

// WriteLineM appends a measured polyline; m holds one measure slice
// per part.
func (w *Writer) WriteLineM(parts [][]orb.Point, m [][]float64) error {
	s := newPartedShape(PolyLineM, parts)
	s.M = flattenMeasures(parts, m)
	return w.WriteShape(s)
}

// WriteLineZ appends a 3D polyline; z and m hold one slice per part.
func (w *Writer) WriteLineZ(parts [][]orb.Point, z, m [][]float64) error {
	s := newPartedShape(PolyLineZ, parts)
	s.Z = flattenValues(parts, z, 0)
	s.M = flattenMeasures(parts, m)
	return w.WriteShape(s)
}

// WritePolygon appends a polygon with one ring per argument. Rings are
// closed; the exterior is forced clockwise and holes counter-clockwise.
func (w *Writer) WritePolygon(rings ...[]orb.Point) error {
	poly := make(orb.Polygon, 0, len(rings))
	for _, ring := range rings {
		poly = append(poly, orb.Ring(ring))
	}
	return w.WriteShape(newPartedShape(Polygon, polygonRings(poly)))
}

// WritePolygonM appends a measured polygon; m holds one measure slice
// per ring, parallel to its vertices.
func (w *Writer) WritePolygonM(rings [][]orb.Point, m [][]float64) error {
	parts, _, ms := orientedRings(rings, nil, m)
	s := newPartedShape(PolygonM, parts)
	s.M = flattenMeasures(parts, ms)
	return w.WriteShape(s)
}

// WritePolygonZ appends a 3D polygon; z and m hold one slice per ring.
func (w *Writer) WritePolygonZ(rings [][]orb.Point, z, m [][]float64) error {
	parts, zs, ms := orientedRings(rings, z, m)
	s := newPartedShape(PolygonZ, parts)
	s.Z = flattenValues(parts, zs, 0)
	s.M = flattenMeasures(parts, ms)
	return w.WriteShape(s)
}

// orientedRings closes and orients polygon rings the way polygonRings
// does while keeping the per-vertex z and m slices aligned through the
// closing vertex and any reversal.
func orientedRings(rings [][]orb.Point, z, m [][]float64) (parts [][]orb.Point, zOut, mOut [][]float64) {
	zOut = make([][]float64, len(rings))
	mOut = make([][]float64, len(rings))
	for i, ring := range rings {
		r := append([]orb.Point(nil), ring...)
		zi := padValues(z, i, len(r), 0)
		mi := padValues(m, i, len(r), math.NaN())
		if len(r) > 0 && r[0] != r[len(r)-1] {
			r = append(r, r[0])
			zi = append(zi, zi[0])
			mi = append(mi, mi[0])
		}
		ccw := signedArea(r) >= 0
		if i == 0 && ccw || i > 0 && !ccw {
			reversePoints(r)
			reverseFloats(zi)
			reverseFloats(mi)
		}
		parts = append(parts, r)
		zOut[i], mOut[i] = zi, mi
	}
	return parts, zOut, mOut
}

func padValues(vals [][]float64, i, n int, missing float64) []float64 {
	out := make([]float64, n)
	for j := range out {
		out[j] = missing
		if i < len(vals) && j < len(vals[i]) {
			out[j] = vals[i][j]
		}
	}
	return out
}

func reverseFloats(v []float64) {
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
}

// WriteMultiPatch appends a multipatch; partTypes is parallel to
// parts.
func (w *Writer) WriteMultiPatch(partTypes []int32, parts [][]orb.Point, z, m [][]float64) error {
	s := newPartedShape(MultiPatch, parts)
	s.PartTypes = append([]int32(nil), partTypes...)
	s.Z = flattenValues(parts, z, 0)
	s.M = flattenMeasures(parts, m)
	return w.WriteShape(s)
}

func flattenValues(parts [][]orb.Point, vals [][]float64, missing float64) []float64 {
	var out []float64
	for i, part := range parts {
		for j := range part {
			v := missing
			if i < len(vals) && j < len(vals[i]) {
				v = vals[i][j]
			}
			out = append(out, v)
		}
	}
	return out
}

func flattenMeasures(parts [][]orb.Point, vals [][]float64) []float64 {
	out := flattenValues(parts, vals, math.NaN())
	for i, v := range out {
		out[i] = fromFileMeasure(v)
	}
	return out
}

// startDBF writes the dbf header with a zero record count and freezes
// the field list. The count is patched in Close.
func (w *Writer) startDBF() error {
	if w.dbfStarted {
		return nil
	}
	if err := writeDBFHeader(w.dbf, 0, w.fields); err != nil {
		return err
	}
	w.dbfStarted = true
	w.fieldsFrozen = true
	return nil
}

// WriteRecord appends an attribute row with positional values. Missing
// trailing values are written as nulls; extra values are ignored.
func (w *Writer) WriteRecord(values ...any) error {
	if w.dbf == nil {
		return ErrNoDBF
	}
	if w.closed {
		return os.ErrClosed
	}
	if len(values) > len(w.fields) {
		values = values[:len(w.fields)]
	}
	// Encode the whole row before touching the file so a bad value
	// cannot leave a partial record behind.
	row := make([]byte, 1, dbfRecordLength(w.fields))
	row[0] = ' ' // deletion flag
	for i, f := range w.fields {
		var v any
		if i < len(values) {
			v = values[i]
		}
		b, err := encodeFieldValue(f, v, w.opts)
		if err != nil {
			return err
		}
		row = append(row, b...)
	}

	if err := w.startDBF(); err != nil {
		return err
	}
	w.dbf.seekEnd()
	w.dbf.write(row)
	if err := w.dbf.err(); err != nil {
		return err
	}
	w.numRecords++
	return nil
}

// WriteRecordValues appends an attribute row from a name-to-value map.
// Fields absent from the map are written as nulls; unknown names are
// an error.
func (w *Writer) WriteRecordValues(values map[string]any) error {
	index := buildFieldIndex(w.fields)
	for name := range values {
		if _, ok := index[name]; !ok {
			return fmt.Errorf("shapefile: no field named %q", name)
		}
	}
	row := make([]any, len(w.fields))
	for i, f := range w.fields {
		row[i] = values[f.Name]
	}
	return w.WriteRecord(row...)
}

// balance pads the lagging side with null shapes or null records until
// geometry and attribute counts match. It runs from Close when
// AutoBalance is set, so padding lands after the caller's records
// rather than interleaved with them.
func (w *Writer) balance() error {
	if w.shp == nil || w.dbf == nil {
		return nil
	}
	for w.numShapes < w.numRecords {
		if err := w.WriteNull(); err != nil {
			return err
		}
	}
	for w.numRecords < w.numShapes {
		if err := w.WriteRecord(); err != nil {
			return err
		}
	}
	return nil
}

// Close backpatches the three headers and closes any files opened by
// Create. It is idempotent. When auto-balancing is off and the shape
// and record counts differ, Close fails with ErrUnbalanced before
// touching the headers.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	if w.shp != nil && w.dbf != nil {
		if w.opts.AutoBalance {
			if err := w.balance(); err != nil {
				return err
			}
		} else if w.numShapes != w.numRecords {
			return fmt.Errorf("%w: %d shapes, %d records", ErrUnbalanced, w.numShapes, w.numRecords)
		}
	}
	w.closed = true

	h := shpHeader{shape: w.shapeType}
	if w.hasBBox {
		h.bbox = w.bbox
	}
	if w.hasZ {
		h.zmin, h.zmax = w.zmin, w.zmax
	}
	if w.hasM {
		h.mmin, h.mmax = w.mmin, w.mmax
	}

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	if w.shp != nil {
		h.length = w.shp.seekEnd()
		keep(writeSHPHeader(w.shp, h))
	}
	if w.shx != nil {
		h.length = w.shx.seekEnd()
		keep(writeSHPHeader(w.shx, h))
	}
	if w.dbf != nil {
		keep(writeDBFHeader(w.dbf, uint32(w.numRecords), w.fields))
	}

	for _, c := range w.closers {
		keep(c.Close())
	}
	w.closers = nil
	return first
}
