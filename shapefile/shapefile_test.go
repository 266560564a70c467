// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/paulmach/orb"
	"golang.org/x/text/encoding/charmap"

	"github.com/gisbits/geobin/shapefile"
)

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}

func newTriad(t *testing.T, opts *shapefile.Options) (*shapefile.Writer, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "test")
	w, err := shapefile.Create(base, opts)
	if err != nil {
		t.Fatal(err)
	}
	return w, base
}

func TestRoundTripPolygonWithAttributes(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.AddField("NAME", shapefile.FieldCharacter, 20, 0), qt.IsNil)
	c.Assert(w.AddField("AREA", shapefile.FieldNumber, 12, 3), qt.IsNil)
	c.Assert(w.AddField("BUILT", shapefile.FieldDate, 0, 0), qt.IsNil)
	c.Assert(w.AddField("ACTIVE", shapefile.FieldLogical, 0, 0), qt.IsNil)

	// Counter-clockwise input ring; the writer must flip it clockwise.
	ring := []orb.Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	c.Assert(w.WritePolygon(ring), qt.IsNil)
	c.Assert(w.WriteRecord("plaza", 100.5, time.Date(1999, 4, 1, 0, 0, 0, 0, time.UTC), true), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	c.Assert(r.ShapeType(), qt.Equals, shapefile.Polygon)
	c.Assert(r.BBox(), qt.Equals, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{10, 10}})

	n, err := r.NumShapes()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)
	c.Assert(r.NumRecords(), qt.Equals, 1)

	s, err := r.Shape(0)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Type, qt.Equals, shapefile.Polygon)
	c.Assert(len(s.Points), qt.Equals, 5)
	// Exterior ring must come back clockwise.
	c.Assert(s.Points[1], qt.Equals, orb.Point{0, 10})

	rec, err := r.Record(0)
	c.Assert(err, qt.IsNil)
	name, ok := rec.String("NAME")
	c.Assert(ok, qt.IsTrue)
	c.Assert(name, qt.Equals, "plaza")
	area, ok := rec.Float("AREA")
	c.Assert(ok, qt.IsTrue)
	c.Assert(area, qt.Equals, 100.5)
	built, ok := rec.Date("BUILT")
	c.Assert(ok, qt.IsTrue)
	c.Assert(built.Year(), qt.Equals, 1999)
	active, ok := rec.Bool("ACTIVE")
	c.Assert(ok, qt.IsTrue)
	c.Assert(active, qt.IsTrue)
}

func TestHeaderConsistency(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.AddField("ID", shapefile.FieldNumber, 4, 0), qt.IsNil)
	pts := [][2]float64{{1, 2}, {-3, 7}, {5, -1}}
	for i, p := range pts {
		c.Assert(w.WritePoint(p[0], p[1]), qt.IsNil)
		c.Assert(w.WriteRecord(i), qt.IsNil)
	}
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	c.Assert(r.BBox(), qt.Equals, orb.Bound{Min: orb.Point{-3, -1}, Max: orb.Point{5, 7}})
	n, err := r.NumShapes()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 3)

	// Every shape reachable both by index and by iteration.
	it := r.IterShapes()
	i := 0
	for it.Next() {
		s, err := r.Shape(i)
		c.Assert(err, qt.IsNil)
		c.Assert(s.Points, qt.DeepEquals, it.Shape().Points)
		i++
	}
	c.Assert(it.Err(), qt.IsNil)
	c.Assert(i, qt.Equals, 3)

	// The big-endian file-length headers count 16-bit words: the shp
	// one matches the file size, the shx one the entry table.
	shp, err := os.ReadFile(base + ".shp")
	c.Assert(err, qt.IsNil)
	c.Assert(binary.BigEndian.Uint32(shp[24:28]), qt.Equals, uint32(len(shp)/2))
	shx, err := os.ReadFile(base + ".shx")
	c.Assert(err, qt.IsNil)
	c.Assert(binary.BigEndian.Uint32(shx[24:28]), qt.Equals, uint32((100+8*3)/2))
	c.Assert(len(shx), qt.Equals, 100+8*3)
}

func TestNegativeIndexAndOutOfRange(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.WritePoint(1, 1), qt.IsNil)
	c.Assert(w.WritePoint(2, 2), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	s, err := r.Shape(-1)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Points[0], qt.Equals, orb.Point{2, 2})

	_, err = r.Shape(2)
	c.Assert(err, qt.ErrorIs, shapefile.ErrIndexOutOfRange)
	_, err = r.Shape(-3)
	c.Assert(err, qt.ErrorIs, shapefile.ErrIndexOutOfRange)
}

func TestUnbalancedClose(t *testing.T) {
	c := qt.New(t)

	w, _ := newTriad(t, nil)
	c.Assert(w.AddField("ID", shapefile.FieldNumber, 4, 0), qt.IsNil)
	c.Assert(w.WritePoint(0, 0), qt.IsNil)
	c.Assert(w.WritePoint(1, 1), qt.IsNil)
	c.Assert(w.WriteRecord(1), qt.IsNil)
	c.Assert(w.Close(), qt.ErrorIs, shapefile.ErrUnbalanced)
}

func TestAutoBalance(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, &shapefile.Options{AutoBalance: true})
	c.Assert(w.AddField("ID", shapefile.FieldNumber, 4, 0), qt.IsNil)
	c.Assert(w.WritePoint(0, 0), qt.IsNil)
	c.Assert(w.WritePoint(1, 1), qt.IsNil)
	c.Assert(w.WriteRecord(7), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	n, err := r.NumShapes()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
	c.Assert(r.NumRecords(), qt.Equals, 2)

	// The padding record is all nulls.
	rec, err := r.Record(1)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Value("ID"), qt.IsNil)
}

func TestMeasureNoData(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.WritePointM(3, 4, 12.5), qt.IsNil)
	c.Assert(w.WritePointM(5, 6, shapefile.NoData), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	s0, err := r.Shape(0)
	c.Assert(err, qt.IsNil)
	c.Assert(s0.M[0], qt.Equals, 12.5)

	s1, err := r.Shape(1)
	c.Assert(err, qt.IsNil)
	c.Assert(shapefile.IsNoData(s1.M[0]), qt.IsTrue)
}

func TestNullAttributeConventions(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.AddField("N", shapefile.FieldNumber, 8, 0), qt.IsNil)
	c.Assert(w.AddField("D", shapefile.FieldDate, 0, 0), qt.IsNil)
	c.Assert(w.AddField("L", shapefile.FieldLogical, 0, 0), qt.IsNil)
	c.Assert(w.AddField("C", shapefile.FieldCharacter, 10, 0), qt.IsNil)
	c.Assert(w.WriteNull(), qt.IsNil)
	c.Assert(w.WriteRecord(nil, nil, nil, nil), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	rec, err := r.Record(0)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Value("N"), qt.IsNil)
	c.Assert(rec.Value("D"), qt.IsNil)
	c.Assert(rec.Value("L"), qt.IsNil)
	c.Assert(rec.Value("C"), qt.Equals, "")
}

func TestFieldSizeForcingAndLimit(t *testing.T) {
	c := qt.New(t)

	w, _ := newTriad(t, nil)
	c.Assert(w.AddField("WHEN", shapefile.FieldDate, 30, 5), qt.IsNil)
	c.Assert(w.AddField("FLAG", shapefile.FieldLogical, 9, 2), qt.IsNil)
	fields := w.Fields()
	c.Assert(fields[0].Size, qt.Equals, 8)
	c.Assert(fields[0].Decimal, qt.Equals, 0)
	c.Assert(fields[1].Size, qt.Equals, 1)

	for i := len(fields); i < 2046; i++ {
		c.Assert(w.AddField("F", shapefile.FieldCharacter, 1, 0), qt.IsNil)
	}
	c.Assert(w.AddField("F", shapefile.FieldCharacter, 1, 0), qt.ErrorIs, shapefile.ErrTooManyFields)
}

func TestFieldOverflow(t *testing.T) {
	c := qt.New(t)

	w, _ := newTriad(t, nil)
	c.Assert(w.AddField("N", shapefile.FieldNumber, 3, 0), qt.IsNil)
	c.Assert(w.WriteRecord(12345), qt.ErrorIs, shapefile.ErrFieldOverflow)
}

func TestShapeTypeMismatch(t *testing.T) {
	c := qt.New(t)

	w, _ := newTriad(t, nil)
	c.Assert(w.WritePoint(0, 0), qt.IsNil)
	c.Assert(w.WriteNull(), qt.IsNil) // nulls are always allowed
	err := w.WriteLine([]orb.Point{{0, 0}, {1, 1}})
	c.Assert(err, qt.ErrorIs, shapefile.ErrShapeTypeMismatch)
}

func TestFieldsFrozenAfterFirstRecord(t *testing.T) {
	c := qt.New(t)

	w, _ := newTriad(t, nil)
	c.Assert(w.AddField("A", shapefile.FieldCharacter, 5, 0), qt.IsNil)
	c.Assert(w.WriteRecord("x"), qt.IsNil)
	c.Assert(w.AddField("B", shapefile.FieldCharacter, 5, 0), qt.ErrorIs, shapefile.ErrFieldsFrozen)
}

func TestReadWithoutIndex(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.WriteLine([]orb.Point{{0, 0}, {4, 4}}, []orb.Point{{1, 0}, {5, 0}}), qt.IsNil)
	c.Assert(w.WritePoint(9, 9), qt.ErrorIs, shapefile.ErrShapeTypeMismatch)
	c.Assert(w.WriteLine([]orb.Point{{2, 2}, {3, 3}}), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	// Reopen the .shp alone; record access must fall back to a linear
	// scan.
	shp, err := openFile(base + ".shp")
	c.Assert(err, qt.IsNil)
	defer shp.Close()

	r, err := shapefile.NewReader(shp, nil, nil, nil)
	c.Assert(err, qt.IsNil)

	n, err := r.NumShapes()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)

	s, err := r.Shape(1)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Points, qt.DeepEquals, []orb.Point{{2, 2}, {3, 3}})

	_, err = r.Record(0)
	c.Assert(err, qt.ErrorIs, shapefile.ErrNoDBF)
}

func TestGeometryRoundTrip(t *testing.T) {
	c := qt.New(t)

	outer := orb.Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := orb.Ring{{2, 2}, {2, 4}, {4, 4}, {4, 2}, {2, 2}}
	poly := orb.Polygon{outer, hole}

	w, base := newTriad(t, nil)
	c.Assert(w.WriteGeometry(poly), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	s, err := r.Shape(0)
	c.Assert(err, qt.IsNil)
	got, ok := s.Geometry().(orb.Polygon)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(got), qt.Equals, 2)

	// Same vertex sets as the input, winding aside.
	c.Assert(pointSet(got[0]), qt.CmpEquals(), pointSet(outer))
	c.Assert(pointSet(got[1]), qt.CmpEquals(), pointSet(hole))

	// On disk the exterior ring is clockwise and the hole
	// counterclockwise, whatever the input orientation was.
	ext := s.Points[:s.Parts[1]]
	inner := s.Points[s.Parts[1]:]
	c.Assert(ringArea(ext) < 0, qt.IsTrue)
	c.Assert(ringArea(inner) > 0, qt.IsTrue)
}

func TestMultiPolygonRegrouping(t *testing.T) {
	c := qt.New(t)

	a := orb.Polygon{{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}}
	b := orb.Polygon{{{5, 5}, {7, 5}, {7, 7}, {5, 7}, {5, 5}}}

	w, base := newTriad(t, nil)
	c.Assert(w.WriteGeometry(orb.MultiPolygon{a, b}), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	s, err := r.Shape(0)
	c.Assert(err, qt.IsNil)
	mp, ok := s.Geometry().(orb.MultiPolygon)
	c.Assert(ok, qt.IsTrue)
	c.Assert(len(mp), qt.Equals, 2)
}

func TestCodepageEncoding(t *testing.T) {
	c := qt.New(t)

	opts := &shapefile.Options{Encoding: charmap.Windows1252}
	w, base := newTriad(t, opts)
	c.Assert(w.AddField("NAME", shapefile.FieldCharacter, 20, 0), qt.IsNil)
	c.Assert(w.WriteNull(), qt.IsNil)
	c.Assert(w.WriteRecord("café"), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, opts)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	rec, err := r.Record(0)
	c.Assert(err, qt.IsNil)
	name, _ := rec.String("NAME")
	c.Assert(name, qt.Equals, "café")
}

func TestSpatialIndex(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	for i := 0; i < 10; i++ {
		x := float64(i * 10)
		c.Assert(w.WritePoint(x, x), qt.IsNil)
		c.Assert(w.WriteRecord(), qt.IsNil)
	}
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	idx, err := shapefile.BuildIndex(r)
	c.Assert(err, qt.IsNil)
	c.Assert(idx.Count(), qt.Equals, 10)

	got := idx.Query(orb.Bound{Min: orb.Point{15, 15}, Max: orb.Point{45, 45}})
	c.Assert(got, qt.DeepEquals, []int{2, 3, 4})
}

func TestZRangeInHeader(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.WritePointZ(0, 0, -5, math.NaN()), qt.IsNil)
	c.Assert(w.WritePointZ(1, 1, 15, 2), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	c.Assert(r.ShapeType(), qt.Equals, shapefile.PointZ)
	s, err := r.Shape(0)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Z[0], qt.Equals, -5.0)
	c.Assert(shapefile.IsNoData(s.M[0]), qt.IsTrue)
}

func TestCorruptDBFRecordLength(t *testing.T) {
	c := qt.New(t)

	// Declared record length is smaller than the field widths demand;
	// trusting it would read rows out of bounds.
	data := buildDBF(1, 2, [][32]byte{fieldDesc("NAME", 'C', 10)}, " 0")
	_, err := shapefile.NewReader(nil, nil, bytes.NewReader(data), nil)
	c.Assert(err, qt.ErrorIs, shapefile.ErrCorruptHeader)
}

func TestLogicalDigitsAndDeletionFlag(t *testing.T) {
	c := qt.New(t)

	data := buildDBF(3, 2, [][32]byte{fieldDesc("FLAG", 'L', 1)}, " 1", " 0", "D1")
	r, err := shapefile.NewReader(nil, nil, bytes.NewReader(data), nil)
	c.Assert(err, qt.IsNil)

	rec, err := r.Record(0)
	c.Assert(err, qt.IsNil)
	v, ok := rec.Bool("FLAG")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsTrue)

	rec, err = r.Record(1)
	c.Assert(err, qt.IsNil)
	v, ok = rec.Bool("FLAG")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.IsFalse)

	// Any non-space deletion flag hides the row, not just '*'.
	rec, err = r.Record(2)
	c.Assert(err, qt.IsNil)
	c.Assert(rec, qt.IsNil)
}

func TestExtraRecordValuesIgnored(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	c.Assert(w.AddField("ID", shapefile.FieldNumber, 4, 0), qt.IsNil)
	c.Assert(w.WritePoint(0, 0), qt.IsNil)
	c.Assert(w.WriteRecord(7, "surplus", 12.5), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	rec, err := r.Record(0)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Len(), qt.Equals, 1)
	id, ok := rec.Int("ID")
	c.Assert(ok, qt.IsTrue)
	c.Assert(id, qt.Equals, int64(7))
}

func TestFieldNameTruncatedToTen(t *testing.T) {
	c := qt.New(t)

	w, _ := newTriad(t, nil)
	c.Assert(w.AddField("ALONGFIELDNAME", shapefile.FieldNumber, 4, 0), qt.IsNil)
	c.Assert(w.Fields()[0].Name, qt.Equals, "ALONGFIELD")
}

func TestPolygonZValueAlignment(t *testing.T) {
	c := qt.New(t)

	w, base := newTriad(t, nil)
	// Clockwise and open: the writer closes the ring and must carry
	// the closing vertex's z value with it.
	ring := []orb.Point{{0, 0}, {0, 10}, {10, 10}, {10, 0}}
	z := [][]float64{{1, 2, 3, 4}}
	c.Assert(w.WritePolygonZ([][]orb.Point{ring}, z, nil), qt.IsNil)
	c.Assert(w.WriteRecord(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)

	r, err := shapefile.Open(base, nil)
	c.Assert(err, qt.IsNil)
	defer r.Close()

	s, err := r.Shape(0)
	c.Assert(err, qt.IsNil)
	c.Assert(s.Type, qt.Equals, shapefile.PolygonZ)
	c.Assert(s.Points[0], qt.Equals, orb.Point{0, 0})
	c.Assert(s.Z, qt.DeepEquals, []float64{1, 2, 3, 4, 1})
	c.Assert(shapefile.IsNoData(s.M[0]), qt.IsTrue)
}

// buildDBF assembles a minimal dbf byte image: fixed header, field
// descriptors, '\r' terminator, then the raw rows verbatim.
func buildDBF(numRecords uint32, recordLength uint16, descs [][32]byte, rows ...string) []byte {
	var b bytes.Buffer
	header := make([]byte, 32)
	header[0] = 3
	binary.LittleEndian.PutUint32(header[4:], numRecords)
	binary.LittleEndian.PutUint16(header[8:], uint16(32+32*len(descs)+1))
	binary.LittleEndian.PutUint16(header[10:], recordLength)
	b.Write(header)
	for _, d := range descs {
		b.Write(d[:])
	}
	b.WriteByte('\r')
	for _, r := range rows {
		b.WriteString(r)
	}
	return b.Bytes()
}

func fieldDesc(name string, typ byte, size byte) [32]byte {
	var d [32]byte
	copy(d[:11], name)
	d[11] = typ
	d[16] = size
	return d
}

// ringArea is the shoelace area of a ring, positive for
// counterclockwise vertex order.
func ringArea(ring []orb.Point) float64 {
	var a float64
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		a += p[0]*q[1] - q[0]*p[1]
	}
	return a / 2
}

// pointSet returns the distinct vertices of a ring, independent of
// direction and start point.
func pointSet(ring orb.Ring) map[orb.Point]bool {
	set := make(map[orb.Point]bool)
	for _, p := range ring {
		set[p] = true
	}
	return set
}
