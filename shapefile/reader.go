// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
)

// Reader reads the shapefile triad. Headers are parsed eagerly on
// construction; record payloads are decoded on demand. Not safe for
// concurrent use.
type Reader struct {
	opts *Options

	shp *streamReader
	shx *streamReader
	dbf *streamReader

	closers []io.Closer

	header shpHeader

	numRecords   int
	dbfHeaderLen int64
	recordLength int
	fields       []Field
	fieldIndex   map[string]int

	// offsets[i] is the byte offset of record i's header in the .shp,
	// loaded lazily from the .shx or by a linear scan.
	offsets []int64
}

// ShapeRecord pairs a geometry with its attribute row.
type ShapeRecord struct {
	Shape  *Shape
	Record *Record
}

// Open opens the triad rooted at path. The extension, in any case, is
// ignored; each component is resolved case-insensitively. At least one
// of .shp and .dbf must exist.
func Open(path string, opts *Options) (*Reader, error) {
	base := trimShapefileExt(path)

	var files [3]*os.File
	var closers []io.Closer
	for i, ext := range []string{"shp", "shx", "dbf"} {
		p := resolveComponent(base, ext)
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		files[i] = f
		closers = append(closers, f)
	}
	if files[0] == nil && files[2] == nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, fmt.Errorf("%w: %s", ErrMissingFile, path)
	}

	var shp, shx, dbf io.ReadSeeker
	if files[0] != nil {
		shp = files[0]
	}
	if files[1] != nil {
		shx = files[1]
	}
	if files[2] != nil {
		dbf = files[2]
	}
	r, err := NewReader(shp, shx, dbf, opts)
	if err != nil {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}
	r.closers = closers
	return r, nil
}

// NewReader wraps already-open streams. Any component may be nil, but
// at least one of shp and dbf must be present. The caller keeps
// ownership of the streams.
func NewReader(shp, shx, dbf io.ReadSeeker, opts *Options) (*Reader, error) {
	if shp == nil && dbf == nil {
		return nil, ErrMissingFile
	}
	r := &Reader{opts: optionsOrDefault(opts)}
	if shp != nil {
		r.shp = newStreamReader(shp)
		h, err := readSHPHeader(r.shp)
		if err != nil {
			return nil, fmt.Errorf("shp: %w", err)
		}
		r.header = h
	}
	if shx != nil {
		r.shx = newStreamReader(shx)
		if _, err := readSHPHeader(r.shx); err != nil {
			return nil, fmt.Errorf("shx: %w", err)
		}
	}
	if dbf != nil {
		r.dbf = newStreamReader(dbf)
		n, headerLen, recLen, fields, err := readDBFHeader(r.dbf)
		if err != nil {
			return nil, fmt.Errorf("dbf: %w", err)
		}
		r.numRecords = int(n)
		r.dbfHeaderLen = int64(headerLen)
		r.recordLength = recLen
		r.fields = fields
		r.fieldIndex = buildFieldIndex(fields)
	}
	if r.shx != nil && r.dbf != nil {
		if n := int((r.shx.size() - headerSize) / 8); n != r.numRecords {
			r.opts.warnf("shapefile: %d shapes but %d attribute records", n, r.numRecords)
		}
	}
	return r, nil
}

// Close closes the files opened by Open. Readers built with NewReader
// do not own their streams and Close is a no-op.
func (r *Reader) Close() error {
	var first error
	for _, c := range r.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	r.closers = nil
	return first
}

// ShapeType returns the geometry type declared in the .shp header.
func (r *Reader) ShapeType() ShapeType { return r.header.shape }

// BBox returns the bounding box declared in the .shp header.
func (r *Reader) BBox() orb.Bound { return r.header.bbox }

// Fields returns the dbf column descriptors.
func (r *Reader) Fields() []Field { return r.fields }

// NumRecords returns the attribute row count from the dbf header.
func (r *Reader) NumRecords() int { return r.numRecords }

// NumShapes returns the geometry record count. With a .shx it is
// derived from the index size; otherwise the .shp is scanned once.
func (r *Reader) NumShapes() (int, error) {
	if r.shp == nil && r.shx == nil {
		return 0, ErrNoSHP
	}
	if r.shx != nil {
		return int((r.shx.size() - headerSize) / 8), nil
	}
	if err := r.loadOffsets(); err != nil {
		return 0, err
	}
	return len(r.offsets), nil
}

// loadOffsets fills the record offset table, from the .shx when
// present and by walking the .shp record headers otherwise.
func (r *Reader) loadOffsets() (err error) {
	if r.offsets != nil {
		return nil
	}
	defer catchStop(&err, r.shx, r.shp)

	if r.shx != nil {
		n := int((r.shx.size() - headerSize) / 8)
		offsets := make([]int64, 0, n)
		r.shx.seek(headerSize)
		for ri := 0; ri < n; ri++ {
			offsets = append(offsets, int64(r.shx.read4sbe())*2)
			r.shx.skip(4)
		}
		r.offsets = offsets
		return nil
	}
	if r.shp == nil {
		return ErrNoSHP
	}
	size := r.shp.size()
	var offsets []int64
	pos := int64(headerSize)
	for pos+8 <= size {
		offsets = append(offsets, pos)
		r.shp.seek(pos + 4)
		contentLen := int64(r.shp.read4sbe()) * 2
		if contentLen < 0 {
			return newCorruptHeaderErrorf("record %d content length", len(offsets)-1)
		}
		pos += 8 + contentLen
	}
	r.offsets = offsets
	return nil
}

func (r *Reader) resolveIndex(i, n int) (int, error) {
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, n)
	}
	return i, nil
}

// Shape reads geometry record i. Negative indices count from the end.
func (r *Reader) Shape(i int) (s *Shape, err error) {
	if r.shp == nil {
		return nil, ErrNoSHP
	}
	n, err := r.NumShapes()
	if err != nil {
		return nil, err
	}
	i, err = r.resolveIndex(i, n)
	if err != nil {
		return nil, err
	}
	if err := r.loadOffsets(); err != nil {
		return nil, err
	}

	defer catchStop(&err, r.shp)
	r.shp.seek(r.offsets[i])
	return r.readShapeAt(), nil
}

// readShapeAt decodes the record at the current .shp position and
// leaves the stream at the declared record end, even if the payload
// decoded short.
func (r *Reader) readShapeAt() *Shape {
	r.shp.skip(4) // record number
	contentLen := int64(r.shp.read4sbe()) * 2
	end := r.shp.pos() + contentLen
	s := readShape(r.shp, end)
	r.shp.seek(end)
	return s
}

// Record reads attribute row i. Negative indices count from the end.
// A deleted row reads as nil.
func (r *Reader) Record(i int) (rec *Record, err error) {
	if r.dbf == nil {
		return nil, ErrNoDBF
	}
	i, err = r.resolveIndex(i, r.numRecords)
	if err != nil {
		return nil, err
	}

	defer catchStop(&err, r.dbf)
	r.dbf.seek(r.dbfHeaderLen + int64(i)*int64(r.recordLength))
	return r.readRecordAt()
}

func (r *Reader) readRecordAt() (*Record, error) {
	raw := make([]byte, r.recordLength)
	r.dbf.readBytes(raw)
	// Anything but a space in the deletion flag marks a soft delete;
	// '*' is the conventional value but not the only one seen.
	if raw[0] != ' ' {
		return nil, nil
	}
	values := make([]any, len(r.fields))
	pos := 1
	for i, f := range r.fields {
		v, err := decodeFieldValue(f, raw[pos:pos+f.Size], r.opts)
		if err != nil {
			return nil, err
		}
		values[i] = v
		pos += f.Size
	}
	return newRecord(r.fields, r.fieldIndex, values), nil
}

// ShapeRecord reads the geometry and attributes of record i.
func (r *Reader) ShapeRecord(i int) (*ShapeRecord, error) {
	s, err := r.Shape(i)
	if err != nil {
		return nil, err
	}
	rec, err := r.Record(i)
	if err != nil {
		return nil, err
	}
	return &ShapeRecord{Shape: s, Record: rec}, nil
}

// Shapes reads all geometry records.
func (r *Reader) Shapes() ([]*Shape, error) {
	var out []*Shape
	it := r.IterShapes()
	for it.Next() {
		out = append(out, it.Shape())
	}
	return out, it.Err()
}

// Records reads all attribute rows. Deleted rows appear as nil.
func (r *Reader) Records() ([]*Record, error) {
	var out []*Record
	it := r.IterRecords()
	for it.Next() {
		out = append(out, it.Record())
	}
	return out, it.Err()
}

// ShapeRecords reads all records as shape/attribute pairs.
func (r *Reader) ShapeRecords() ([]*ShapeRecord, error) {
	shapes, err := r.Shapes()
	if err != nil {
		return nil, err
	}
	records, err := r.Records()
	if err != nil {
		return nil, err
	}
	if len(shapes) != len(records) {
		return nil, fmt.Errorf("%w: %d shapes, %d records", ErrUnbalanced, len(shapes), len(records))
	}
	out := make([]*ShapeRecord, len(shapes))
	for i := range shapes {
		out[i] = &ShapeRecord{Shape: shapes[i], Record: records[i]}
	}
	return out, nil
}

// ShapeIterator streams geometry records in file order without
// requiring a .shx.
type ShapeIterator struct {
	r     *Reader
	pos   int64
	size  int64
	shape *Shape
	err   error
}

// IterShapes returns a cursor over the geometry records.
func (r *Reader) IterShapes() *ShapeIterator {
	it := &ShapeIterator{r: r, pos: headerSize}
	if r.shp == nil {
		it.err = ErrNoSHP
		return it
	}
	it.size = r.shp.size()
	return it
}

// Next advances to the next shape. It returns false at the end of the
// file or on error; check Err after the loop.
func (it *ShapeIterator) Next() (ok bool) {
	if it.err != nil || it.pos+8 > it.size {
		return false
	}
	defer catchStop(&it.err, it.r.shp)
	it.r.shp.seek(it.pos)
	it.shape = it.r.readShapeAt()
	it.pos = it.r.shp.pos()
	return true
}

// Shape returns the shape read by the last successful Next.
func (it *ShapeIterator) Shape() *Shape { return it.shape }

// Err returns the first error encountered while iterating.
func (it *ShapeIterator) Err() error { return it.err }

// RecordIterator streams attribute rows in file order.
type RecordIterator struct {
	r   *Reader
	i   int
	rec *Record
	err error
}

// IterRecords returns a cursor over the attribute rows.
func (r *Reader) IterRecords() *RecordIterator {
	it := &RecordIterator{r: r}
	if r.dbf == nil {
		it.err = ErrNoDBF
	}
	return it
}

// Next advances to the next row. Deleted rows are yielded as nil
// records to keep positions aligned with the geometry.
func (it *RecordIterator) Next() bool {
	if it.err != nil || it.i >= it.r.numRecords {
		return false
	}
	it.rec, it.err = it.r.Record(it.i)
	it.i++
	return it.err == nil
}

// Record returns the row read by the last successful Next, nil for a
// deleted row.
func (it *RecordIterator) Record() *Record { return it.rec }

// Err returns the first error encountered while iterating.
func (it *RecordIterator) Err() error { return it.err }

func trimShapefileExt(path string) string {
	ext := filepath.Ext(path)
	switch strings.ToLower(ext) {
	case ".shp", ".shx", ".dbf":
		return strings.TrimSuffix(path, ext)
	}
	return path
}

// resolveComponent finds base.ext with a case-insensitive extension,
// trying the common lower and upper spellings before falling back to a
// directory scan.
func resolveComponent(base, ext string) string {
	for _, cand := range []string{base + "." + ext, base + "." + strings.ToUpper(ext)} {
		if _, err := os.Stat(cand); err == nil {
			return cand
		}
	}
	dir, name := filepath.Split(base)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	want := name + "." + ext
	for _, e := range entries {
		if strings.EqualFold(e.Name(), want) {
			return filepath.Join(dir, e.Name())
		}
	}
	return ""
}
