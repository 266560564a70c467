// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"encoding/binary"
	"io"
	"os"
	"sort"
)

const (
	byteOrderLittleEndian = 0x4949 // "II"
	byteOrderBigEndian    = 0x4d4d // "MM"

	magicClassic = 42
	magicPanaRaw = 0x732e // Panasonic RAW carries a TIFF tree under this magic
	magicBigTIFF = 43

	// Caps a single tag's element count; anything larger is a broken
	// or hostile stream, not metadata.
	maxTagCount = 1 << 24
)

// Options configures Decode.
type Options struct {
	// Warnf is called for recoverable oddities found while decoding.
	// Nil discards warnings.
	Warnf func(format string, args ...any)

	// SubIFDTags lists extra pointer tags to follow as sub-IFDs, in
	// addition to the EXIF, GPS and interoperability pointers.
	SubIFDTags []uint16
}

func (o *Options) warnf(format string, args ...any) {
	if o != nil && o.Warnf != nil {
		o.Warnf(format, args...)
	}
}

// File is a decoded TIFF: the IFD chain and the byte order it was
// read with. Encode may use a different byte order.
type File struct {
	IFDs      []*Ifd
	ByteOrder binary.ByteOrder

	opts *Options
	path string
}

// Open decodes the IFD tree of the named file. Raster data is not
// loaded; it is read from the file on demand by LoadRaster or Encode.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tf, err := decode(f, nil, false)
	if err != nil {
		return nil, err
	}
	tf.path = path
	return tf, nil
}

// Decode decodes a TIFF stream, raster data included. The stream is
// not used after Decode returns.
func Decode(r io.ReadSeeker, opts *Options) (*File, error) {
	return decode(r, opts, true)
}

func decode(r io.ReadSeeker, opts *Options, withRaster bool) (tf *File, err error) {
	sr := newStreamReader(r, binary.BigEndian)
	defer catchStop(&err, sr)

	switch sr.read2() {
	case byteOrderLittleEndian:
		sr.byteOrder = binary.LittleEndian
	case byteOrderBigEndian:
		sr.byteOrder = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}

	switch sr.read2() {
	case magicClassic, magicPanaRaw:
	case magicBigTIFF:
		return nil, ErrBigTIFF
	default:
		return nil, ErrNotTIFF
	}

	tf = &File{ByteOrder: sr.byteOrder, opts: opts}

	next := sr.read4()
	seen := make(map[uint32]bool)
	for next != 0 {
		// A next-IFD pointer looping back to an earlier directory
		// would chain forever.
		if seen[next] {
			return nil, newInvalidFormatErrorf("IFD chain cycle at offset %d", next)
		}
		seen[next] = true
		ifd := NewIfd()
		next = tf.readIFDTree(sr, ifd, next)
		tf.IFDs = append(tf.IFDs, ifd)
	}

	if withRaster {
		for _, ifd := range tf.IFDs {
			tf.loadRasterFrom(sr, ifd)
		}
	}
	return tf, nil
}

// readIFDTree reads one directory, then resolves its sub-IFD pointer
// tags, and returns the offset of the next directory in the chain.
func (f *File) readIFDTree(sr *streamReader, ifd *Ifd, offset uint32) uint32 {
	f.readIFD(sr, ifd, offset)
	next := sr.read4()

	subTags := []uint16{TagExifIFD, TagGPSIFD, TagInteropIFD}
	if f.opts != nil {
		subTags = append(subTags, f.opts.SubIFDTags...)
	}
	for _, id := range subTags {
		t := ifd.Get(id)
		if t == nil {
			continue
		}
		ptr := tagUints(t)
		if len(ptr) != 1 {
			f.opts.warnf("tag 0x%04x: malformed sub-IFD pointer", id)
			continue
		}
		sub := NewIfd()
		f.readIFD(sr, sub, ptr[0])
		ifd.SubIfd[id] = sub
	}
	return next
}

// readIFD decodes the entry table at offset into ifd. Out-of-line
// values are fetched immediately; the stream position afterwards is
// just past the entry table, on the next-IFD pointer.
func (f *File) readIFD(sr *streamReader, ifd *Ifd, offset uint32) {
	sr.seek(int64(offset))
	n := int(sr.read2())
	for ri := 0; ri < n; ri++ {
		t := &Tag{
			ID:    sr.read2(),
			Type:  Type(sr.read2()),
			Count: sr.read4(),
		}
		if !t.Type.valid() || t.Count > maxTagCount {
			sr.stop(newInvalidFormatErrorf("tag 0x%04x: type %d count %d", t.ID, t.Type, t.Count))
		}
		if t.ValueIsOffset() {
			valueOffset := sr.read4()
			sr.preservePos(func() {
				sr.seek(int64(valueOffset))
				t.readValue(sr)
			})
		} else {
			pos := sr.pos()
			t.readValue(sr)
			sr.seek(pos + 4)
		}
		ifd.Put(t)
	}
}

// LoadRaster reads the raster blocks of every directory that still
// lacks them. It is a no-op for files decoded from a stream, which
// load eagerly.
func (f *File) LoadRaster() (err error) {
	if f.path == "" {
		return nil
	}
	needed := false
	for _, ifd := range f.IFDs {
		if !ifd.RasterLoaded() {
			needed = true
		}
	}
	if !needed {
		return nil
	}

	in, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer in.Close()

	sr := newStreamReader(in, f.ByteOrder)
	defer catchStop(&err, sr)
	for _, ifd := range f.IFDs {
		if !ifd.RasterLoaded() {
			f.loadRasterFrom(sr, ifd)
		}
	}
	return nil
}

func (f *File) loadRasterFrom(sr *streamReader, ifd *Ifd) {
	readBlocks := func(offTag, countTag uint16) [][]byte {
		offsets := tagUints(ifd.Get(offTag))
		counts := tagUints(ifd.Get(countTag))
		if len(counts) < len(offsets) {
			offsets = offsets[:len(counts)]
		}
		blocks := make([][]byte, 0, len(offsets))
		for i, off := range offsets {
			sr.seek(int64(off))
			blocks = append(blocks, sr.readBytes(int(counts[i])))
		}
		return blocks
	}

	switch {
	case ifd.Has(TagStripOffsets):
		ifd.Stripes = readBlocks(TagStripOffsets, TagStripByteCounts)
	case ifd.Has(TagFreeOffsets):
		ifd.Free = readBlocks(TagFreeOffsets, TagFreeByteCounts)
	case ifd.Has(TagTileOffsets):
		ifd.Tiles = readBlocks(TagTileOffsets, TagTileByteCounts)
	}
	if ifd.Has(TagJPEGIF) {
		off := tagUints(ifd.Get(TagJPEGIF))
		length := tagUints(ifd.Get(TagJPEGIFLength))
		if len(off) == 1 && len(length) == 1 {
			sr.seek(int64(off[0]))
			ifd.JPEGIf = sr.readBytes(int(length[0]))
		}
	}
}

// Save encodes the file to path in little-endian byte order.
func (f *File) Save(path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Encode(out, binary.LittleEndian); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Encode writes the whole IFD tree, raster data included, in the
// given byte order. Every offset is recomputed from scratch.
func (f *File) Encode(w io.WriteSeeker, byteOrder binary.ByteOrder) error {
	if err := f.LoadRaster(); err != nil {
		return err
	}
	sw := newStreamWriter(w, byteOrder)

	if byteOrder == binary.BigEndian {
		sw.write2(byteOrderBigEndian)
	} else {
		sw.write2(byteOrderLittleEndian)
	}
	sw.write2(magicClassic)

	next := uint32(8)
	for _, ifd := range f.IFDs {
		// The stream sits on the pointer slot left by the previous
		// directory (or the header), which now gets the real offset.
		sw.write4(next)
		next = f.encodeIFD(sw, ifd, next)
		if err := sw.err(); err != nil {
			return err
		}
	}
	return sw.err()
}

// sortedSubIDs returns the sub-IFD pointer tags in ascending order so
// layout is deterministic.
func sortedSubIDs(ifd *Ifd) []uint16 {
	ids := make([]uint16, 0, len(ifd.SubIfd))
	for id := range ifd.SubIfd {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

// encodeIFD lays out one directory at offset: the entry table, the
// out-of-line values, the sub-IFDs and finally the raster blocks. It
// returns the offset where the next directory in the chain must go and
// leaves the stream on this directory's next-IFD pointer slot.
func (f *File) encodeIFD(sw *streamWriter, ifd *Ifd, offset uint32) (next uint32) {
	// Raster pointer tags are rewritten below with recomputed offsets;
	// normalize them to LONG first so the directory size is stable.
	for _, id := range []uint16{TagStripOffsets, TagFreeOffsets, TagTileOffsets, TagJPEGIF} {
		if t := ifd.Get(id); t != nil {
			ifd.Set(id, TypeLong, tagUints(t))
		}
	}
	ifd.check()

	ifdBytes, dataBytes := ifd.size()
	rawOffset := offset + ifdBytes + dataBytes

	// Sub-IFDs are packed right after this directory's data area.
	subIDs := sortedSubIDs(ifd)
	for _, id := range subIDs {
		ifd.Set(id, TypeLong, rawOffset)
		subIfdBytes, subDataBytes := ifd.SubIfd[id].size()
		rawOffset += subIfdBytes + subDataBytes
	}

	// Then the raster blocks, whose offset tags are recomputed.
	next = rawOffset
	var blockOffsets []uint32
	var blocks [][]byte
	switch {
	case ifd.Has(TagStripOffsets):
		blockOffsets = cumulativeOffsets(rawOffset, tagUints(ifd.Get(TagStripByteCounts)))
		ifd.Set(TagStripOffsets, TypeLong, blockOffsets)
		blocks = ifd.Stripes
		next = endOffset(blockOffsets, tagUints(ifd.Get(TagStripByteCounts)))
	case ifd.Has(TagFreeOffsets):
		blockOffsets = cumulativeOffsets(rawOffset, tagUints(ifd.Get(TagFreeByteCounts)))
		ifd.Set(TagFreeOffsets, TypeLong, blockOffsets)
		blocks = ifd.Free
		next = endOffset(blockOffsets, tagUints(ifd.Get(TagFreeByteCounts)))
	case ifd.Has(TagTileOffsets):
		blockOffsets = cumulativeOffsets(rawOffset, tagUints(ifd.Get(TagTileByteCounts)))
		ifd.Set(TagTileOffsets, TypeLong, blockOffsets)
		blocks = ifd.Tiles
		next = endOffset(blockOffsets, tagUints(ifd.Get(TagTileByteCounts)))
	case ifd.Has(TagJPEGIF):
		ifd.Set(TagJPEGIF, TypeLong, rawOffset)
		blockOffsets = []uint32{rawOffset}
		blocks = [][]byte{ifd.JPEGIf}
		next = rawOffset + uint32(len(ifd.JPEGIf))
	}

	nextPtrPos := f.writeIFD(sw, ifd, offset)

	for _, id := range subIDs {
		subOffset := tagUints(ifd.Get(id))[0]
		f.writeIFD(sw, ifd.SubIfd[id], subOffset)
	}

	for i, blockOffset := range blockOffsets {
		if i >= len(blocks) {
			break
		}
		sw.seek(int64(blockOffset))
		sw.write(blocks[i])
	}

	sw.seek(nextPtrPos)
	return next
}

// writeIFD emits the entry table in two passes: first with zero in
// every offset slot, then again patching each slot as its value lands
// in the data area. It returns the position of the next-IFD pointer,
// which is written as zero.
func (f *File) writeIFD(sw *streamWriter, ifd *Ifd, offset uint32) (nextPtrPos int64) {
	tags := ifd.Tags()

	sw.seek(int64(offset))
	sw.write2(uint16(len(tags)))
	firstEntry := sw.pos()
	for _, t := range tags {
		sw.write2(t.ID)
		sw.write2(uint16(t.Type))
		sw.write4(t.Count)
		if t.ValueIsOffset() {
			sw.write4(0)
		} else {
			t.writeValue(sw)
		}
	}
	nextPtrPos = sw.pos()
	sw.write4(0)

	dataOffset := sw.pos()
	entryPos := firstEntry
	for _, t := range tags {
		if t.ValueIsOffset() {
			sw.seek(entryPos + 8)
			sw.write4(uint32(dataOffset))
			sw.seek(dataOffset)
			t.writeValue(sw)
			dataOffset = sw.pos()
		}
		entryPos += 12
	}
	return nextPtrPos
}

func cumulativeOffsets(start uint32, counts []uint32) []uint32 {
	out := make([]uint32, len(counts))
	for i, c := range counts {
		out[i] = start
		start += c
	}
	return out
}

func endOffset(offsets, counts []uint32) uint32 {
	if len(offsets) == 0 {
		return 0
	}
	n := len(offsets) - 1
	return offsets[n] + counts[n]
}

// tagUints reads an offset/count style tag as []uint32, accepting the
// SHORT representation some writers use.
func tagUints(t *Tag) []uint32 {
	if t == nil {
		return nil
	}
	switch v := t.raw.(type) {
	case []uint32:
		return v
	case []uint16:
		out := make([]uint32, len(v))
		for i, x := range v {
			out[i] = uint32(x)
		}
		return out
	}
	return nil
}
