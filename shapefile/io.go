// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var errShortRead = errors.New("short read")

// streamReader wraps a ReadSeeker with fixed-width read helpers.
// Shapefiles mix byte orders, so big- and little-endian variants exist
// side by side. Read errors unwind through a panic recovered at the API
// boundary (see catchStop). Not safe for concurrent use.
type streamReader struct {
	r   io.ReadSeeker
	buf []byte

	isEOF   bool
	readErr error
}

func newStreamReader(r io.ReadSeeker) *streamReader {
	return &streamReader{r: r}
}

func (e *streamReader) allocateBuf(n int) {
	if n > cap(e.buf) {
		e.buf = make([]byte, n)
	}
}

func (e *streamReader) pos() int64 {
	n, _ := e.r.Seek(0, io.SeekCurrent)
	return n
}

func (e *streamReader) size() int64 {
	cur := e.pos()
	end, _ := e.r.Seek(0, io.SeekEnd)
	e.seek(cur)
	return end
}

func (e *streamReader) seek(pos int64) {
	if _, err := e.r.Seek(pos, io.SeekStart); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) skip(n int64) {
	e.r.Seek(n, io.SeekCurrent)
}

func (e *streamReader) readNIntoBuf(n int) {
	e.allocateBuf(n)
	n2, err := io.ReadFull(e.r, e.buf[:n])
	if err != nil {
		e.stop(err)
		return
	}
	if n2 != n {
		e.stop(errShortRead)
	}
}

func (e *streamReader) read1() uint8 {
	e.readNIntoBuf(1)
	return e.buf[0]
}

func (e *streamReader) read2le() uint16 {
	e.readNIntoBuf(2)
	return binary.LittleEndian.Uint16(e.buf[:2])
}

func (e *streamReader) read4le() uint32 {
	e.readNIntoBuf(4)
	return binary.LittleEndian.Uint32(e.buf[:4])
}

func (e *streamReader) read4sle() int32 {
	return int32(e.read4le())
}

func (e *streamReader) read4sbe() int32 {
	e.readNIntoBuf(4)
	return int32(binary.BigEndian.Uint32(e.buf[:4]))
}

func (e *streamReader) readFloat64le() float64 {
	e.readNIntoBuf(8)
	return math.Float64frombits(binary.LittleEndian.Uint64(e.buf[:8]))
}

// readBytesVolatile returns a slice into the internal buffer, valid
// only until the next read.
func (e *streamReader) readBytesVolatile(n int) []byte {
	e.readNIntoBuf(n)
	return e.buf[:n]
}

func (e *streamReader) readBytes(b []byte) {
	if _, err := io.ReadFull(e.r, b); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) stop(err error) {
	// Allow one silent EOF so callers need not check for it on every
	// read.
	if err == io.EOF && !e.isEOF {
		e.isEOF = true
		return
	}
	if err != nil {
		e.readErr = err
	}
	panic(errStop)
}

// catchStop recovers the panic raised by streamReader.stop and folds
// the underlying read error into *err. Any other panic is re-raised.
func catchStop(err *error, streams ...*streamReader) {
	r := recover()
	if r == nil {
		return
	}
	if r != errStop {
		panic(r)
	}
	if *err == nil {
		for _, s := range streams {
			if s != nil && s.readErr != nil {
				*err = s.readErr
				return
			}
		}
		*err = io.ErrUnexpectedEOF
	}
}

// streamWriter wraps a WriteSeeker with fixed-width write helpers. The
// first write or seek error sticks; later calls are no-ops and err()
// reports it.
type streamWriter struct {
	w        io.WriteSeeker
	buf      [8]byte
	writeErr error
}

func newStreamWriter(w io.WriteSeeker) *streamWriter {
	return &streamWriter{w: w}
}

func (e *streamWriter) err() error {
	return e.writeErr
}

func (e *streamWriter) write(b []byte) {
	if e.writeErr != nil {
		return
	}
	if _, err := e.w.Write(b); err != nil {
		e.writeErr = err
	}
}

func (e *streamWriter) write1(v uint8) {
	e.buf[0] = v
	e.write(e.buf[:1])
}

func (e *streamWriter) write2le(v uint16) {
	binary.LittleEndian.PutUint16(e.buf[:2], v)
	e.write(e.buf[:2])
}

func (e *streamWriter) write4le(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *streamWriter) write4sle(v int32) {
	e.write4le(uint32(v))
}

func (e *streamWriter) write4sbe(v int32) {
	binary.BigEndian.PutUint32(e.buf[:4], uint32(v))
	e.write(e.buf[:4])
}

func (e *streamWriter) writeFloat64le(v float64) {
	binary.LittleEndian.PutUint64(e.buf[:8], math.Float64bits(v))
	e.write(e.buf[:8])
}

func (e *streamWriter) pos() int64 {
	if e.writeErr != nil {
		return 0
	}
	n, err := e.w.Seek(0, io.SeekCurrent)
	if err != nil {
		e.writeErr = err
	}
	return n
}

func (e *streamWriter) seek(pos int64) {
	if e.writeErr != nil {
		return
	}
	if _, err := e.w.Seek(pos, io.SeekStart); err != nil {
		e.writeErr = err
	}
}

func (e *streamWriter) seekEnd() int64 {
	if e.writeErr != nil {
		return 0
	}
	n, err := e.w.Seek(0, io.SeekEnd)
	if err != nil {
		e.writeErr = err
	}
	return n
}
