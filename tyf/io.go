// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var errShortRead = errors.New("short read")

// streamReader wraps a ReadSeeker with byte-order-aware fixed-width
// read helpers. Read errors unwind through a panic recovered at the
// API boundary (see catchStop). Not safe for concurrent use.
type streamReader struct {
	r         io.ReadSeeker
	byteOrder binary.ByteOrder

	buf     []byte
	isEOF   bool
	readErr error
}

func newStreamReader(r io.ReadSeeker, byteOrder binary.ByteOrder) *streamReader {
	return &streamReader{r: r, byteOrder: byteOrder}
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

func (e *streamReader) seek(pos int64) {
	if _, err := e.r.Seek(pos, io.SeekStart); err != nil {
		e.stop(err)
	}
}

func (e *streamReader) skip(n int64) {
	e.r.Seek(n, io.SeekCurrent)
}

// preservePos runs f and restores the stream position afterwards.
func (e *streamReader) preservePos(f func()) {
	pos := e.pos()
	f()
	e.seek(pos)
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

func (e *streamReader) read2() uint16 {
	e.readNIntoBuf(2)
	return e.byteOrder.Uint16(e.buf[:2])
}

func (e *streamReader) read4() uint32 {
	e.readNIntoBuf(4)
	return e.byteOrder.Uint32(e.buf[:4])
}

func (e *streamReader) read4s() int32 {
	return int32(e.read4())
}

func (e *streamReader) readFloat32() float32 {
	return math.Float32frombits(e.read4())
}

func (e *streamReader) readFloat64() float64 {
	e.readNIntoBuf(8)
	return math.Float64frombits(e.byteOrder.Uint64(e.buf[:8]))
}

func (e *streamReader) readBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := io.ReadFull(e.r, b); err != nil {
		e.stop(err)
	}
	return b
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
func catchStop(err *error, s *streamReader) {
	r := recover()
	if r == nil {
		return
	}
	if r != errStop {
		panic(r)
	}
	if *err == nil {
		if s != nil && s.readErr != nil {
			*err = s.readErr
		} else {
			*err = io.ErrUnexpectedEOF
		}
	}
}

// streamWriter wraps a WriteSeeker with byte-order-aware fixed-width
// write helpers. The first error sticks; later calls are no-ops.
type streamWriter struct {
	w         io.WriteSeeker
	byteOrder binary.ByteOrder
	buf       [8]byte
	writeErr  error
}

func newStreamWriter(w io.WriteSeeker, byteOrder binary.ByteOrder) *streamWriter {
	return &streamWriter{w: w, byteOrder: byteOrder}
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

func (e *streamWriter) write2(v uint16) {
	e.byteOrder.PutUint16(e.buf[:2], v)
	e.write(e.buf[:2])
}

func (e *streamWriter) write4(v uint32) {
	e.byteOrder.PutUint32(e.buf[:4], v)
	e.write(e.buf[:4])
}

func (e *streamWriter) write4s(v int32) {
	e.write4(uint32(v))
}

func (e *streamWriter) writeFloat32(v float32) {
	e.write4(math.Float32bits(v))
}

func (e *streamWriter) writeFloat64(v float64) {
	e.byteOrder.PutUint64(e.buf[:8], math.Float64bits(v))
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
