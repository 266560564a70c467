// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
)

// maxFields is the dBASE III field limit. The header length field is
// 16 bits, which caps the descriptor array at 2046 entries.
const maxFields = 2046

// dbfHeaderSize is the fixed part of the dbf header, before the field
// descriptor array.
const dbfHeaderSize = 32

// FieldType is the dbf column type character.
type FieldType byte

const (
	// FieldCharacter is free text, space padded.
	FieldCharacter FieldType = 'C'
	// FieldNumber is a right-justified decimal number.
	FieldNumber FieldType = 'N'
	// FieldFloat is a number; treated identically to FieldNumber.
	FieldFloat FieldType = 'F'
	// FieldDate is a yyyymmdd date.
	FieldDate FieldType = 'D'
	// FieldLogical is a single-character boolean.
	FieldLogical FieldType = 'L'
)

// Field describes one dbf column.
type Field struct {
	Name    string
	Type    FieldType
	Size    int
	Decimal int
}

// Record holds the attribute values of one row, positionally aligned
// with the field list. Missing values are nil.
type Record struct {
	fields []Field
	index  map[string]int
	values []any
}

func newRecord(fields []Field, index map[string]int, values []any) *Record {
	return &Record{fields: fields, index: index, values: values}
}

// Len returns the number of values.
func (r *Record) Len() int { return len(r.values) }

// Get returns the value at position i, nil when out of range.
func (r *Record) Get(i int) any {
	if i < 0 || i >= len(r.values) {
		return nil
	}
	return r.values[i]
}

// Value returns the value of the named field, nil when the field does
// not exist or the value is missing.
func (r *Record) Value(name string) any {
	i, ok := r.index[name]
	if !ok {
		return nil
	}
	return r.values[i]
}

// Values returns the positional values. The slice is shared, not a
// copy.
func (r *Record) Values() []any { return r.values }

// Int returns the named value as an int64.
func (r *Record) Int(name string) (int64, bool) {
	switch v := r.Value(name).(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}

// Float returns the named value as a float64.
func (r *Record) Float(name string) (float64, bool) {
	switch v := r.Value(name).(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// String returns the named value as a string.
func (r *Record) String(name string) (string, bool) {
	v, ok := r.Value(name).(string)
	return v, ok
}

// Bool returns the named value as a bool.
func (r *Record) Bool(name string) (bool, bool) {
	v, ok := r.Value(name).(bool)
	return v, ok
}

// Date returns the named value as a time.Time.
func (r *Record) Date(name string) (time.Time, bool) {
	v, ok := r.Value(name).(time.Time)
	return v, ok
}

func buildFieldIndex(fields []Field) map[string]int {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f.Name] = i
	}
	return index
}

// readDBFHeader parses the fixed header and the field descriptor
// array. The implicit DeletionFlag pseudo-field is consumed and not
// surfaced.
func readDBFHeader(sr *streamReader) (numRecords uint32, headerLength, recordLength int, fields []Field, err error) {
	defer catchStop(&err, sr)

	sr.seek(0)
	sr.read1() // version
	sr.skip(3) // last update date
	numRecords = sr.read4le()
	headerLength = int(sr.read2le())
	recordLength = int(sr.read2le())
	sr.skip(20)

	numFields := (headerLength - dbfHeaderSize - 1) / 32
	if numFields < 0 || numFields > maxFields {
		return 0, 0, 0, nil, newCorruptHeaderErrorf("dbf header length %d", headerLength)
	}

	for fi := 0; fi < numFields; fi++ {
		desc := sr.readBytesVolatile(32)
		name := string(bytes.TrimRight(desc[:11], "\x00 "))
		fields = append(fields, Field{
			Name:    name,
			Type:    FieldType(desc[11]),
			Size:    int(desc[16]),
			Decimal: int(desc[17]),
		})
	}
	if term := sr.read1(); term != '\r' {
		return 0, 0, 0, nil, newCorruptHeaderErrorf("dbf descriptor terminator 0x%02x", term)
	}
	if need := dbfRecordLength(fields); recordLength < need {
		return 0, 0, 0, nil, newCorruptHeaderErrorf("dbf record length %d, descriptors need %d", recordLength, need)
	}
	return numRecords, headerLength, recordLength, fields, nil
}

// writeDBFHeader emits the fixed header plus descriptors at the start
// of the stream. It is written twice: once with a zero record count
// when the first record arrives, and again from Close with the final
// count.
func writeDBFHeader(sw *streamWriter, numRecords uint32, fields []Field) error {
	sw.seek(0)
	now := time.Now()
	sw.write1(3)
	sw.write1(uint8(now.Year() - 1900))
	sw.write1(uint8(now.Month()))
	sw.write1(uint8(now.Day()))
	sw.write4le(numRecords)
	sw.write2le(uint16(dbfHeaderSize + 32*len(fields) + 1))
	sw.write2le(uint16(dbfRecordLength(fields)))
	sw.write(make([]byte, 20))

	var desc [32]byte
	for _, f := range fields {
		for i := range desc {
			desc[i] = 0
		}
		copy(desc[:11], f.Name)
		desc[11] = byte(f.Type)
		desc[16] = uint8(f.Size)
		desc[17] = uint8(f.Decimal)
		sw.write(desc[:])
	}
	sw.write1('\r')
	return sw.err()
}

// dbfRecordLength is the on-disk row size, including the deletion
// flag byte.
func dbfRecordLength(fields []Field) int {
	n := 1
	for _, f := range fields {
		n += f.Size
	}
	return n
}

func isRun(b []byte, c byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, x := range b {
		if x != c {
			return false
		}
	}
	return true
}

// decodeFieldValue converts the raw bytes of one column to a Go value.
// Unparseable content degrades to nil rather than failing the record.
func decodeFieldValue(f Field, raw []byte, o *Options) (any, error) {
	switch f.Type {
	case FieldNumber, FieldFloat:
		s := strings.TrimSpace(string(raw))
		// QGIS writes a '*' run for null numbers.
		if s == "" || isRun([]byte(s), '*') {
			return nil, nil
		}
		if f.Decimal == 0 && !strings.ContainsAny(s, ".eE") {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, nil
			}
			return n, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, nil
		}
		return v, nil
	case FieldDate:
		// QGIS writes a '0' run for null dates.
		if isRun(raw, '0') || isRun(raw, ' ') || len(raw) != 8 {
			return nil, nil
		}
		t, err := time.Parse("20060102", string(raw))
		if err != nil {
			return nil, nil
		}
		return t, nil
	case FieldLogical:
		if len(raw) == 0 {
			return nil, nil
		}
		switch raw[0] {
		case 'T', 't', 'Y', 'y', '1':
			return true, nil
		case 'F', 'f', 'N', 'n', '0':
			return false, nil
		}
		return nil, nil
	default: // FieldCharacter and anything unrecognized
		s, err := decodeText(bytes.TrimRight(raw, "\x00 "), o)
		if err != nil {
			return nil, err
		}
		return strings.TrimLeft(s, " "), nil
	}
}

// encodeFieldValue renders a value as exactly f.Size bytes, using the
// QGIS null conventions for nil.
func encodeFieldValue(f Field, v any, o *Options) ([]byte, error) {
	switch f.Type {
	case FieldNumber, FieldFloat:
		if v == nil {
			return bytes.Repeat([]byte{'*'}, f.Size), nil
		}
		s, err := formatNumber(f, v)
		if err != nil {
			return nil, err
		}
		return padLeft(s, f.Size), nil
	case FieldDate:
		if v == nil {
			return bytes.Repeat([]byte{'0'}, f.Size), nil
		}
		switch t := v.(type) {
		case time.Time:
			return []byte(t.Format("20060102")), nil
		case string:
			if len(t) == f.Size {
				return []byte(t), nil
			}
			return nil, fmt.Errorf("%w: date %q for field %s", ErrFieldOverflow, t, f.Name)
		default:
			return nil, fmt.Errorf("shapefile: field %s: cannot encode %T as date", f.Name, v)
		}
	case FieldLogical:
		if v == nil {
			return []byte{' '}, nil
		}
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("shapefile: field %s: cannot encode %T as logical", f.Name, v)
		}
		if b {
			return []byte{'T'}, nil
		}
		return []byte{'F'}, nil
	default:
		var s string
		if v != nil {
			s = fmt.Sprint(v)
		}
		b, err := encodeText(s, o)
		if err != nil {
			return nil, fmt.Errorf("shapefile: field %s: %w", f.Name, err)
		}
		// Character values are silently truncated to the declared
		// width, as dBASE writers traditionally do.
		if len(b) > f.Size {
			b = b[:f.Size]
		}
		return padRight(b, f.Size), nil
	}
}

func formatNumber(f Field, v any) (string, error) {
	var s string
	switch n := v.(type) {
	case int:
		s = strconv.FormatInt(int64(n), 10)
	case int32:
		s = strconv.FormatInt(int64(n), 10)
	case int64:
		s = strconv.FormatInt(n, 10)
	case float32:
		s = strconv.FormatFloat(float64(n), 'f', f.Decimal, 64)
	case float64:
		s = strconv.FormatFloat(n, 'f', f.Decimal, 64)
	case string:
		s = n
	default:
		return "", fmt.Errorf("shapefile: field %s: cannot encode %T as number", f.Name, v)
	}
	if len(s) > f.Size {
		return "", fmt.Errorf("%w: %q in %s(%d,%d)", ErrFieldOverflow, s, f.Name, f.Size, f.Decimal)
	}
	return s, nil
}

func padLeft(s string, size int) []byte {
	b := make([]byte, size)
	for i := range b {
		b[i] = ' '
	}
	copy(b[size-len(s):], s)
	return b
}

func padRight(b []byte, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = ' '
	}
	copy(out, b)
	return out
}

func decodeText(b []byte, o *Options) (string, error) {
	if o == nil || o.Encoding == nil {
		return string(b), nil
	}
	s, err := o.Encoding.NewDecoder().Bytes(b)
	if err != nil && o.EncodingErrors == EncodingStrict {
		return "", err
	}
	return string(s), nil
}

func encodeText(s string, o *Options) ([]byte, error) {
	if o == nil || o.Encoding == nil {
		return []byte(s), nil
	}
	enc := o.Encoding.NewEncoder()
	switch o.EncodingErrors {
	case EncodingReplace:
		b, err := encoding.ReplaceUnsupported(enc).Bytes([]byte(s))
		if err != nil {
			return nil, err
		}
		return b, nil
	case EncodingIgnore:
		var out []byte
		for _, r := range s {
			rb, err := enc.Bytes([]byte(string(r)))
			enc.Reset()
			if err == nil {
				out = append(out, rb...)
			}
		}
		return out, nil
	default:
		return enc.Bytes([]byte(s))
	}
}
