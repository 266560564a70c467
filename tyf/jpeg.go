// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	markerSOI  = 0xffd8
	markerEOI  = 0xffd9
	markerAPP1 = 0xffe1
	markerSOS  = 0xffda
)

var (
	// ErrNotJPEG is returned by ExtractJPEG when the stream is not a
	// JPEG file.
	ErrNotJPEG = errors.New("tyf: not a JPEG file")

	// ErrNoExif is returned when a JPEG carries no Exif APP1 segment.
	ErrNoExif = errors.New("tyf: no Exif segment")
)

var exifPrefix = []byte("Exif\x00\x00")

// ExtractJPEG walks the JPEG marker segments of r and decodes the
// embedded TIFF stream of the first Exif APP1 segment.
func ExtractJPEG(r io.ReadSeeker) (tf *File, err error) {
	sr := newStreamReader(r, binary.BigEndian)
	defer catchStop(&err, sr)

	if sr.read2() != markerSOI {
		return nil, ErrNotJPEG
	}
	for {
		marker := sr.read2()
		if marker == markerEOI || marker == markerSOS {
			return nil, ErrNoExif
		}
		length := int(sr.read2())
		if length < 2 {
			return nil, newInvalidFormatErrorf("jpeg segment 0x%04x length %d", marker, length)
		}
		payload := sr.readBytes(length - 2)
		if marker == markerAPP1 && bytes.HasPrefix(payload, exifPrefix) {
			return Decode(bytes.NewReader(payload[len(exifPrefix):]), nil)
		}
	}
}
