// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"errors"
	"fmt"
)

var (
	// ErrNotTIFF is returned when the stream does not start with a
	// valid TIFF byte-order mark and magic number.
	ErrNotTIFF = errors.New("tyf: not a TIFF file")

	// ErrBigTIFF is returned for version 43 streams, which use 8-byte
	// offsets and are not supported.
	ErrBigTIFF = errors.New("tyf: BigTIFF file not supported")

	// ErrInvalidFormat is the base of all structural decode errors.
	ErrInvalidFormat = errors.New("tyf: invalid format")
)

// internal sentinel used to unwind the decode path, recovered at the
// API boundary.
var errStop = errors.New("stop")

func newInvalidFormatErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFormat, fmt.Sprintf(format, args...))
}

// IsInvalidFormat reports whether err means the stream is structurally
// broken, as opposed to an I/O failure.
func IsInvalidFormat(err error) bool {
	return errors.Is(err, ErrInvalidFormat)
}
