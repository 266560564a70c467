// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingFile is returned when none of the triad components can
	// be found for a path.
	ErrMissingFile = errors.New("shapefile: file not found")

	// ErrCorruptHeader is returned when a file header fails its magic
	// number or structural checks.
	ErrCorruptHeader = errors.New("shapefile: corrupt header")

	// ErrIndexOutOfRange is returned by random access with an index
	// outside the record range.
	ErrIndexOutOfRange = errors.New("shapefile: record index out of range")

	// ErrTooManyFields is returned by AddField once the dbf field limit
	// of 2046 is reached.
	ErrTooManyFields = errors.New("shapefile: dbf field limit of 2046 reached")

	// ErrShapeTypeMismatch is returned when a written shape does not
	// match the type pinned by the first non-null shape.
	ErrShapeTypeMismatch = errors.New("shapefile: shape type mismatch")

	// ErrFieldOverflow is returned when a numeric attribute value does
	// not fit the declared field width.
	ErrFieldOverflow = errors.New("shapefile: value does not fit field")

	// ErrUnbalanced is returned on Close when shape and record counts
	// differ and auto-balancing is disabled.
	ErrUnbalanced = errors.New("shapefile: shape and record counts differ")

	// ErrFieldsFrozen is returned by AddField after the first record has
	// been written.
	ErrFieldsFrozen = errors.New("shapefile: cannot add fields after first record")

	// ErrNoSHP is returned by geometry operations on a reader or writer
	// opened without a .shp component.
	ErrNoSHP = errors.New("shapefile: no shp component")

	// ErrNoDBF is returned by attribute operations on a reader or writer
	// opened without a .dbf component.
	ErrNoDBF = errors.New("shapefile: no dbf component")
)

// internal sentinel used to unwind the read path, recovered at the API
// boundary (see streamReader.stop).
var errStop = errors.New("stop")

func newCorruptHeaderErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptHeader, fmt.Sprintf(format, args...))
}
