// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"golang.org/x/text/encoding"
)

// EncodingErrorMode controls how undecodable or unencodable attribute
// text is handled.
type EncodingErrorMode int

const (
	// EncodingStrict fails the operation on bad text.
	EncodingStrict EncodingErrorMode = iota
	// EncodingReplace substitutes the replacement character.
	EncodingReplace
	// EncodingIgnore drops offending bytes.
	EncodingIgnore
)

// Options configures a Reader or Writer. The zero value is valid:
// UTF-8 attribute text, strict encoding errors, auto-balancing off and
// warnings discarded.
type Options struct {
	// Encoding is the character encoding of dbf text fields. Nil means
	// UTF-8. Use a charmap from golang.org/x/text for legacy codepages,
	// e.g. charmap.Windows1252.
	Encoding encoding.Encoding

	// EncodingErrors selects strict, replace or ignore handling of
	// text that does not fit Encoding.
	EncodingErrors EncodingErrorMode

	// AutoBalance makes the Writer pad the lagging side with null
	// shapes or empty records on Close so geometry and attributes end
	// up aligned.
	AutoBalance bool

	// Warnf is called for recoverable oddities found while decoding.
	// Nil discards warnings.
	Warnf func(format string, args ...any)
}

func (o *Options) warnf(format string, args ...any) {
	if o != nil && o.Warnf != nil {
		o.Warnf(format, args...)
	}
}

func optionsOrDefault(opts *Options) *Options {
	if opts == nil {
		return &Options{}
	}
	return opts
}
