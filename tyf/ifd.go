// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"fmt"
	"sort"
)

// Well-known pointer and raster tags.
const (
	TagStripOffsets    = 273
	TagStripByteCounts = 279
	TagFreeOffsets     = 288
	TagFreeByteCounts  = 289
	TagTileOffsets     = 324
	TagTileByteCounts  = 325
	TagJPEGIF          = 513
	TagJPEGIFLength    = 514

	TagExifIFD    = 34665
	TagGPSIFD     = 34853
	TagInteropIFD = 40965
)

// GPS sub-IFD tags used by the location helpers.
const (
	gpsLatitudeRef  = 1
	gpsLatitude     = 2
	gpsLongitudeRef = 3
	gpsLongitude    = 4
	gpsAltitudeRef  = 5
	gpsAltitude     = 6
)

// Ifd is one image file directory: a tag set keyed by ID, the sub-IFDs
// hanging off its pointer tags, and the raster blocks its offset tags
// refer to.
type Ifd struct {
	tags map[uint16]*Tag

	// SubIfd holds the directories referenced by pointer tags such as
	// TagExifIFD. The pointer tag values are recomputed on encode.
	SubIfd map[uint16]*Ifd

	// Raster data, loaded from the offsets/bytecounts tag pairs.
	Stripes [][]byte
	Tiles   [][]byte
	Free    [][]byte
	JPEGIf  []byte
}

// NewIfd returns an empty directory.
func NewIfd() *Ifd {
	return &Ifd{
		tags:   make(map[uint16]*Tag),
		SubIfd: make(map[uint16]*Ifd),
	}
}

// Len returns the number of tags in this directory, sub-IFDs excluded.
func (i *Ifd) Len() int { return len(i.tags) }

// Has reports whether the directory holds tag id.
func (i *Ifd) Has(id uint16) bool {
	_, ok := i.tags[id]
	return ok
}

// Get returns the tag with the given ID, or nil.
func (i *Ifd) Get(id uint16) *Tag { return i.tags[id] }

// Find returns the tag with the given ID, searching this directory
// first and then its sub-IFDs.
func (i *Ifd) Find(id uint16) *Tag {
	if t, ok := i.tags[id]; ok {
		return t
	}
	for _, sub := range i.SubIfd {
		if t := sub.Find(id); t != nil {
			return t
		}
	}
	return nil
}

// Put stores a tag, replacing any previous one with the same ID.
func (i *Ifd) Put(t *Tag) {
	i.tags[t.ID] = t
}

// Delete removes tag id if present.
func (i *Ifd) Delete(id uint16) {
	delete(i.tags, id)
}

// Tags returns the directory's tags in ascending ID order, the order
// the TIFF specification requires on disk.
func (i *Ifd) Tags() []*Tag {
	out := make([]*Tag, 0, len(i.tags))
	for _, t := range i.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// SetValue encodes a Go value through the tag codecs and stores it.
func (i *Ifd) SetValue(id uint16, value any) error {
	t, err := NewTag(id, value)
	if err != nil {
		return err
	}
	i.Put(t)
	return nil
}

// Set stores a value under an explicit TIFF type, converting common
// Go representations.
func (i *Ifd) Set(id uint16, typ Type, value any) error {
	raw, err := coerceRaw(typ, value)
	if err != nil {
		return fmt.Errorf("tyf: tag 0x%04x: %w", id, err)
	}
	i.Put(newTagRaw(id, typ, raw))
	return nil
}

func coerceRaw(typ Type, value any) (any, error) {
	switch typ {
	case TypeASCII:
		switch v := value.(type) {
		case string:
			return nullTerminated(v), nil
		case []byte:
			return v, nil
		}
	case TypeByte, TypeUndefined:
		if v, ok := value.([]byte); ok {
			return v, nil
		}
	case TypeShort:
		switch v := value.(type) {
		case uint16:
			return []uint16{v}, nil
		case int:
			return []uint16{uint16(v)}, nil
		case []uint16:
			return v, nil
		case []int:
			out := make([]uint16, len(v))
			for i, x := range v {
				out[i] = uint16(x)
			}
			return out, nil
		}
	case TypeLong:
		switch v := value.(type) {
		case uint32:
			return []uint32{v}, nil
		case int:
			return []uint32{clampLong(int64(v))}, nil
		case int64:
			return []uint32{clampLong(v)}, nil
		case []uint32:
			return v, nil
		case []int:
			out := make([]uint32, len(v))
			for i, x := range v {
				out[i] = clampLong(int64(x))
			}
			return out, nil
		}
	case TypeSLong:
		switch v := value.(type) {
		case int32:
			return []int32{v}, nil
		case int:
			return []int32{int32(v)}, nil
		case []int32:
			return v, nil
		}
	case TypeRational:
		switch v := value.(type) {
		case Rational:
			return []Rational{v}, nil
		case []Rational:
			return v, nil
		}
	case TypeSRational:
		switch v := value.(type) {
		case SRational:
			return []SRational{v}, nil
		case []SRational:
			return v, nil
		}
	case TypeFloat:
		switch v := value.(type) {
		case float32:
			return []float32{v}, nil
		case []float32:
			return v, nil
		}
	case TypeDouble:
		switch v := value.(type) {
		case float64:
			return []float64{v}, nil
		case []float64:
			return v, nil
		case []float32:
			out := make([]float64, len(v))
			for i, x := range v {
				out[i] = float64(x)
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", value, typ)
}

// HasRaster reports whether the directory references raster data.
func (i *Ifd) HasRaster() bool {
	return i.Has(TagStripOffsets) || i.Has(TagFreeOffsets) ||
		i.Has(TagTileOffsets) || i.Has(TagJPEGIF)
}

// RasterLoaded reports whether the referenced raster data has been
// read into memory.
func (i *Ifd) RasterLoaded() bool {
	if !i.HasRaster() {
		return true
	}
	return len(i.Stripes)+len(i.Tiles)+len(i.Free)+len(i.JPEGIf) > 0
}

// size returns the encoded size of the directory structure itself and
// of the out-of-line tag values that follow it.
func (i *Ifd) size() (ifdBytes, dataBytes uint32) {
	ifdBytes = 2 + 12*uint32(len(i.tags)) + 4
	for _, t := range i.tags {
		dataBytes += t.dataSize()
	}
	return ifdBytes, dataBytes
}

// check inserts a placeholder pointer tag for every sub-IFD whose
// pointer is missing, so encode has a slot to patch.
func (i *Ifd) check() {
	for id := range i.SubIfd {
		if !i.Has(id) {
			i.Set(id, TypeLong, 0)
		}
	}
}

func (i *Ifd) subIfd(id uint16) *Ifd {
	sub, ok := i.SubIfd[id]
	if !ok {
		sub = NewIfd()
		i.SubIfd[id] = sub
	}
	return sub
}

// SetLocation stores a GPS position in the GPS sub-IFD, creating it if
// needed. Negative latitude means south, negative longitude west.
func (i *Ifd) SetLocation(longitude, latitude, altitude float64) {
	gps := i.subIfd(TagGPSIFD)
	latRef := "N"
	if latitude < 0 {
		latRef = "S"
	}
	lonRef := "E"
	if longitude < 0 {
		lonRef = "W"
	}
	altRef := []byte{0}
	if altitude < 0 {
		altRef = []byte{1}
		altitude = -altitude
	}
	gps.Set(gpsLatitudeRef, TypeASCII, latRef)
	gps.Put(newTagRaw(gpsLatitude, TypeRational, encodeDMS(latitude)))
	gps.Set(gpsLongitudeRef, TypeASCII, lonRef)
	gps.Put(newTagRaw(gpsLongitude, TypeRational, encodeDMS(longitude)))
	gps.Set(gpsAltitudeRef, TypeByte, altRef)
	gps.Set(gpsAltitude, TypeRational, Rational{uint32(altitude * 1000), 1000})
}

// Location returns the GPS position from the GPS sub-IFD. ok is false
// when the position tags are incomplete.
func (i *Ifd) Location() (longitude, latitude, altitude float64, ok bool) {
	gps, found := i.SubIfd[TagGPSIFD]
	if !found {
		return 0, 0, 0, false
	}
	latT := gps.Get(gpsLatitude)
	lonT := gps.Get(gpsLongitude)
	if latT == nil || lonT == nil {
		return 0, 0, 0, false
	}
	latV, okLat := latT.raw.([]Rational)
	lonV, okLon := lonT.raw.([]Rational)
	if !okLat || !okLon {
		return 0, 0, 0, false
	}
	latitude = decodeDMS(latV)
	longitude = decodeDMS(lonV)
	if ref, _ := tagString(gps.Get(gpsLatitudeRef)); ref == "S" {
		latitude = -latitude
	}
	if ref, _ := tagString(gps.Get(gpsLongitudeRef)); ref == "W" {
		longitude = -longitude
	}
	if altT := gps.Get(gpsAltitude); altT != nil {
		if v, okAlt := altT.raw.([]Rational); okAlt && len(v) > 0 {
			altitude = v[0].Float()
			if refT := gps.Get(gpsAltitudeRef); refT != nil {
				if b, okRef := refT.raw.([]byte); okRef && len(b) > 0 && b[0] == 1 {
					altitude = -altitude
				}
			}
		}
	}
	return longitude, latitude, altitude, true
}

func tagString(t *Tag) (string, bool) {
	if t == nil {
		return "", false
	}
	s, ok := t.Value().(string)
	return s, ok
}
