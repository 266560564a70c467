// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf

import (
	"fmt"
	"sort"
	"strings"
)

// GeoTIFF carrier tags.
const (
	TagModelPixelScale     = 33550
	TagModelTiepoint       = 33922
	TagModelTransformation = 34264
	TagGeoKeyDirectory     = 34735
	TagGeoDoubleParams     = 34736
	TagGeoASCIIParams      = 34737
)

// GeoKey is one entry of the GeoKey directory. Value is a uint16 for
// inline keys, a float64 for keys indexed into GeoDoubleParams, or a
// string for keys ranged into GeoAsciiParams.
type GeoKey struct {
	ID    uint16
	Value any
}

// GeoKeyDirectory is the decoded GeoTIFF key set of one IFD, together
// with the georeferencing model tags that travel with it.
type GeoKeyDirectory struct {
	Version  uint16
	Revision [2]uint16

	// PixelScale is ModelPixelScale (Sx, Sy, Sz), nil when absent.
	PixelScale *[3]float64
	// Tiepoints is ModelTiepoint split into (I, J, K, X, Y, Z) tuples.
	Tiepoints [][6]float64
	// Transformation is the raw 4x4 ModelTransformation matrix in row
	// major order, nil when absent.
	Transformation *[16]float64

	keys map[uint16]*GeoKey
}

// NewGeoKeyDirectory returns an empty directory at GeoTIFF revision
// 1.8.1.
func NewGeoKeyDirectory() *GeoKeyDirectory {
	return &GeoKeyDirectory{
		Version:  1,
		Revision: [2]uint16{8, 1},
		keys:     make(map[uint16]*GeoKey),
	}
}

// SetKey stores a key value: uint16 (or int) for coded keys, float64
// for double keys, string for citation keys.
func (g *GeoKeyDirectory) SetKey(id uint16, value any) error {
	switch v := value.(type) {
	case int:
		value = uint16(v)
	case uint16, float64, string:
	default:
		return fmt.Errorf("tyf: geokey %d: cannot store %T", id, v)
	}
	g.keys[id] = &GeoKey{ID: id, Value: value}
	return nil
}

// SetKeyByName is SetKey addressed by the GeoKey name, e.g.
// "GTModelTypeGeoKey".
func (g *GeoKeyDirectory) SetKeyByName(name string, value any) error {
	id, ok := geoKeyIDsByName[name]
	if !ok {
		return fmt.Errorf("tyf: unknown geokey %q", name)
	}
	return g.SetKey(id, value)
}

// Key returns the value of key id.
func (g *GeoKeyDirectory) Key(id uint16) (any, bool) {
	k, ok := g.keys[id]
	if !ok {
		return nil, false
	}
	return k.Value, true
}

// KeyByName returns the value of the named key.
func (g *GeoKeyDirectory) KeyByName(name string) (any, bool) {
	id, ok := geoKeyIDsByName[name]
	if !ok {
		return nil, false
	}
	return g.Key(id)
}

// DeleteKey removes key id if present.
func (g *GeoKeyDirectory) DeleteKey(id uint16) {
	delete(g.keys, id)
}

// Keys returns the keys in ascending ID order.
func (g *GeoKeyDirectory) Keys() []*GeoKey {
	out := make([]*GeoKey, 0, len(g.keys))
	for _, k := range g.keys {
		out = append(out, k)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// GeoKeysFromIfd decodes the GeoKey directory triad and the model tags
// of one IFD. An IFD without GeoTIFF tags yields an empty directory.
func GeoKeysFromIfd(ifd *Ifd) (*GeoKeyDirectory, error) {
	g := NewGeoKeyDirectory()

	if v := tagFloats(ifd.Get(TagModelPixelScale)); len(v) >= 3 {
		g.PixelScale = &[3]float64{v[0], v[1], v[2]}
	}
	if v := tagFloats(ifd.Get(TagModelTiepoint)); len(v) >= 6 {
		for i := 0; i+6 <= len(v); i += 6 {
			var tp [6]float64
			copy(tp[:], v[i:i+6])
			g.Tiepoints = append(g.Tiepoints, tp)
		}
	}
	if v := tagFloats(ifd.Get(TagModelTransformation)); len(v) >= 16 {
		var m [16]float64
		copy(m[:], v[:16])
		g.Transformation = &m
	}

	dirTag := ifd.Get(TagGeoKeyDirectory)
	if dirTag == nil {
		return g, nil
	}
	dir, ok := dirTag.raw.([]uint16)
	if !ok || len(dir) < 4 {
		return nil, newInvalidFormatErrorf("geokey directory header")
	}
	g.Version = dir[0]
	g.Revision = [2]uint16{dir[1], dir[2]}
	numKeys := int(dir[3])
	if len(dir) < 4+4*numKeys {
		return nil, newInvalidFormatErrorf("geokey directory: %d keys in %d entries", numKeys, len(dir))
	}

	doubles := tagFloats(ifd.Get(TagGeoDoubleParams))
	var ascii string
	if t := ifd.Get(TagGeoASCIIParams); t != nil {
		if b, ok := t.raw.([]byte); ok {
			ascii = string(b)
		}
	}

	for i := 0; i < numKeys; i++ {
		q := dir[4+4*i : 8+4*i]
		id, location, count, value := q[0], q[1], int(q[2]), q[3]
		switch location {
		case 0:
			g.keys[id] = &GeoKey{ID: id, Value: value}
		case TagGeoDoubleParams:
			if int(value) >= len(doubles) {
				return nil, newInvalidFormatErrorf("geokey %d: double index %d", id, value)
			}
			g.keys[id] = &GeoKey{ID: id, Value: doubles[value]}
		case TagGeoASCIIParams:
			end := int(value) + count - 1
			if end > len(ascii) || int(value) > end {
				return nil, newInvalidFormatErrorf("geokey %d: ascii range %d+%d", id, value, count)
			}
			s := strings.TrimRight(ascii[value:end], "|")
			g.keys[id] = &GeoKey{ID: id, Value: s}
		default:
			return nil, newInvalidFormatErrorf("geokey %d: location %d", id, location)
		}
	}
	return g, nil
}

// ToIfd encodes the directory back into the GeoTIFF tag triad plus the
// model tags, with defaults for absent model tags: zero tiepoint, unit
// pixel scale and a north-up identity transformation.
func (g *GeoKeyDirectory) ToIfd() *Ifd {
	var dir []uint16
	var doubles []float64
	var ascii []byte

	keys := g.Keys()
	for _, k := range keys {
		switch v := k.Value.(type) {
		case uint16:
			dir = append(dir, k.ID, 0, 1, v)
		case float64:
			dir = append(dir, k.ID, TagGeoDoubleParams, 1, uint16(len(doubles)))
			doubles = append(doubles, v)
		case string:
			dir = append(dir, k.ID, TagGeoASCIIParams, uint16(len(v)+1), uint16(len(ascii)))
			ascii = append(ascii, v...)
			ascii = append(ascii, '|')
		}
	}

	ifd := NewIfd()

	tiepoints := g.Tiepoints
	if len(tiepoints) == 0 {
		tiepoints = [][6]float64{{}}
	}
	flat := make([]float64, 0, 6*len(tiepoints))
	for _, tp := range tiepoints {
		flat = append(flat, tp[:]...)
	}
	ifd.Set(TagModelTiepoint, TypeDouble, flat)

	scale := [3]float64{1, 1, 1}
	if g.PixelScale != nil {
		scale = *g.PixelScale
	}
	ifd.Set(TagModelPixelScale, TypeDouble, scale[:])

	matrix := [16]float64{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	if g.Transformation != nil {
		matrix = *g.Transformation
	}
	ifd.Set(TagModelTransformation, TypeDouble, matrix[:])

	header := []uint16{g.Version, g.Revision[0], g.Revision[1], uint16(len(keys))}
	ifd.Set(TagGeoKeyDirectory, TypeShort, append(header, dir...))
	ifd.Set(TagGeoDoubleParams, TypeDouble, doubles)
	ifd.Set(TagGeoASCIIParams, TypeASCII, ascii)
	return ifd
}

// AffineTransform maps raster coordinates to model space through a
// 4x4 matrix.
type AffineTransform func(x, y, z1, z2 float64) (float64, float64, float64, float64)

// ModelTransformation returns the raster-to-model transform. An
// explicit ModelTransformation matrix wins; otherwise one is
// synthesized from the pixel scale and the chosen tiepoint; with
// neither, a north-up identity is returned.
func (g *GeoKeyDirectory) ModelTransformation(tieIndex int) AffineTransform {
	var m [16]float64
	switch {
	case g.Transformation != nil:
		m = *g.Transformation
	case g.PixelScale != nil && tieIndex >= 0 && tieIndex < len(g.Tiepoints):
		sx, sy, sz := g.PixelScale[0], g.PixelScale[1], g.PixelScale[2]
		tp := g.Tiepoints[tieIndex]
		i, j, k, x, y, z := tp[0], tp[1], tp[2], tp[3], tp[4], tp[5]
		m = [16]float64{
			sx, 0, 0, x - i*sx,
			0, -sy, 0, y + j*sy,
			0, 0, sz, z - k*sz,
			0, 0, 0, 1,
		}
	default:
		m = [16]float64{
			1, 0, 0, 0,
			0, -1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}
	}
	return func(x, y, z1, z2 float64) (float64, float64, float64, float64) {
		return m[0]*x + m[1]*y + m[2]*z1 + m[3]*z2,
			m[4]*x + m[5]*y + m[6]*z1 + m[7]*z2,
			m[8]*x + m[9]*y + m[10]*z1 + m[11]*z2,
			m[12]*x + m[13]*y + m[14]*z1 + m[15]*z2
	}
}

// tagFloats reads a numeric tag as []float64, whatever its on-disk
// type.
func tagFloats(t *Tag) []float64 {
	if t == nil {
		return nil
	}
	switch v := t.raw.(type) {
	case []float64:
		return v
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []uint16:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []uint32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out
	case []Rational:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = x.Float()
		}
		return out
	}
	return nil
}
