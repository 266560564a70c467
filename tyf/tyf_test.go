// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package tyf_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	exiftiff "github.com/rwcarlsen/goexif/tiff"

	"github.com/gisbits/geobin/tyf"
)

// newTestFile builds a small striped grayscale TIFF with EXIF and GPS
// sub-IFDs.
func newTestFile(c *qt.C) *tyf.File {
	ifd := tyf.NewIfd()
	c.Assert(ifd.Set(0x100, tyf.TypeShort, 4), qt.IsNil)  // ImageWidth
	c.Assert(ifd.Set(0x101, tyf.TypeShort, 2), qt.IsNil)  // ImageLength
	c.Assert(ifd.Set(0x102, tyf.TypeShort, 8), qt.IsNil)  // BitsPerSample
	c.Assert(ifd.Set(0x103, tyf.TypeShort, 1), qt.IsNil)  // Compression
	c.Assert(ifd.Set(0x106, tyf.TypeShort, 1), qt.IsNil)  // BlackIsZero
	c.Assert(ifd.Set(0x116, tyf.TypeShort, 1), qt.IsNil)  // RowsPerStrip
	c.Assert(ifd.SetValue(0x131, "geobin test"), qt.IsNil)
	c.Assert(ifd.SetValue(0x132, time.Date(2020, 6, 1, 12, 30, 0, 0, time.UTC)), qt.IsNil)

	ifd.Stripes = [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}
	c.Assert(ifd.Set(tyf.TagStripOffsets, tyf.TypeLong, []uint32{0, 0}), qt.IsNil)
	c.Assert(ifd.Set(tyf.TagStripByteCounts, tyf.TypeLong, []uint32{4, 4}), qt.IsNil)

	exif := tyf.NewIfd()
	c.Assert(exif.Set(0xa002, tyf.TypeLong, 4), qt.IsNil) // PixelXDimension
	ifd.SubIfd[tyf.TagExifIFD] = exif

	ifd.SetLocation(5.9077, 45.5667, 436)

	return &tyf.File{IFDs: []*tyf.Ifd{ifd}, ByteOrder: binary.LittleEndian}
}

func TestRoundTrip(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "test.tif")
	c.Assert(newTestFile(c).Save(path), qt.IsNil)

	got, err := tyf.Open(path)
	c.Assert(err, qt.IsNil)
	c.Assert(len(got.IFDs), qt.Equals, 1)
	ifd := got.IFDs[0]

	c.Assert(ifd.Get(0x100).Value(), qt.Equals, uint16(4))
	c.Assert(ifd.Get(0x131).Value(), qt.Equals, "geobin test")
	when, ok := ifd.Get(0x132).Value().(time.Time)
	c.Assert(ok, qt.IsTrue)
	c.Assert(when.Equal(time.Date(2020, 6, 1, 12, 30, 0, 0, time.UTC)), qt.IsTrue)

	// Sub-IFDs resolved.
	exif := ifd.SubIfd[tyf.TagExifIFD]
	c.Assert(exif, qt.IsNotNil)
	c.Assert(exif.Get(0xa002).Value(), qt.Equals, uint32(4))

	// Raster is lazy for path-opened files.
	c.Assert(ifd.RasterLoaded(), qt.IsFalse)
	c.Assert(got.LoadRaster(), qt.IsNil)
	c.Assert(ifd.Stripes, qt.DeepEquals, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}})

	lon, lat, alt, ok := ifd.Location()
	c.Assert(ok, qt.IsTrue)
	c.Assert(lon > 5.9076 && lon < 5.9078, qt.IsTrue)
	c.Assert(lat > 45.5666 && lat < 45.5668, qt.IsTrue)
	c.Assert(alt, qt.Equals, 436.0)
}

func TestRoundTripBigEndian(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "test.tif")
	f, err := os.Create(path)
	c.Assert(err, qt.IsNil)
	c.Assert(newTestFile(c).Encode(f, binary.BigEndian), qt.IsNil)
	c.Assert(f.Close(), qt.IsNil)

	got, err := tyf.Open(path)
	c.Assert(err, qt.IsNil)
	c.Assert(got.ByteOrder, qt.Equals, binary.ByteOrder(binary.BigEndian))
	c.Assert(got.IFDs[0].Get(0x100).Value(), qt.Equals, uint16(4))
	c.Assert(got.LoadRaster(), qt.IsNil)
	c.Assert(got.IFDs[0].Stripes[1], qt.DeepEquals, []byte{5, 6, 7, 8})
}

func TestStreamDecodeLoadsRasterEagerly(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "test.tif")
	c.Assert(newTestFile(c).Save(path), qt.IsNil)
	raw, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)

	got, err := tyf.Decode(bytes.NewReader(raw), nil)
	c.Assert(err, qt.IsNil)
	c.Assert(got.IFDs[0].RasterLoaded(), qt.IsTrue)
	c.Assert(got.IFDs[0].Stripes[0], qt.DeepEquals, []byte{1, 2, 3, 4})
}

func TestNotTIFFAndBigTIFF(t *testing.T) {
	c := qt.New(t)

	_, err := tyf.Decode(bytes.NewReader([]byte("not a tiff at all")), nil)
	c.Assert(err, qt.ErrorIs, tyf.ErrNotTIFF)

	big := []byte{'I', 'I', 43, 0, 8, 0, 0, 0}
	_, err = tyf.Decode(bytes.NewReader(big), nil)
	c.Assert(err, qt.ErrorIs, tyf.ErrBigTIFF)
}

func TestIFDChainCycle(t *testing.T) {
	c := qt.New(t)

	// Empty IFD at offset 8 whose next-IFD pointer loops back to
	// itself.
	raw := []byte{'I', 'I', 42, 0, 8, 0, 0, 0, 0, 0, 8, 0, 0, 0}
	_, err := tyf.Decode(bytes.NewReader(raw), nil)
	c.Assert(err, qt.ErrorIs, tyf.ErrInvalidFormat)
}

func TestCrossDecodeWithGoexif(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "test.tif")
	c.Assert(newTestFile(c).Save(path), qt.IsNil)
	raw, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)

	tf, err := exiftiff.Decode(bytes.NewReader(raw))
	c.Assert(err, qt.IsNil)
	c.Assert(len(tf.Dirs) > 0, qt.IsTrue)

	byID := map[uint16]*exiftiff.Tag{}
	for _, tag := range tf.Dirs[0].Tags {
		byID[tag.Id] = tag
	}
	width, err := byID[0x100].Int64(0)
	c.Assert(err, qt.IsNil)
	c.Assert(width, qt.Equals, int64(4))
	software, err := byID[0x131].StringVal()
	c.Assert(err, qt.IsNil)
	c.Assert(software, qt.Equals, "geobin test")
}

func TestGeoKeyDirectoryRoundTrip(t *testing.T) {
	c := qt.New(t)

	g := tyf.NewGeoKeyDirectory()
	c.Assert(g.SetKey(1024, 2), qt.IsNil)               // geographic model
	c.Assert(g.SetKey(1025, 1), qt.IsNil)               // pixel is area
	c.Assert(g.SetKey(2048, 4326), qt.IsNil)            // WGS84
	c.Assert(g.SetKey(2057, 6378137.0), qt.IsNil)       // semi-major axis
	c.Assert(g.SetKey(1026, "WGS 84 / geobin"), qt.IsNil)
	g.PixelScale = &[3]float64{0.1, 0.1, 1}
	g.Tiepoints = [][6]float64{{0, 0, 0, 5.0, 45.0, 0}}

	ifd := tyf.NewIfd()
	c.Assert(ifd.Set(0x100, tyf.TypeShort, 4), qt.IsNil)
	c.Assert(ifd.Set(0x101, tyf.TypeShort, 2), qt.IsNil)
	for _, tag := range g.ToIfd().Tags() {
		ifd.Put(tag)
	}

	path := filepath.Join(t.TempDir(), "geo.tif")
	f := &tyf.File{IFDs: []*tyf.Ifd{ifd}, ByteOrder: binary.LittleEndian}
	c.Assert(f.Save(path), qt.IsNil)

	got, err := tyf.Open(path)
	c.Assert(err, qt.IsNil)
	g2, err := tyf.GeoKeysFromIfd(got.IFDs[0])
	c.Assert(err, qt.IsNil)

	v, ok := g2.Key(1024)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, uint16(2))
	v, ok = g2.Key(2057)
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, 6378137.0)
	v, ok = g2.KeyByName("GTCitationGeoKey")
	c.Assert(ok, qt.IsTrue)
	c.Assert(v, qt.Equals, "WGS 84 / geobin")

	c.Assert(g2.PixelScale, qt.DeepEquals, &[3]float64{0.1, 0.1, 1})
	c.Assert(g2.Tiepoints, qt.DeepEquals, [][6]float64{{0, 0, 0, 5.0, 45.0, 0}})
}

func TestModelTransformation(t *testing.T) {
	c := qt.New(t)

	g := tyf.NewGeoKeyDirectory()
	g.PixelScale = &[3]float64{2, 2, 1}
	g.Tiepoints = [][6]float64{{0, 0, 0, 100, 200, 0}}

	tr := g.ModelTransformation(0)
	x, y, _, _ := tr(0, 0, 0, 1)
	c.Assert(x, qt.Equals, 100.0)
	c.Assert(y, qt.Equals, 200.0)
	x, y, _, _ = tr(10, 10, 0, 1)
	c.Assert(x, qt.Equals, 120.0)
	c.Assert(y, qt.Equals, 180.0)

	// Without any model tags, the identity transform applies.
	empty := tyf.NewGeoKeyDirectory()
	x, y, _, _ = empty.ModelTransformation(0)(7, 3, 0, 1)
	c.Assert(x, qt.Equals, 7.0)
	c.Assert(y, qt.Equals, -3.0)
}

func TestExtractJPEG(t *testing.T) {
	c := qt.New(t)

	// Build a TIFF stream first, then wrap it in a minimal JPEG.
	path := filepath.Join(t.TempDir(), "test.tif")
	c.Assert(newTestFile(c).Save(path), qt.IsNil)
	tiffRaw, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)

	var jpg bytes.Buffer
	jpg.Write([]byte{0xff, 0xd8})       // SOI
	jpg.Write([]byte{0xff, 0xe0, 0, 4}) // short APP0
	jpg.Write([]byte{0, 0})
	payload := append([]byte("Exif\x00\x00"), tiffRaw...)
	jpg.Write([]byte{0xff, 0xe1})
	jpg.Write([]byte{byte((len(payload) + 2) >> 8), byte(len(payload) + 2)})
	jpg.Write(payload)
	jpg.Write([]byte{0xff, 0xd9}) // EOI

	got, err := tyf.ExtractJPEG(bytes.NewReader(jpg.Bytes()))
	c.Assert(err, qt.IsNil)
	c.Assert(got.IFDs[0].Get(0x131).Value(), qt.Equals, "geobin test")

	_, err = tyf.ExtractJPEG(bytes.NewReader([]byte{0, 1, 2}))
	c.Assert(err, qt.ErrorIs, tyf.ErrNotJPEG)
}
