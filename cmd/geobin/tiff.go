// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gisbits/geobin/tyf"
)

var tiffCmd = &cobra.Command{
	Use:   "tiff",
	Short: "Work with TIFF, GeoTIFF and Exif tag directories",
}

func init() {
	tiffCmd.AddCommand(tiffDumpCmd)
	tiffCmd.AddCommand(tiffExifCmd)
	tiffCmd.AddCommand(tiffConvertCmd)
}

// tiff dump

var tiffDumpCmd = &cobra.Command{
	Use:   "dump <file.tif>",
	Short: "Print the tag directories of a TIFF file",
	Long: `Print every IFD of a TIFF file with decoded tag values, the
EXIF/GPS/interoperability sub-IFDs, and the GeoTIFF key directory when
one is present.`,
	Args: cobra.ExactArgs(1),
	RunE: runTiffDump,
}

func runTiffDump(cmd *cobra.Command, args []string) error {
	f, err := tyf.Open(args[0])
	if err != nil {
		return err
	}
	return dumpFile(f)
}

func dumpFile(f *tyf.File) error {
	order := "little-endian"
	if f.ByteOrder == binary.BigEndian {
		order = "big-endian"
	}
	fmt.Printf("TIFF, %s, %d IFD(s)\n", order, len(f.IFDs))

	for n, ifd := range f.IFDs {
		fmt.Printf("\nIFD %d (%d tags):\n", n, ifd.Len())
		dumpIfd(ifd, "  ", false)

		for _, id := range []uint16{tyf.TagExifIFD, tyf.TagGPSIFD, tyf.TagInteropIFD} {
			sub, ok := ifd.SubIfd[id]
			if !ok {
				continue
			}
			fmt.Printf("\n%s (%d tags):\n", tyf.TagName(id, false), sub.Len())
			dumpIfd(sub, "  ", id == tyf.TagGPSIFD)
		}

		if lon, lat, alt, ok := ifd.Location(); ok {
			fmt.Printf("\nLocation: %.6f, %.6f, %.1fm\n", lon, lat, alt)
		}

		if ifd.Has(tyf.TagGeoKeyDirectory) {
			g, err := tyf.GeoKeysFromIfd(ifd)
			if err != nil {
				return err
			}
			dumpGeoKeys(g)
		}
	}
	return nil
}

func dumpIfd(ifd *tyf.Ifd, indent string, gps bool) {
	for _, t := range ifd.Tags() {
		v := t.Value()
		line := fmt.Sprintf("%s%-30s %v", indent, tyf.TagName(t.ID, gps), displayValue(v))
		if m := tyf.TagMeaning(t.ID, v); m != "" {
			line += fmt.Sprintf(" (%s)", m)
		}
		fmt.Println(line)
	}
}

func dumpGeoKeys(g *tyf.GeoKeyDirectory) {
	fmt.Printf("\nGeoKeys (revision %d.%d.%d):\n", g.Version, g.Revision[0], g.Revision[1])
	for _, k := range g.Keys() {
		line := fmt.Sprintf("  %-30s %v", tyf.GeoKeyName(k.ID), k.Value)
		if m := tyf.GeoKeyMeaning(k.ID, k.Value); m != "" {
			line += fmt.Sprintf(" (%s)", m)
		}
		fmt.Println(line)
	}
	if g.PixelScale != nil {
		fmt.Printf("  PixelScale: %v\n", *g.PixelScale)
	}
	for _, tp := range g.Tiepoints {
		fmt.Printf("  Tiepoint: raster (%g, %g, %g) -> model (%g, %g, %g)\n",
			tp[0], tp[1], tp[2], tp[3], tp[4], tp[5])
	}
	if g.Transformation != nil {
		fmt.Printf("  Transformation: %v\n", *g.Transformation)
	}
}

// displayValue shortens long slices so a dump stays readable.
func displayValue(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

// tiff exif

var tiffExifCmd = &cobra.Command{
	Use:   "exif <file.jpg>",
	Short: "Print the Exif tag directories of a JPEG file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTiffExif,
}

func runTiffExif(cmd *cobra.Command, args []string) error {
	in, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer in.Close()

	f, err := tyf.ExtractJPEG(in)
	if err != nil {
		return err
	}
	return dumpFile(f)
}

// tiff convert

var tiffConvertCmd = &cobra.Command{
	Use:   "convert <input.tif> <output.tif>",
	Short: "Rewrite a TIFF file, recomputing every offset",
	Long: `Decode a TIFF file, raster data included, and re-encode it
with a freshly computed layout. Useful for normalizing byte order and
compacting files with dead space.`,
	Args: cobra.ExactArgs(2),
	RunE: runTiffConvert,
}

func init() {
	tiffConvertCmd.Flags().String("byte-order", "little", "Output byte order: little, big")
}

func runTiffConvert(cmd *cobra.Command, args []string) error {
	orderStr, _ := cmd.Flags().GetString("byte-order")
	var order binary.ByteOrder
	switch orderStr {
	case "little":
		order = binary.LittleEndian
	case "big":
		order = binary.BigEndian
	default:
		return fmt.Errorf("unknown byte order: %s", orderStr)
	}

	f, err := tyf.Open(args[0])
	if err != nil {
		return err
	}
	log.Debugf("decoded %d IFD(s) from %s", len(f.IFDs), args[0])

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	if err := f.Encode(out, order); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
