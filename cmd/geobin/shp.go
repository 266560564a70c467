// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/gisbits/geobin/shapefile"
)

var shpCmd = &cobra.Command{
	Use:   "shp",
	Short: "Work with ESRI shapefiles",
}

func init() {
	shpCmd.AddCommand(shpInfoCmd)
	shpCmd.AddCommand(shpDumpCmd)
	shpCmd.AddCommand(shpQueryCmd)
}

func openShapefile(path string) (*shapefile.Reader, error) {
	return shapefile.Open(path, &shapefile.Options{Warnf: log.Warnf})
}

// shp info

var shpInfoCmd = &cobra.Command{
	Use:   "info <file.shp>",
	Short: "Display shapefile metadata",
	Long: `Display the shape type, bounding box, record counts and the
attribute table layout of a shapefile.`,
	Args: cobra.ExactArgs(1),
	RunE: runShpInfo,
}

func init() {
	shpInfoCmd.Flags().Bool("json", false, "Output as JSON")
}

func runShpInfo(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	r, err := openShapefile(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	numShapes, err := r.NumShapes()
	if err != nil && !errors.Is(err, shapefile.ErrNoSHP) {
		return err
	}

	if jsonOutput {
		bbox := r.BBox()
		fields := make([]map[string]any, 0, len(r.Fields()))
		for _, f := range r.Fields() {
			fields = append(fields, map[string]any{
				"name":    f.Name,
				"type":    string(f.Type),
				"size":    f.Size,
				"decimal": f.Decimal,
			})
		}
		info := map[string]any{
			"file":      args[0],
			"shapeType": r.ShapeType().String(),
			"bbox":      []float64{bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1]},
			"shapes":    numShapes,
			"records":   r.NumRecords(),
			"fields":    fields,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}

	fmt.Printf("Shapefile: %s\n", args[0])
	fmt.Printf("  Shape type: %s\n", r.ShapeType())
	bbox := r.BBox()
	fmt.Printf("  BBox:       (%g, %g) - (%g, %g)\n", bbox.Min[0], bbox.Min[1], bbox.Max[0], bbox.Max[1])
	fmt.Printf("  Shapes:     %d\n", numShapes)
	fmt.Printf("  Records:    %d\n", r.NumRecords())
	if len(r.Fields()) > 0 {
		fmt.Println("  Fields:")
		for _, f := range r.Fields() {
			fmt.Printf("    %-11s %c %3d.%d\n", f.Name, f.Type, f.Size, f.Decimal)
		}
	}
	return nil
}

// shp dump

var shpDumpCmd = &cobra.Command{
	Use:   "dump <file.shp>",
	Short: "Dump a shapefile as GeoJSON",
	Long: `Dump every shape and its attribute record as a GeoJSON
FeatureCollection. Null shapes become features without geometry.`,
	Args: cobra.ExactArgs(1),
	RunE: runShpDump,
}

func init() {
	shpDumpCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
}

func runShpDump(cmd *cobra.Command, args []string) error {
	outputPath, _ := cmd.Flags().GetString("output")

	r, err := openShapefile(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	fc, err := featureCollection(r)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outputPath != "" {
		out, err = os.Create(outputPath)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(fc)
}

func featureCollection(r *shapefile.Reader) (*geojson.FeatureCollection, error) {
	srs, err := r.ShapeRecords()
	if errors.Is(err, shapefile.ErrNoDBF) {
		// Geometry only.
		shapes, err := r.Shapes()
		if err != nil {
			return nil, err
		}
		srs = make([]*shapefile.ShapeRecord, len(shapes))
		for i, s := range shapes {
			srs[i] = &shapefile.ShapeRecord{Shape: s}
		}
	} else if err != nil {
		return nil, err
	}

	fields := r.Fields()
	fc := geojson.NewFeatureCollection()
	for _, sr := range srs {
		var f *geojson.Feature
		if sr.Shape != nil && sr.Shape.Type != shapefile.Null {
			f = geojson.NewFeature(sr.Shape.Geometry())
		} else {
			f = &geojson.Feature{Type: "Feature", Properties: geojson.Properties{}}
		}
		if sr.Record != nil {
			for i, fd := range fields {
				f.Properties[fd.Name] = propertyValue(sr.Record.Get(i))
			}
		}
		fc.Append(f)
	}
	return fc, nil
}

// propertyValue maps attribute values onto JSON-friendly types.
func propertyValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return v
}

// shp query

var shpQueryCmd = &cobra.Command{
	Use:   "query <file.shp>",
	Short: "Query shapes intersecting a bounding box",
	Long: `Build an in-memory spatial index over the shapefile and print
the indices of all shapes whose bounding box intersects the query box.`,
	Args: cobra.ExactArgs(1),
	RunE: runShpQuery,
}

func init() {
	shpQueryCmd.Flags().String("bbox", "", "Query box as minx,miny,maxx,maxy (required)")
	shpQueryCmd.MarkFlagRequired("bbox")
}

func runShpQuery(cmd *cobra.Command, args []string) error {
	bboxStr, _ := cmd.Flags().GetString("bbox")
	bbox, err := parseBBox(bboxStr)
	if err != nil {
		return err
	}

	r, err := openShapefile(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	idx, err := shapefile.BuildIndex(r)
	if err != nil {
		return err
	}
	log.Debugf("indexed %d shapes", idx.Count())

	hits := idx.Query(bbox)
	for _, i := range hits {
		fmt.Println(i)
	}
	log.Infof("%d of %d shapes intersect", len(hits), idx.Count())
	return nil
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox wants 4 comma-separated numbers, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox: %w", err)
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
