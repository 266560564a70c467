// Copyright 2026 The geobin Authors
// SPDX-License-Identifier: MIT

package shapefile

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// Index is an R-tree over the bounding boxes of a file's shapes. It
// answers viewport queries with candidate record indices so only the
// intersecting shapes need to be decoded.
type Index struct {
	rtree *rtreego.Rtree
	count int
}

type indexEntry struct {
	i    int
	bbox orb.Bound
}

// Bounds implements rtreego.Spatial. Degenerate boxes (points,
// horizontal or vertical lines) are inflated by a tiny epsilon because
// the R-tree rejects zero-length extents.
func (e indexEntry) Bounds() rtreego.Rect {
	rect, _ := rtreego.NewRect(
		rtreego.Point{e.bbox.Min[0], e.bbox.Min[1]},
		rectLengths(e.bbox),
	)
	return rect
}

func rectLengths(b orb.Bound) []float64 {
	const eps = 1e-9
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w <= 0 {
		w = eps
	}
	if h <= 0 {
		h = eps
	}
	return []float64{w, h}
}

// BuildIndex scans every shape once and indexes its bounding box.
// Null and empty shapes are skipped.
func BuildIndex(r *Reader) (*Index, error) {
	rtree := rtreego.NewTree(2, 25, 50)
	count := 0
	i := 0
	it := r.IterShapes()
	for it.Next() {
		s := it.Shape()
		if len(s.Points) > 0 {
			rtree.Insert(indexEntry{i: i, bbox: s.Bound()})
			count++
		}
		i++
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return &Index{rtree: rtree, count: count}, nil
}

// Count returns the number of indexed shapes.
func (idx *Index) Count() int { return idx.count }

// Query returns the indices of shapes whose bounding boxes intersect
// b, in ascending record order.
func (idx *Index) Query(b orb.Bound) []int {
	rect, _ := rtreego.NewRect(
		rtreego.Point{b.Min[0], b.Min[1]},
		rectLengths(b),
	)
	spatials := idx.rtree.SearchIntersect(rect)
	out := make([]int, 0, len(spatials))
	for _, s := range spatials {
		out = append(out, s.(indexEntry).i)
	}
	sort.Ints(out)
	return out
}
