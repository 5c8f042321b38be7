/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// IDField is the layer name used by Rasterize when no attribute field is
// given; cells then hold the 1-based position of the feature in its set.
const IDField = "id"

// indexedPolygon is a polygonal feature stored in the rasterization index.
type indexedPolygon struct {
	geom.Polygonal
	i int
}

// burn tracks the feature currently assigned to each cell.
type burn struct {
	dist []float64
	idx  []int
}

// set assigns feature i at distance d to cell c if it is closer than the
// current assignment, or equally close and later in the feature set.
func (b *burn) set(c, i int, d float64) {
	if d < b.dist[c] || (d == b.dist[c] && i > b.idx[c]) {
		b.dist[c] = d
		b.idx[c] = i
	}
}

// Rasterize creates a grid with geometry ref where each cell holds the
// value of the named attribute of the feature that covers it. Features are
// transformed to the coordinate reference system of ref first.
//
// A polygon covers a cell if the cell center is inside the polygon or on its
// edge; where polygons overlap, the last one in the set wins. A line covers
// the cells whose interior it passes through and a point covers the cell it
// falls in; where several features cover a cell, the one nearest the cell
// center wins, with ties going to the later feature. Polygons covering the cell center have
// distance zero. Uncovered cells hold NoData.
//
// If field is empty, cells hold the 1-based index of the feature and the
// layer is named IDField.
func Rasterize(fs *FeatureSet, ref Geometry, field string) (*Grid, error) {
	const op = "rasterize"
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	fs, err := fs.Transform(ref.CRS)
	if err != nil {
		return nil, err
	}
	layer := field
	if layer == "" {
		layer = IDField
	}
	values := make([]float64, len(fs.Features))
	for i, f := range fs.Features {
		if field == "" {
			values[i] = float64(i + 1)
			continue
		}
		v, err := f.Value(field)
		if err != nil {
			return nil, malformed(op, "feature %d: %v", i, err)
		}
		values[i] = v
	}

	b := &burn{dist: make([]float64, ref.Nx*ref.Ny), idx: make([]int, ref.Nx*ref.Ny)}
	for c := range b.dist {
		b.dist[c] = math.Inf(1)
		b.idx[c] = -1
	}
	index := rtree.NewTree(25, 50)
	var nPolygons int
	for i, f := range fs.Features {
		if err := b.add(ref, index, &nPolygons, i, f.Geom); err != nil {
			return nil, fmt.Errorf("raster: %s: feature %d: %w", op, i, err)
		}
	}
	if nPolygons > 0 {
		parallelRows(ref.Ny, func(row int) {
			for col := 0; col < ref.Nx; col++ {
				c := ref.CellCenter(row, col)
				for _, item := range index.SearchIntersect(c.Bounds()) {
					p := item.(*indexedPolygon)
					if c.Within(p.Polygonal) != geom.Outside {
						b.set(row*ref.Nx+col, p.i, 0)
					}
				}
			}
		})
	}

	o, err := New(ref, layer)
	if err != nil {
		return nil, err
	}
	for c, i := range b.idx {
		if i >= 0 {
			o.Layers[0].Data.Elements[c] = values[i]
		}
	}
	return o, nil
}

// add burns points and lines of feature i into b and inserts polygons into
// the index for a later pass.
func (b *burn) add(ref Geometry, index *rtree.Rtree, nPolygons *int, i int, g geom.Geom) error {
	switch t := g.(type) {
	case geom.Point:
		b.addPoint(ref, i, t)
	case geom.MultiPoint:
		for _, p := range t {
			b.addPoint(ref, i, p)
		}
	case geom.LineString:
		b.addLine(ref, i, t)
	case geom.MultiLineString:
		for _, l := range t {
			b.addLine(ref, i, l)
		}
	case geom.Polygonal:
		index.Insert(&indexedPolygon{Polygonal: t, i: i})
		*nPolygons++
	case geom.GeometryCollection:
		for _, gg := range t {
			if err := b.add(ref, index, nPolygons, i, gg); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported geometry type %T", g)
	}
	return nil
}

func (b *burn) addPoint(ref Geometry, i int, p geom.Point) {
	row, col, ok := ref.CellIndex(p.X, p.Y)
	if !ok {
		return
	}
	c := ref.CellCenter(row, col)
	b.set(row*ref.Nx+col, i, math.Hypot(p.X-c.X, p.Y-c.Y))
}

func (b *burn) addLine(ref Geometry, i int, l geom.LineString) {
	if len(l) == 1 {
		b.addPoint(ref, i, l[0])
		return
	}
	top := ref.top()
	for k := 1; k < len(l); k++ {
		seg := geom.LineString{l[k-1], l[k]}
		if seg[0] == seg[1] {
			b.addPoint(ref, i, seg[0])
			continue
		}
		sb := seg.Bounds()
		c0 := clampIndex(math.Floor((sb.Min.X-ref.X0)/ref.Dx), ref.Nx)
		c1 := clampIndex(math.Floor((sb.Max.X-ref.X0)/ref.Dx), ref.Nx)
		r0 := clampIndex(math.Floor((top-sb.Max.Y)/ref.Dy), ref.Ny)
		r1 := clampIndex(math.Floor((top-sb.Min.Y)/ref.Dy), ref.Ny)
		for row := r0; row <= r1; row++ {
			for col := c0; col <= c1; col++ {
				if !ref.CellBounds(row, col).Overlaps(sb) {
					continue
				}
				if seg.Clip(ref.CellPolygon(row, col)).Length() == 0 {
					continue
				}
				b.set(row*ref.Nx+col, i, l.Distance(ref.CellCenter(row, col)))
			}
		}
	}
}

func clampIndex(f float64, n int) int {
	if f < 0 {
		return 0
	}
	if f > float64(n-1) {
		return n - 1
	}
	return int(f)
}
