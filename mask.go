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
	"math"

	"github.com/ctessum/geom"
)

// Mask returns a copy of g where every cell for which the named layer of
// mask holds NoData is set to NoData in all layers. If maskLayer is empty,
// the first layer of mask is used. mask must have the same geometry as g.
func Mask(g, mask *Grid, maskLayer string) (*Grid, error) {
	const op = "mask"
	if err := g.checkSame(op, mask.Geometry); err != nil {
		return nil, err
	}
	var m *Layer
	if maskLayer == "" && len(mask.Layers) > 0 {
		m = mask.Layers[0]
	} else {
		var err error
		if m, err = mask.Layer(maskLayer); err != nil {
			return nil, err
		}
	}
	o := g.Copy()
	for i, v := range m.Data.Elements {
		if IsNoData(v) {
			for _, l := range o.Layers {
				l.Data.Elements[i] = NoData
			}
		}
	}
	return o, nil
}

// MaskFeatures returns a copy of g where every cell whose center is not
// inside or on the edge of any polygon in fs is set to NoData in all
// layers. Features that are not polygons are ignored.
func MaskFeatures(g *Grid, fs *FeatureSet) (*Grid, error) {
	fs, err := fs.Transform(g.CRS)
	if err != nil {
		return nil, err
	}
	polys := fs.Polygons()
	if len(polys) == 0 {
		return nil, malformed("mask by features", "no polygons")
	}
	o := g.Copy()
	parallelRows(g.Ny, func(row int) {
		for col := 0; col < g.Nx; col++ {
			c := g.CellCenter(row, col)
			inside := false
			for _, p := range polys {
				b := p.Bounds()
				if c.X < b.Min.X || c.X > b.Max.X || c.Y < b.Min.Y || c.Y > b.Max.Y {
					continue
				}
				if c.Within(p) != geom.Outside {
					inside = true
					break
				}
			}
			if !inside {
				for _, l := range o.Layers {
					l.Set(NoData, row, col)
				}
			}
		}
	})
	return o, nil
}

// window returns a grid with geometry geo holding the values of g in the
// cells the two grids share; the other cells hold NoData. geo must be
// aligned with g.
func (g *Grid) window(op string, geo Geometry) (*Grid, error) {
	dRow, dCol, err := g.offset(op, geo)
	if err != nil {
		return nil, err
	}
	o := g.emptyLike(geo)
	for row := 0; row < geo.Ny; row++ {
		sr := row + dRow
		if sr < 0 || sr >= g.Ny {
			continue
		}
		for col := 0; col < geo.Nx; col++ {
			sc := col + dCol
			if sc < 0 || sc >= g.Nx {
				continue
			}
			for i, l := range g.Layers {
				o.Layers[i].Set(l.Get(sr, sc), row, col)
			}
		}
	}
	return o, nil
}

// Crop returns the part of g that overlaps the grid described by to. The
// two grids must share a coordinate reference system and resolution, and
// their cell edges must be aligned; otherwise a GeometryMismatchError is
// returned.
func Crop(g *Grid, to Geometry) (*Grid, error) {
	const op = "crop"
	dRow, dCol, err := g.offset(op, to)
	if err != nil {
		return nil, err
	}
	r0, c0 := max(0, dRow), max(0, dCol)
	r1, c1 := min(g.Ny, dRow+to.Ny), min(g.Nx, dCol+to.Nx)
	if r1 <= r0 || c1 <= c0 {
		return nil, mismatch(op, "grid %s does not overlap grid %s", g.Geometry, to)
	}
	return g.window(op, g.sub(r0, c0, r1, c1))
}

// CropBounds returns the part of g that overlaps bounds, expanded outwards
// to whole cells.
func CropBounds(g *Grid, bounds *geom.Bounds) (*Grid, error) {
	const op = "crop"
	top := g.top()
	c0 := max(0, int(math.Floor((bounds.Min.X-g.X0)/g.Dx+spacingTolerance)))
	c1 := min(g.Nx, int(math.Ceil((bounds.Max.X-g.X0)/g.Dx-spacingTolerance)))
	r0 := max(0, int(math.Floor((top-bounds.Max.Y)/g.Dy+spacingTolerance)))
	r1 := min(g.Ny, int(math.Ceil((top-bounds.Min.Y)/g.Dy-spacingTolerance)))
	if r1 <= r0 || c1 <= c0 {
		return nil, mismatch(op, "grid %s does not overlap extent %v", g.Geometry, *bounds)
	}
	return g.window(op, g.sub(r0, c0, r1, c1))
}

// sub returns the geometry of rows [r0, r1) and columns [c0, c1) of g.
func (g Geometry) sub(r0, c0, r1, c1 int) Geometry {
	return Geometry{
		CRS: g.CRS,
		X0:  g.X0 + float64(c0)*g.Dx,
		Y0:  g.top() - float64(r1)*g.Dy,
		Dx:  g.Dx,
		Dy:  g.Dy,
		Nx:  c1 - c0,
		Ny:  r1 - r0,
	}
}

// Trim returns the smallest part of g that contains every cell holding a
// value in any layer.
func Trim(g *Grid) (*Grid, error) {
	r0, c0, r1, c1 := g.Ny, g.Nx, -1, -1
	for row := 0; row < g.Ny; row++ {
		for col := 0; col < g.Nx; col++ {
			for _, l := range g.Layers {
				if !IsNoData(l.Get(row, col)) {
					r0, r1 = min(r0, row), max(r1, row)
					c0, c1 = min(c0, col), max(c1, col)
					break
				}
			}
		}
	}
	if r1 < 0 {
		return nil, malformed("trim", "grid has no cells with values")
	}
	return g.window("trim", g.sub(r0, c0, r1+1, c1+1))
}

// Extend returns g expanded to cover the union of its extent and the
// extent of to, with new cells holding NoData. The grids must be aligned as
// for Crop.
func Extend(g *Grid, to Geometry) (*Grid, error) {
	const op = "extend"
	dRow, dCol, err := g.offset(op, to)
	if err != nil {
		return nil, err
	}
	r0, c0 := min(0, dRow), min(0, dCol)
	r1, c1 := max(g.Ny, dRow+to.Ny), max(g.Nx, dCol+to.Nx)
	return g.window(op, g.sub(r0, c0, r1, c1))
}
