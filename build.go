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
	"sort"

	"github.com/ctessum/geom"
)

// XYZ is a cell center location and the value held by the cell.
type XYZ struct {
	X, Y, Z float64
}

// spacingTolerance is the fraction of the resolution by which a coordinate
// may deviate from the regular lattice.
const spacingTolerance = 1.e-6

// stepTolerance is the additional deviation allowed per lattice step for
// accumulated floating point error.
const stepTolerance = 1.e-12

// FromXYZ creates a grid from a table of cell center coordinates and values.
// The resolution is the smallest spacing between distinct coordinates and
// the extent is the bounding box of the points expanded by half a cell.
// Cells without a matching point hold NoData. A MalformedInputError is
// returned if the points do not lie on a single regular lattice or if the
// same location is given two different values.
func FromXYZ(points []XYZ, crs, layer string) (*Grid, error) {
	const op = "grid from table"
	if len(points) == 0 {
		return nil, malformed(op, "no points")
	}
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return nil, malformed(op, "point %d has non-finite coordinates (%g, %g)", i, p.X, p.Y)
		}
		xs[i], ys[i] = p.X, p.Y
	}
	xs, dx := lattice(xs)
	ys, dy := lattice(ys)
	switch {
	case math.IsInf(dx, 1) && math.IsInf(dy, 1):
		return nil, malformed(op, "cannot infer a resolution from a single location")
	case math.IsInf(dx, 1):
		dx = dy
	case math.IsInf(dy, 1):
		dy = dx
	}
	if err := checkLattice(op, "x", xs, dx); err != nil {
		return nil, err
	}
	if err := checkLattice(op, "y", ys, dy); err != nil {
		return nil, err
	}
	xmin, xmax := xs[0], xs[len(xs)-1]
	ymin, ymax := ys[0], ys[len(ys)-1]
	geo := Geometry{
		CRS: crs,
		X0:  xmin - dx/2,
		Y0:  ymin - dy/2,
		Dx:  dx,
		Dy:  dy,
		Nx:  int(math.Round((xmax-xmin)/dx)) + 1,
		Ny:  int(math.Round((ymax-ymin)/dy)) + 1,
	}
	g, err := New(geo, layer)
	if err != nil {
		return nil, err
	}
	l := g.Layers[0]
	set := make([]bool, geo.Nx*geo.Ny)
	for _, p := range points {
		col := int(math.Round((p.X - xmin) / dx))
		row := int(math.Round((ymax - p.Y) / dy))
		i := row*geo.Nx + col
		if set[i] {
			if v := l.Get(row, col); v != p.Z && !(IsNoData(v) && IsNoData(p.Z)) {
				return nil, malformed(op, "location (%g, %g) has conflicting values %g and %g", p.X, p.Y, v, p.Z)
			}
			continue
		}
		set[i] = true
		l.Set(p.Z, row, col)
	}
	return g, nil
}

// lattice sorts v, removes duplicates, and returns the distinct values and
// the smallest spacing between them. The spacing is +Inf when there is only
// one distinct value.
func lattice(v []float64) ([]float64, float64) {
	sort.Float64s(v)
	eps := 1.e-9 * math.Max(math.Abs(v[0]), math.Abs(v[len(v)-1]))
	d := []float64{v[0]}
	res := math.Inf(1)
	for _, x := range v[1:] {
		gap := x - d[len(d)-1]
		if gap <= eps {
			continue
		}
		d = append(d, x)
		res = math.Min(res, gap)
	}
	return d, res
}

// checkLattice checks that every value in v is an integer number of steps
// of size res away from the first value.
func checkLattice(op, axis string, v []float64, res float64) error {
	for _, x := range v {
		k := (x - v[0]) / res
		if math.Abs(k-math.Round(k)) > spacingTolerance+stepTolerance*math.Abs(k) {
			return malformed(op, "%s coordinate %g is not a multiple of resolution %g from %g", axis, x, res, v[0])
		}
	}
	return nil
}

// NewFromExtent creates a grid covering bounds with cells of size dx by dy
// where every cell holds NoData. The grid starts at the lower left corner of
// bounds and is extended to the north and east if the extent is not a
// multiple of the resolution.
func NewFromExtent(bounds *geom.Bounds, dx, dy float64, crs string, layers ...string) (*Grid, error) {
	const op = "grid from extent"
	if bounds == nil || bounds.Empty() {
		return nil, malformed(op, "empty extent")
	}
	if !(dx > 0) || !(dy > 0) {
		return nil, malformed(op, "resolution must be positive; have dx=%g, dy=%g", dx, dy)
	}
	cells := func(length, res float64) int {
		n := int(math.Ceil(length/res - spacingTolerance))
		if n < 1 {
			n = 1
		}
		return n
	}
	return New(Geometry{
		CRS: crs,
		X0:  bounds.Min.X,
		Y0:  bounds.Min.Y,
		Dx:  dx,
		Dy:  dy,
		Nx:  cells(bounds.Max.X-bounds.Min.X, dx),
		Ny:  cells(bounds.Max.Y-bounds.Min.Y, dy),
	}, layers...)
}

// XYZ returns the center coordinates and value of every cell of the named
// layer, starting with the northwest cell and proceeding in row-major
// order. Cells holding NoData are only included if includeNoData is true.
func (g *Grid) XYZ(layer string, includeNoData bool) ([]XYZ, error) {
	l, err := g.Layer(layer)
	if err != nil {
		return nil, err
	}
	o := make([]XYZ, 0, g.Nx*g.Ny)
	for row := 0; row < g.Ny; row++ {
		for col := 0; col < g.Nx; col++ {
			v := l.Get(row, col)
			if IsNoData(v) && !includeNoData {
				continue
			}
			c := g.CellCenter(row, col)
			o = append(o, XYZ{X: c.X, Y: c.Y, Z: v})
		}
	}
	return o, nil
}
