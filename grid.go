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

// Package raster holds a gridded data model and the operations used to
// build species range and richness maps: building grids from tables and
// extents, substituting attribute values, reprojection, rasterization of
// vector features, masking and cropping, distance transforms, and the
// codecs used to persist grids.
package raster

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// NoData is the value held by cells that have no valid value.
var NoData = math.NaN()

// IsNoData reports whether v is the no data marker.
func IsNoData(v float64) bool { return math.IsNaN(v) }

// Geometry specifies the location, resolution, and coordinate reference
// system of a regular grid. Row 0 is the northernmost row.
type Geometry struct {
	// CRS is a PROJ.4 or WKT description of the coordinate reference system.
	CRS string

	// X0 and Y0 are the coordinates of the lower left corner of the grid.
	X0, Y0 float64

	// Dx and Dy are the cell width and height.
	Dx, Dy float64

	// Nx and Ny are the number of columns and rows.
	Nx, Ny int
}

// Validate checks that the geometry describes a non-empty grid with a
// parseable coordinate reference system.
func (g Geometry) Validate() error {
	const op = "geometry"
	if !(g.Dx > 0) || !(g.Dy > 0) || math.IsInf(g.Dx, 0) || math.IsInf(g.Dy, 0) {
		return malformed(op, "resolution must be positive; have dx=%g, dy=%g", g.Dx, g.Dy)
	}
	if g.Nx < 1 || g.Ny < 1 {
		return malformed(op, "grid must have at least one row and column; have nx=%d, ny=%d", g.Nx, g.Ny)
	}
	if math.IsNaN(g.X0) || math.IsNaN(g.Y0) || math.IsInf(g.X0, 0) || math.IsInf(g.Y0, 0) {
		return malformed(op, "origin must be finite; have (%g, %g)", g.X0, g.Y0)
	}
	_, err := parseCRS(op, g.CRS)
	return err
}

// top returns the y coordinate of the northern edge of the grid.
func (g Geometry) top() float64 { return g.Y0 + float64(g.Ny)*g.Dy }

// Bounds returns the extent of the grid.
func (g Geometry) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0},
		Max: geom.Point{X: g.X0 + float64(g.Nx)*g.Dx, Y: g.top()},
	}
}

// CellCenter returns the coordinates of the center of the given cell.
func (g Geometry) CellCenter(row, col int) geom.Point {
	return geom.Point{
		X: g.X0 + (float64(col)+0.5)*g.Dx,
		Y: g.top() - (float64(row)+0.5)*g.Dy,
	}
}

// CellBounds returns the extent of the given cell.
func (g Geometry) CellBounds(row, col int) *geom.Bounds {
	x := g.X0 + float64(col)*g.Dx
	y := g.top() - float64(row+1)*g.Dy
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + g.Dx, Y: y + g.Dy},
	}
}

// CellPolygon returns the outline of the given cell.
func (g Geometry) CellPolygon(row, col int) geom.Polygon {
	b := g.CellBounds(row, col)
	return geom.Polygon{{
		b.Min,
		{X: b.Max.X, Y: b.Min.Y},
		b.Max,
		{X: b.Min.X, Y: b.Max.Y},
		b.Min,
	}}
}

// CellIndex returns the row and column of the cell containing point (x, y).
// Cells include their western and southern edges. ok is false if the point
// is outside of the grid.
func (g Geometry) CellIndex(x, y float64) (row, col int, ok bool) {
	fc := (x - g.X0) / g.Dx
	fr := (g.top() - y) / g.Dy
	if math.IsNaN(fc) || math.IsNaN(fr) || fc < 0 || fr <= 0 {
		return 0, 0, false
	}
	col = int(fc)
	row = int(math.Ceil(fr)) - 1
	if col >= g.Nx || row >= g.Ny {
		return 0, 0, false
	}
	return row, col, true
}

// tolerance returns the distance below which two coordinates of this grid
// are considered equal.
func (g Geometry) tolerance() float64 {
	return 1.e-6 * math.Min(g.Dx, g.Dy)
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

// Equal reports whether g and o describe the same grid.
func (g Geometry) Equal(o Geometry) bool {
	tol := g.tolerance()
	return g.Nx == o.Nx && g.Ny == o.Ny &&
		near(g.Dx, o.Dx, tol) && near(g.Dy, o.Dy, tol) &&
		near(g.X0, o.X0, tol) && near(g.Y0, o.Y0, tol) &&
		sameCRS(g.CRS, o.CRS)
}

// checkSame returns a GeometryMismatchError if g and o are not the same grid.
func (g Geometry) checkSame(op string, o Geometry) error {
	if !sameCRS(g.CRS, o.CRS) {
		return mismatch(op, "coordinate reference systems differ (%q vs. %q)", g.CRS, o.CRS)
	}
	if !g.Equal(o) {
		return mismatch(op, "grid %s does not match grid %s", g, o)
	}
	return nil
}

// offset returns the row and column of the cell of g that corresponds to
// cell (0, 0) of o. It returns a GeometryMismatchError if the two grids do
// not share a coordinate reference system, resolution, and cell alignment.
func (g Geometry) offset(op string, o Geometry) (dRow, dCol int, err error) {
	if !sameCRS(g.CRS, o.CRS) {
		return 0, 0, mismatch(op, "coordinate reference systems differ (%q vs. %q)", g.CRS, o.CRS)
	}
	tol := g.tolerance()
	if !near(g.Dx, o.Dx, tol) || !near(g.Dy, o.Dy, tol) {
		return 0, 0, mismatch(op, "resolutions differ (%g×%g vs. %g×%g)", g.Dx, g.Dy, o.Dx, o.Dy)
	}
	fc := (o.X0 - g.X0) / g.Dx
	fr := (g.top() - o.top()) / g.Dy
	if !near(fc, math.Round(fc), 1.e-6) || !near(fr, math.Round(fr), 1.e-6) {
		return 0, 0, mismatch(op, "cell edges are not aligned (origin (%g, %g) vs. (%g, %g))",
			g.X0, g.Y0, o.X0, o.Y0)
	}
	return int(math.Round(fr)), int(math.Round(fc)), nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("{origin=(%g, %g) res=%g×%g size=%d×%d}", g.X0, g.Y0, g.Dx, g.Dy, g.Nx, g.Ny)
}

// Layer is a named attribute of every cell in a grid.
type Layer struct {
	Name        string
	Description string
	Units       string

	// Data holds the cell values with shape (Ny, Nx).
	Data *sparse.DenseArray
}

// Get returns the value of the given cell.
func (l *Layer) Get(row, col int) float64 { return l.Data.Get(row, col) }

// Set sets the value of the given cell. Unlike sparse.DenseArray.Set, zeros
// are written too, since cells start out as NoData.
func (l *Layer) Set(v float64, row, col int) { l.Data.Elements[l.Data.Index1d(row, col)] = v }

func (l *Layer) copy() *Layer {
	return &Layer{
		Name:        l.Name,
		Description: l.Description,
		Units:       l.Units,
		Data:        l.Data.Copy(),
	}
}

// newData returns an array of the given shape filled with NoData.
func newData(ny, nx int) *sparse.DenseArray {
	d := sparse.ZerosDense(ny, nx)
	for i := range d.Elements {
		d.Elements[i] = NoData
	}
	return d
}

// Grid is a regular grid holding one or more named layers.
// Operations in this package do not modify their input grids.
type Grid struct {
	Geometry
	Layers []*Layer
}

// New creates a grid with the given geometry and layers where every cell
// holds NoData. It fails if the geometry is invalid, including when its
// coordinate reference system is missing or cannot be parsed.
func New(geo Geometry, layers ...string) (*Grid, error) {
	if err := geo.Validate(); err != nil {
		return nil, err
	}
	g := &Grid{Geometry: geo}
	for _, name := range layers {
		if _, err := g.AddLayer(name); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddLayer adds a layer filled with NoData to the grid and returns it.
func (g *Grid) AddLayer(name string) (*Layer, error) {
	if name == "" {
		return nil, fmt.Errorf("raster: layer name must not be empty")
	}
	for _, l := range g.Layers {
		if l.Name == name {
			return nil, fmt.Errorf("raster: grid already has a layer named %q", name)
		}
	}
	l := &Layer{Name: name, Data: newData(g.Ny, g.Nx)}
	g.Layers = append(g.Layers, l)
	return l, nil
}

// Layer returns the layer with the given name. If name is empty and the grid
// has exactly one layer, that layer is returned.
func (g *Grid) Layer(name string) (*Layer, error) {
	if name == "" {
		if len(g.Layers) == 1 {
			return g.Layers[0], nil
		}
		return nil, fmt.Errorf("raster: grid has %d layers; a layer name must be specified", len(g.Layers))
	}
	for _, l := range g.Layers {
		if l.Name == name {
			return l, nil
		}
	}
	return nil, fmt.Errorf("raster: grid has no layer named %q (layers: %v)", name, g.LayerNames())
}

// LayerNames returns the names of the layers in the grid.
func (g *Grid) LayerNames() []string {
	o := make([]string, len(g.Layers))
	for i, l := range g.Layers {
		o[i] = l.Name
	}
	return o
}

// Copy returns a deep copy of g.
func (g *Grid) Copy() *Grid {
	o := &Grid{Geometry: g.Geometry, Layers: make([]*Layer, len(g.Layers))}
	for i, l := range g.Layers {
		o.Layers[i] = l.copy()
	}
	return o
}

// Select returns a copy of g holding only the named layers.
func (g *Grid) Select(names ...string) (*Grid, error) {
	o := &Grid{Geometry: g.Geometry}
	for _, n := range names {
		l, err := g.Layer(n)
		if err != nil {
			return nil, err
		}
		o.Layers = append(o.Layers, l.copy())
	}
	return o, nil
}

// Rename returns a copy of g where layer from is called to.
func (g *Grid) Rename(from, to string) (*Grid, error) {
	l, err := g.Layer(from)
	if err != nil {
		return nil, err
	}
	for _, ll := range g.Layers {
		if ll != l && ll.Name == to {
			return nil, fmt.Errorf("raster: grid already has a layer named %q", to)
		}
	}
	o := g.Copy()
	for i, ll := range g.Layers {
		if ll == l {
			o.Layers[i].Name = to
		}
	}
	return o, nil
}

// WithCRS returns a copy of g labelled with a different coordinate reference
// system. Cell values and coordinates are not changed; use Reproject to
// resample a grid into another coordinate reference system.
func (g *Grid) WithCRS(crs string) (*Grid, error) {
	if _, err := parseCRS("assign coordinate reference system", crs); err != nil {
		return nil, err
	}
	o := g.Copy()
	o.CRS = crs
	return o, nil
}

// emptyLike returns a grid with geometry geo and the same layer names and
// metadata as g, filled with NoData.
func (g *Grid) emptyLike(geo Geometry) *Grid {
	o := &Grid{Geometry: geo, Layers: make([]*Layer, len(g.Layers))}
	for i, l := range g.Layers {
		o.Layers[i] = &Layer{
			Name:        l.Name,
			Description: l.Description,
			Units:       l.Units,
			Data:        newData(geo.Ny, geo.Nx),
		}
	}
	return o
}
