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
	"container/heap"
	"math"

	"github.com/ctessum/unit"
	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/floats"
)

// EarthRadius is the mean radius of the earth in meters, used for
// great-circle distances on geographic grids.
const EarthRadius = 6371008.8

// DistanceLayer is the name of the layer created by Distance.
const DistanceLayer = "distance"

// DistanceOptions hold the settings for Distance.
type DistanceOptions struct {
	// Meters converts distances on projected grids from the units of the
	// coordinate reference system to meters. Distances on geographic grids
	// are always great-circle distances in meters.
	Meters bool
}

// neighbor offsets, clockwise from north.
var (
	dRow = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}
	dCol = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

// Distance returns a grid with the geometry of g where each cell holds the
// distance from its center to the center of the nearest cell of the named
// layer that holds a value. Cells holding a value have distance zero.
//
// On projected grids distances are exact Euclidean distances for any cell
// width and height, in the units of the coordinate reference system, or
// meters if opts.Meters is set. On geographic grids distances are
// great-circle distances in meters, found by propagating the nearest source
// outwards from every source cell through the eight neighbors of each cell;
// a cell may then be assigned a source that is slightly farther than the
// true nearest one.
func Distance(g *Grid, layer string, opts DistanceOptions) (*Grid, error) {
	const op = "distance"
	sr, err := parseCRS(op, g.CRS)
	if err != nil {
		return nil, err
	}
	l, err := g.Layer(layer)
	if err != nil {
		return nil, err
	}
	var sources int
	for _, v := range l.Data.Elements {
		if !IsNoData(v) {
			sources++
		}
	}
	if sources == 0 {
		return nil, malformed(op, "layer %q has no source cells", l.Name)
	}

	var d []float64
	units := sr.Units
	switch {
	case isGeographic(sr):
		d = g.propagate(l, g.greatCircle)
		units = unit.Meter.String()
	default:
		d = g.euclidean(l)
		if opts.Meters {
			toMeter := sr.ToMeter
			if math.IsNaN(toMeter) || toMeter == 0 {
				toMeter = 1
			}
			// length of one coordinate unit
			u := unit.New(toMeter, unit.Meter)
			floats.Scale(u.Value(), d)
			units = u.Dimensions().String()
		}
	}

	o, err := New(g.Geometry, DistanceLayer)
	if err != nil {
		return nil, err
	}
	o.Layers[0].Description = "Distance to nearest " + l.Name + " cell"
	o.Layers[0].Units = units
	copy(o.Layers[0].Data.Elements, d)
	return o, nil
}

// euclidean returns the exact distance from each cell center to the
// nearest source cell center of l in grid units. It computes squared
// distances one dimension at a time, first along columns and then along
// rows, as the lower envelope of parabolas rooted at each cell.
func (g *Grid) euclidean(l *Layer) []float64 {
	f := make([]float64, g.Nx*g.Ny)
	for i, v := range l.Data.Elements {
		if IsNoData(v) {
			f[i] = math.Inf(1)
		}
	}
	n := max(g.Nx, g.Ny)
	in, out := make([]float64, n), make([]float64, n)
	v, z := make([]int, n), make([]float64, n)

	dy2 := g.Dy * g.Dy
	for col := 0; col < g.Nx; col++ {
		for row := 0; row < g.Ny; row++ {
			in[row] = f[row*g.Nx+col]
		}
		envelope(in[:g.Ny], out[:g.Ny], dy2, v, z)
		for row := 0; row < g.Ny; row++ {
			f[row*g.Nx+col] = out[row]
		}
	}
	dx2 := g.Dx * g.Dx
	for row := 0; row < g.Ny; row++ {
		copy(in, f[row*g.Nx:(row+1)*g.Nx])
		envelope(in[:g.Nx], f[row*g.Nx:(row+1)*g.Nx], dx2, v, z)
	}
	for i, d2 := range f {
		f[i] = math.Sqrt(d2)
	}
	return f
}

// envelope sets d[p] to the minimum over q of w2*(p-q)² + f[q], skipping
// positions where f is +Inf. v and z are scratch space of at least len(f).
func envelope(f, d []float64, w2 float64, v []int, z []float64) {
	k := -1
	for q := range f {
		if math.IsInf(f[q], 1) {
			continue
		}
		s := math.Inf(-1)
		for k >= 0 {
			p := v[k]
			s = ((f[q]/w2 + float64(q*q)) - (f[p]/w2 + float64(p*p))) / float64(2*(q-p))
			if s > z[k] {
				break
			}
			k--
			s = math.Inf(-1)
		}
		k++
		v[k], z[k] = q, s
	}
	if k < 0 {
		for i := range d {
			d[i] = math.Inf(1)
		}
		return
	}
	j := 0
	for q := range d {
		for j < k && z[j+1] < float64(q) {
			j++
		}
		dq := float64(q - v[j])
		d[q] = w2*dq*dq + f[v[j]]
	}
}

// propagate returns the distance from each cell to the nearest source cell
// of l under dist, found by expanding from every source in order of
// increasing distance. Each cell inherits the source of whichever neighbor
// gives it the shortest distance.
func (g *Grid) propagate(l *Layer, dist func(r1, c1, r2, c2 int) float64) []float64 {
	n := g.Nx * g.Ny
	d := make([]float64, n)
	src := make([]int, n)
	q := make(cellQueue, 0, n)
	for i, v := range l.Data.Elements {
		if IsNoData(v) {
			d[i] = math.Inf(1)
			src[i] = -1
			continue
		}
		src[i] = i
		q = append(q, queuedCell{i: i})
	}
	heap.Init(&q)
	for q.Len() > 0 {
		c := heap.Pop(&q).(queuedCell)
		if c.d > d[c.i] {
			continue // stale
		}
		row, col := c.i/g.Nx, c.i%g.Nx
		s := src[c.i]
		sRow, sCol := s/g.Nx, s%g.Nx
		for k := range dRow {
			r, cc := row+dRow[k], col+dCol[k]
			if r < 0 || r >= g.Ny || cc < 0 || cc >= g.Nx {
				continue
			}
			ni := r*g.Nx + cc
			nd := dist(r, cc, sRow, sCol)
			if nd < d[ni] {
				d[ni] = nd
				src[ni] = s
				heap.Push(&q, queuedCell{i: ni, d: nd})
			}
		}
	}
	return d
}

// greatCircle returns the distance in meters between two cell centers of a
// longitude/latitude grid.
func (g *Grid) greatCircle(r1, c1, r2, c2 int) float64 {
	p1, p2 := g.CellCenter(r1, c1), g.CellCenter(r2, c2)
	a := s2.LatLngFromDegrees(p1.Y, p1.X)
	b := s2.LatLngFromDegrees(p2.Y, p2.X)
	return a.Distance(b).Radians() * EarthRadius
}

type queuedCell struct {
	i int
	d float64
}

// cellQueue is a min-heap of cells ordered by distance.
type cellQueue []queuedCell

func (q cellQueue) Len() int            { return len(q) }
func (q cellQueue) Less(i, j int) bool  { return q[i].d < q[j].d }
func (q cellQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *cellQueue) Push(x interface{}) { *q = append(*q, x.(queuedCell)) }
func (q *cellQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}
