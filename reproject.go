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
	"strings"
)

// Resampling specifies how values are computed when a grid is transformed
// onto a different geometry.
type Resampling int

const (
	// Nearest copies the value of the source cell containing the target cell
	// center. It never creates values that are not in the source grid and
	// must be used for categorical data such as identifiers.
	Nearest Resampling = iota

	// Bilinear computes the distance-weighted average of the four source
	// cell centers surrounding the target cell center.
	Bilinear
)

func (r Resampling) String() string {
	switch r {
	case Nearest:
		return "nearest"
	case Bilinear:
		return "bilinear"
	default:
		return fmt.Sprintf("Resampling(%d)", int(r))
	}
}

// ParseResampling returns the resampling method with the given name.
func ParseResampling(s string) (Resampling, error) {
	switch strings.ToLower(s) {
	case "nearest", "ngb", "near", "":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return 0, malformed("parse resampling", "invalid method %q; valid options are 'nearest' and 'bilinear'", s)
	}
}

// NoDataPolicy specifies how bilinear resampling treats a source cell that
// holds NoData when some of the other contributing cells hold values.
type NoDataPolicy int

const (
	// ExcludeAndRenormalize drops contributing cells that hold NoData and
	// rescales the weights of the rest so that they sum to one.
	ExcludeAndRenormalize NoDataPolicy = iota

	// PropagateNoData sets the result to NoData if any contributing cell
	// holds NoData.
	PropagateNoData
)

func (p NoDataPolicy) String() string {
	switch p {
	case ExcludeAndRenormalize:
		return "exclude"
	case PropagateNoData:
		return "propagate"
	default:
		return fmt.Sprintf("NoDataPolicy(%d)", int(p))
	}
}

// ParseNoDataPolicy returns the policy with the given name.
func ParseNoDataPolicy(s string) (NoDataPolicy, error) {
	switch strings.ToLower(s) {
	case "exclude", "":
		return ExcludeAndRenormalize, nil
	case "propagate":
		return PropagateNoData, nil
	default:
		return 0, malformed("parse no data policy", "invalid policy %q; valid options are 'exclude' and 'propagate'", s)
	}
}

// ReprojectOptions hold the settings for Reproject.
type ReprojectOptions struct {
	Method Resampling
	NoData NoDataPolicy
}

// Reproject resamples every layer of src onto the target geometry. The
// center of each target cell is transformed into the coordinate reference
// system of src and the value is computed according to opts. Target cells
// whose center falls outside of src hold NoData. Near the edges of src,
// bilinear resampling uses the nearest edge cell for neighbors that are
// outside of the grid.
func Reproject(src *Grid, target Geometry, opts ReprojectOptions) (*Grid, error) {
	const op = "reproject"
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if opts.Method != Nearest && opts.Method != Bilinear {
		return nil, malformed(op, "invalid resampling method %v", opts.Method)
	}
	t, err := transformer(op, target.CRS, src.CRS)
	if err != nil {
		return nil, err
	}
	o := src.emptyLike(target)
	top := src.top()
	parallelRows(target.Ny, func(row int) {
		for col := 0; col < target.Nx; col++ {
			c := target.CellCenter(row, col)
			x, y, err := t(c.X, c.Y)
			if err != nil {
				continue // Not representable in the source system.
			}
			fc := (x - src.X0) / src.Dx
			fr := (top - y) / src.Dy
			if !(fc >= 0 && fr >= 0 && fc < float64(src.Nx) && fr < float64(src.Ny)) {
				continue
			}
			if opts.Method == Nearest {
				sr, sc := int(fr), int(fc)
				for i, l := range src.Layers {
					o.Layers[i].Set(l.Get(sr, sc), row, col)
				}
				continue
			}
			w := bilinearWeights(fc-0.5, fr-0.5, src.Nx, src.Ny)
			for i, l := range src.Layers {
				o.Layers[i].Set(w.apply(l, opts.NoData), row, col)
			}
		}
	})
	return o, nil
}

// bilinear holds the four source cells surrounding a point and their weights.
type bilinear struct {
	rows, cols [4]int
	w          [4]float64
}

// bilinearWeights calculates the weights of the cell centers surrounding
// the fractional cell position (u, v), where (0, 0) is the center of the
// northwest cell. Neighbors outside of the grid are replaced by the nearest
// edge cell.
func bilinearWeights(u, v float64, nx, ny int) bilinear {
	c0, r0 := math.Floor(u), math.Floor(v)
	wx, wy := u-c0, v-r0
	clamp := func(i, n int) int {
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
	ci, ri := int(c0), int(r0)
	return bilinear{
		rows: [4]int{clamp(ri, ny), clamp(ri, ny), clamp(ri+1, ny), clamp(ri+1, ny)},
		cols: [4]int{clamp(ci, nx), clamp(ci+1, nx), clamp(ci, nx), clamp(ci+1, nx)},
		w:    [4]float64{(1 - wx) * (1 - wy), wx * (1 - wy), (1 - wx) * wy, wx * wy},
	}
}

func (b bilinear) apply(l *Layer, policy NoDataPolicy) float64 {
	var sum, wsum float64
	for k, w := range b.w {
		if w == 0 {
			continue
		}
		v := l.Get(b.rows[k], b.cols[k])
		if IsNoData(v) {
			if policy == PropagateNoData {
				return NoData
			}
			continue
		}
		sum += w * v
		wsum += w
	}
	if wsum == 0 {
		return NoData
	}
	return sum / wsum
}

// ProjectGeometry returns a geometry in coordinate reference system crs
// that covers the extent of src. If dx or dy is not positive, a square
// resolution is chosen so that the new grid has about as many cells as src.
func ProjectGeometry(src Geometry, crs string, dx, dy float64) (Geometry, error) {
	const op = "project geometry"
	if err := src.Validate(); err != nil {
		return Geometry{}, err
	}
	t, err := transformer(op, src.CRS, crs)
	if err != nil {
		return Geometry{}, err
	}
	// Sample the cell corners, thinned to at most 101 per side.
	stepX := max(1, src.Nx/100)
	stepY := max(1, src.Ny/100)
	var minX, minY, maxX, maxY = math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)
	sample := func(i, j int) {
		x, y, err := t(src.X0+float64(i)*src.Dx, src.Y0+float64(j)*src.Dy)
		if err != nil || math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
			return
		}
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for j := 0; j <= src.Ny; j++ {
		if j%stepY != 0 && j != src.Ny {
			continue
		}
		for i := 0; i <= src.Nx; i++ {
			if i%stepX == 0 || i == src.Nx || j == 0 || j == src.Ny {
				sample(i, j)
			}
		}
	}
	if !(maxX > minX) || !(maxY > minY) {
		return Geometry{}, fmt.Errorf("raster: %s: grid %s cannot be transformed to %q", op, src, crs)
	}
	if !(dx > 0) || !(dy > 0) {
		dx = math.Sqrt((maxX - minX) * (maxY - minY) / float64(src.Nx*src.Ny))
		dy = dx
	}
	return Geometry{
		CRS: crs,
		X0:  minX,
		Y0:  minY,
		Dx:  dx,
		Dy:  dy,
		Nx:  max(1, int(math.Ceil((maxX-minX)/dx-spacingTolerance))),
		Ny:  max(1, int(math.Ceil((maxY-minY)/dy-spacingTolerance))),
	}, nil
}
