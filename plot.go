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
	"image/color"
	"math"

	"github.com/ctessum/geom"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// layerXYZ adapts a layer to the plotter.GridXYZ interface. Plot rows
// increase northwards, so they are the reverse of grid rows.
type layerXYZ struct {
	g *Grid
	l *Layer
}

func (a layerXYZ) Dims() (c, r int)   { return a.g.Nx, a.g.Ny }
func (a layerXYZ) Z(c, r int) float64 { return a.l.Get(a.g.Ny-1-r, c) }
func (a layerXYZ) X(c int) float64    { return a.g.X0 + (float64(c)+0.5)*a.g.Dx }
func (a layerXYZ) Y(r int) float64    { return a.g.Y0 + (float64(r)+0.5)*a.g.Dy }

// PlotOptions hold the settings for Plot.
type PlotOptions struct {
	Title string

	// Boundary, if set, is drawn on top of the grid after being transformed
	// to the coordinate reference system of the grid.
	Boundary *FeatureSet

	// Colors is the number of colors in the palette. The default is 20.
	Colors int

	// Width and Height are the image size. The default is 6 by 5 inches.
	Width, Height vg.Length
}

// Plot draws the named layer as a heat map and saves it to filename. The
// image format is chosen from the file extension (.png, .svg, .pdf, ...).
// Cells holding NoData are transparent.
func (g *Grid) Plot(layer, filename string, opts PlotOptions) error {
	const op = "plot"
	l, err := g.Layer(layer)
	if err != nil {
		return err
	}
	s, err := g.Summary(l.Name)
	if err != nil {
		return err
	}
	if s.Valid == 0 {
		return malformed(op, "layer %s has no cells with values", l.Name)
	}
	if opts.Colors <= 0 {
		opts.Colors = 20
	}
	if opts.Width == 0 {
		opts.Width = 6 * vg.Inch
	}
	if opts.Height == 0 {
		opts.Height = 5 * vg.Inch
	}

	p, err := plot.New()
	if err != nil {
		return fmt.Errorf("raster: %s: %w", op, err)
	}
	p.Title.Text = opts.Title
	if p.Title.Text == "" {
		p.Title.Text = l.Name
		if l.Units != "" {
			p.Title.Text += " (" + l.Units + ")"
		}
	}
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	hm := plotter.NewHeatMap(layerXYZ{g: g, l: l}, palette.Heat(opts.Colors, 1))
	hm.NaN = color.Transparent
	hm.Min, hm.Max = s.Min, s.Max
	if hm.Max == hm.Min {
		hm.Max = hm.Min + math.Max(1, math.Abs(hm.Min))
	}
	p.Add(hm)

	if opts.Boundary != nil {
		b, err := opts.Boundary.Transform(g.CRS)
		if err != nil {
			return err
		}
		for _, f := range b.Features {
			if err := addOutline(p, f.Geom); err != nil {
				return fmt.Errorf("raster: %s: %w", op, err)
			}
		}
	}
	bounds := g.Bounds()
	p.X.Min, p.X.Max = bounds.Min.X, bounds.Max.X
	p.Y.Min, p.Y.Max = bounds.Min.Y, bounds.Max.Y

	if err := p.Save(opts.Width, opts.Height, filename); err != nil {
		return fmt.Errorf("raster: %s: saving %s: %w", op, filename, err)
	}
	return nil
}

// addOutline adds the edges of g to p as lines.
func addOutline(p *plot.Plot, g geom.Geom) error {
	var paths [][]geom.Point
	switch t := g.(type) {
	case geom.Polygonal:
		for _, poly := range t.Polygons() {
			for _, ring := range poly {
				paths = append(paths, ring)
			}
		}
	case geom.LineString:
		paths = append(paths, t)
	case geom.MultiLineString:
		for _, l := range t {
			paths = append(paths, l)
		}
	default:
		return nil
	}
	for _, path := range paths {
		xys := make(plotter.XYs, len(path))
		for i, pt := range path {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.Width = vg.Points(1)
		p.Add(line)
	}
	return nil
}
