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
	"errors"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

// square returns a counter-clockwise rectangle.
func square(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}}}
}

func feature(g geom.Geom, v string) *Feature {
	return &Feature{Geom: g, Attributes: map[string]string{"v": v}}
}

var grid4x4 = Geometry{CRS: webMercator, X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 4, Ny: 4}

func TestRasterizePolygons(t *testing.T) {
	a := feature(square(0, 0, 3, 3), "1")
	b := feature(square(2, 2, 4, 4), "2")
	for _, test := range []struct {
		name     string
		features []*Feature
		want     []float64
	}{
		{
			name:     "last wins",
			features: []*Feature{a, b},
			want: []float64{
				nan, nan, 2, 2,
				1, 1, 2, 2,
				1, 1, 1, nan,
				1, 1, 1, nan,
			},
		},
		{
			name:     "reversed",
			features: []*Feature{b, a},
			want: []float64{
				nan, nan, 2, 2,
				1, 1, 1, 2,
				1, 1, 1, nan,
				1, 1, 1, nan,
			},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			g, err := Rasterize(&FeatureSet{CRS: webMercator, Features: test.features}, grid4x4, "v")
			if err != nil {
				t.Fatal(err)
			}
			if !g.Geometry.Equal(grid4x4) {
				t.Errorf("geometry %s", g.Geometry)
			}
			if diff := cmp.Diff(test.want, values(t, g, "v"), approx); diff != "" {
				t.Error(diff)
			}
		})
	}
}

func TestRasterizeLinesAndPoints(t *testing.T) {
	fs := &FeatureSet{CRS: webMercator, Features: []*Feature{
		feature(geom.LineString{{X: 0, Y: 2.5}, {X: 4, Y: 2.5}}, "1"),
		feature(geom.Point{X: 0.7, Y: 2.8}, "2"), // off center, loses to the line
		feature(geom.Point{X: 3.5, Y: 0.5}, "3"),
		feature(geom.Point{X: 3.5, Y: 0.5}, "4"), // tie goes to the later feature
		feature(geom.Point{X: 10, Y: 10}, "5"),   // outside
	}}
	g, err := Rasterize(fs, grid4x4, "v")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		nan, nan, nan, nan,
		1, 1, 1, 1,
		nan, nan, nan, nan,
		nan, nan, nan, 4,
	}
	if diff := cmp.Diff(want, values(t, g, "v"), approx); diff != "" {
		t.Error(diff)
	}
}

func TestRasterizeDiagonalLine(t *testing.T) {
	fs := &FeatureSet{CRS: webMercator, Features: []*Feature{
		feature(geom.MultiLineString{{{X: 0.5, Y: 0.2}, {X: 3.5, Y: 1.7}}}, "6"),
	}}
	g, err := Rasterize(fs, grid4x4, "v")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		nan, nan, nan, nan,
		nan, nan, nan, nan,
		nan, nan, 6, 6,
		6, 6, 6, nan,
	}
	if diff := cmp.Diff(want, values(t, g, "v"), approx); diff != "" {
		t.Error(diff)
	}
}

func TestRasterizeID(t *testing.T) {
	fs := &FeatureSet{CRS: webMercator, Features: []*Feature{
		feature(square(0, 0, 2, 2), "a"),
		feature(square(2, 2, 4, 4), "b"),
	}}
	g, err := Rasterize(fs, grid4x4, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		nan, nan, 2, 2,
		nan, nan, 2, 2,
		1, 1, nan, nan,
		1, 1, nan, nan,
	}
	if diff := cmp.Diff(want, values(t, g, IDField), approx); diff != "" {
		t.Error(diff)
	}

	// The attribute values are not numbers.
	if _, err := Rasterize(fs, grid4x4, "v"); !errors.As(err, new(*MalformedInputError)) {
		t.Errorf("non-numeric field: got %v", err)
	}
	if _, err := Rasterize(fs, grid4x4, "missing"); !errors.As(err, new(*MalformedInputError)) {
		t.Errorf("missing field: got %v", err)
	}
}

func TestRasterizeTransform(t *testing.T) {
	// A square in geographic coordinates covering the four central cells
	// of a grid in web mercator.
	fs := &FeatureSet{CRS: LongLatWGS84, Features: []*Feature{
		feature(square(-1, -1, 1, 1), "7"),
	}}
	ref := Geometry{CRS: webMercator, X0: -200000, Y0: -200000, Dx: 100000, Dy: 100000, Nx: 4, Ny: 4}
	g, err := Rasterize(fs, ref, "v")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		nan, nan, nan, nan,
		nan, 7, 7, nan,
		nan, 7, 7, nan,
		nan, nan, nan, nan,
	}
	if diff := cmp.Diff(want, values(t, g, "v"), approx); diff != "" {
		t.Error(diff)
	}
}
