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
	"github.com/google/go-cmp/cmp/cmpopts"
)

// webMercator is the spherical web mercator projection, without the @null
// grid shift so that it can be transformed to and from geographic coordinates.
const webMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +no_defs"

var nan = NoData

// approx compares floating point values allowing for rounding error and
// treating NaNs as equal.
var approx = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(1.e-9, 1.e-9)}

// testGrid creates a single-layer grid holding values in row-major order
// starting at the northwest cell.
func testGrid(t *testing.T, geo Geometry, layer string, values ...float64) *Grid {
	t.Helper()
	g, err := New(geo, layer)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != geo.Nx*geo.Ny {
		t.Fatalf("have %d values for %d cells", len(values), geo.Nx*geo.Ny)
	}
	copy(g.Layers[0].Data.Elements, values)
	return g
}

// values returns the cell values of the named layer in row-major order.
func values(t *testing.T, g *Grid, layer string) []float64 {
	t.Helper()
	l, err := g.Layer(layer)
	if err != nil {
		t.Fatal(err)
	}
	return l.Data.Elements
}

// gridValues returns the cell values of every layer, keyed by layer name.
func gridValues(g *Grid) map[string][]float64 {
	o := make(map[string][]float64, len(g.Layers))
	for _, l := range g.Layers {
		o[l.Name] = l.Data.Elements
	}
	return o
}

func TestGeometryCells(t *testing.T) {
	geo := Geometry{CRS: webMercator, X0: 0, Y0: 0, Dx: 2, Dy: 1, Nx: 3, Ny: 2}
	if err := geo.Validate(); err != nil {
		t.Fatal(err)
	}
	t.Run("bounds", func(t *testing.T) {
		want := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 6, Y: 2}}
		if diff := cmp.Diff(want, geo.Bounds()); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("center", func(t *testing.T) {
		if diff := cmp.Diff(geom.Point{X: 1, Y: 1.5}, geo.CellCenter(0, 0)); diff != "" {
			t.Error(diff)
		}
		if diff := cmp.Diff(geom.Point{X: 5, Y: 0.5}, geo.CellCenter(1, 2)); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("index", func(t *testing.T) {
		type result struct {
			Row, Col int
			OK       bool
		}
		for _, test := range []struct {
			x, y float64
			want result
		}{
			{x: 1, y: 1.5, want: result{0, 0, true}},
			{x: 0, y: 0, want: result{1, 0, true}}, // southwest corner
			{x: 2, y: 1, want: result{0, 1, true}}, // cells include west and south edges
			{x: 5.9, y: 0.1, want: result{1, 2, true}},
			{x: 6, y: 1, want: result{}},
			{x: 1, y: 2, want: result{}},
			{x: -0.1, y: 1, want: result{}},
			{x: 1, y: -0.1, want: result{}},
		} {
			r, c, ok := geo.CellIndex(test.x, test.y)
			if diff := cmp.Diff(test.want, result{r, c, ok}); diff != "" {
				t.Errorf("(%g, %g): %s", test.x, test.y, diff)
			}
		}
	})
	t.Run("polygon", func(t *testing.T) {
		p := geo.CellPolygon(1, 2)
		if diff := cmp.Diff(&geom.Bounds{Min: geom.Point{X: 4, Y: 0}, Max: geom.Point{X: 6, Y: 1}}, p.Bounds()); diff != "" {
			t.Error(diff)
		}
	})
}

func TestValidate(t *testing.T) {
	good := Geometry{CRS: webMercator, Dx: 1, Dy: 1, Nx: 1, Ny: 1}
	for _, test := range []struct {
		name   string
		modify func(*Geometry)
		target interface{}
	}{
		{name: "zero dx", modify: func(g *Geometry) { g.Dx = 0 }, target: new(*MalformedInputError)},
		{name: "negative dy", modify: func(g *Geometry) { g.Dy = -1 }, target: new(*MalformedInputError)},
		{name: "no columns", modify: func(g *Geometry) { g.Nx = 0 }, target: new(*MalformedInputError)},
		{name: "nan origin", modify: func(g *Geometry) { g.X0 = nan }, target: new(*MalformedInputError)},
		{name: "missing crs", modify: func(g *Geometry) { g.CRS = "" }, target: new(*UnknownCoordinateSystemError)},
		{name: "bad crs", modify: func(g *Geometry) { g.CRS = "not a projection" }, target: new(*UnknownCoordinateSystemError)},
	} {
		t.Run(test.name, func(t *testing.T) {
			geo := good
			test.modify(&geo)
			err := geo.Validate()
			if !errors.As(err, test.target) {
				t.Errorf("have error %v, want %T", err, test.target)
			}
			if _, err := New(geo, "v"); !errors.As(err, test.target) {
				t.Errorf("New: have error %v, want %T", err, test.target)
			}
		})
	}
	if err := good.Validate(); err != nil {
		t.Error(err)
	}
}

func TestGeometryEqual(t *testing.T) {
	a := Geometry{CRS: webMercator, X0: 10, Y0: 20, Dx: 1, Dy: 1, Nx: 3, Ny: 3}
	b := a
	b.CRS = "  " + webMercator // formatting differences are ignored
	if !a.Equal(b) {
		t.Error("geometries should be equal")
	}
	b.X0 += 1.e-9
	if !a.Equal(b) {
		t.Error("geometries should be equal within tolerance")
	}
	b.X0 += 0.5
	if a.Equal(b) {
		t.Error("geometries should differ")
	}
	c := a
	c.CRS = LongLatWGS84
	if err := a.checkSame("test", c); !errors.As(err, new(*GeometryMismatchError)) {
		t.Errorf("have error %v, want GeometryMismatchError", err)
	}
}

func TestLayers(t *testing.T) {
	geo := Geometry{CRS: webMercator, Dx: 1, Dy: 1, Nx: 2, Ny: 1}
	g, err := New(geo, "a", "b")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(values(t, g, "a"), []float64{nan, nan}, approx); diff != "" {
		t.Errorf("new layers should hold no data: %s", diff)
	}
	if _, err := g.Layer(""); err == nil {
		t.Error("empty layer name should be ambiguous with two layers")
	}
	if _, err := g.AddLayer("a"); err == nil {
		t.Error("duplicate layer should fail")
	}
	g.Layers[0].Set(1, 0, 1)
	g.Layers[1].Set(0, 0, 0)
	if diff := cmp.Diff([]float64{0, nan}, values(t, g, "b"), approx); diff != "" {
		t.Errorf("zero should be stored as a value: %s", diff)
	}

	t.Run("select", func(t *testing.T) {
		s, err := g.Select("a")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"a"}, s.LayerNames()); diff != "" {
			t.Error(diff)
		}
		s.Layers[0].Set(5, 0, 0)
		if !IsNoData(g.Layers[0].Get(0, 0)) {
			t.Error("select should copy data")
		}
	})
	t.Run("rename", func(t *testing.T) {
		r, err := g.Rename("a", "c")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]string{"c", "b"}, r.LayerNames()); diff != "" {
			t.Error(diff)
		}
		if diff := cmp.Diff([]string{"a", "b"}, g.LayerNames()); diff != "" {
			t.Errorf("input grid modified: %s", diff)
		}
		if _, err := g.Rename("a", "b"); err == nil {
			t.Error("renaming to an existing name should fail")
		}
	})
	t.Run("crs", func(t *testing.T) {
		w, err := g.WithCRS(LongLatWGS84)
		if err != nil {
			t.Fatal(err)
		}
		if w.CRS != LongLatWGS84 || g.CRS != webMercator {
			t.Errorf("have %q and %q", w.CRS, g.CRS)
		}
		if diff := cmp.Diff(values(t, g, "a"), values(t, w, "a"), approx); diff != "" {
			t.Errorf("assigning a crs should not change values: %s", diff)
		}
		if _, err := g.WithCRS(""); !errors.As(err, new(*UnknownCoordinateSystemError)) {
			t.Errorf("have error %v, want UnknownCoordinateSystemError", err)
		}
	})
}
