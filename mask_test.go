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
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

// sequence returns a grid with geometry geo whose layer "v" holds
// 0, 1, 2, ... in row-major order.
func sequence(t *testing.T, geo Geometry) *Grid {
	t.Helper()
	v := make([]float64, geo.Nx*geo.Ny)
	for i := range v {
		v[i] = float64(i)
	}
	return testGrid(t, geo, "v", v...)
}

func TestMask(t *testing.T) {
	g := sequence(t, grid4x4)
	m := testGrid(t, grid4x4, "m",
		1, nan, 1, 1,
		1, 1, 1, 1,
		nan, 1, 1, 1,
		1, 1, 1, nan,
	)
	o, err := Mask(g, m, "")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		0, nan, 2, 3,
		4, 5, 6, 7,
		nan, 9, 10, 11,
		12, 13, 14, nan,
	}
	if diff := cmp.Diff(want, values(t, o, "v"), approx); diff != "" {
		t.Error(diff)
	}
	if IsNoData(g.Layers[0].Get(0, 1)) {
		t.Error("input grid was modified")
	}

	t.Run("self", func(t *testing.T) {
		o, err := Mask(o, o, "v")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, values(t, o, "v"), approx); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("mismatch", func(t *testing.T) {
		geo := grid4x4
		geo.X0 = 1
		_, err := Mask(g, testGrid(t, geo, "m", make([]float64, 16)...), "")
		if !errors.As(err, new(*GeometryMismatchError)) {
			t.Errorf("got %v", err)
		}
	})
	t.Run("missing layer", func(t *testing.T) {
		if _, err := Mask(g, m, "x"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestMaskFeatures(t *testing.T) {
	g := sequence(t, grid4x4)
	fs := &FeatureSet{CRS: webMercator, Features: []*Feature{
		{Geom: square(0, 0, 2, 2)},
		{Geom: geom.Point{X: 3.5, Y: 3.5}}, // ignored
	}}
	o, err := MaskFeatures(g, fs)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{
		nan, nan, nan, nan,
		nan, nan, nan, nan,
		8, 9, nan, nan,
		12, 13, nan, nan,
	}
	if diff := cmp.Diff(want, values(t, o, "v"), approx); diff != "" {
		t.Error(diff)
	}
	_, err = MaskFeatures(g, &FeatureSet{CRS: webMercator, Features: fs.Features[1:]})
	if !errors.As(err, new(*MalformedInputError)) {
		t.Errorf("no polygons: got %v", err)
	}
}

func TestCrop(t *testing.T) {
	g := sequence(t, grid4x4)
	for _, test := range []struct {
		name    string
		to      Geometry
		want    []float64
		wantGeo Geometry
	}{
		{
			name:    "inside",
			to:      Geometry{CRS: webMercator, X0: 1, Y0: 1, Dx: 1, Dy: 1, Nx: 2, Ny: 2},
			want:    []float64{5, 6, 9, 10},
			wantGeo: Geometry{CRS: webMercator, X0: 1, Y0: 1, Dx: 1, Dy: 1, Nx: 2, Ny: 2},
		},
		{
			name:    "partial",
			to:      Geometry{CRS: webMercator, X0: 3, Y0: 3, Dx: 1, Dy: 1, Nx: 2, Ny: 2},
			want:    []float64{3},
			wantGeo: Geometry{CRS: webMercator, X0: 3, Y0: 3, Dx: 1, Dy: 1, Nx: 1, Ny: 1},
		},
		{
			name:    "covering",
			to:      Geometry{CRS: webMercator, X0: -5, Y0: -5, Dx: 1, Dy: 1, Nx: 20, Ny: 20},
			want:    values(t, g, "v"),
			wantGeo: grid4x4,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			o, err := Crop(g, test.to)
			if err != nil {
				t.Fatal(err)
			}
			if !o.Geometry.Equal(test.wantGeo) {
				t.Errorf("geometry: got %s, want %s", o.Geometry, test.wantGeo)
			}
			if diff := cmp.Diff(test.want, values(t, o, "v"), approx); diff != "" {
				t.Error(diff)
			}
		})
	}

	for _, test := range []struct {
		name string
		to   Geometry
	}{
		{name: "misaligned", to: Geometry{CRS: webMercator, X0: 0.5, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 2}},
		{name: "resolution", to: Geometry{CRS: webMercator, X0: 0, Y0: 0, Dx: 2, Dy: 2, Nx: 2, Ny: 2}},
		{name: "disjoint", to: Geometry{CRS: webMercator, X0: 10, Y0: 10, Dx: 1, Dy: 1, Nx: 2, Ny: 2}},
		{name: "crs", to: Geometry{CRS: LongLatWGS84, X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 2}},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Crop(g, test.to); !errors.As(err, new(*GeometryMismatchError)) {
				t.Errorf("got %v", err)
			}
		})
	}
}

func TestCropBounds(t *testing.T) {
	g := sequence(t, grid4x4)
	o, err := CropBounds(g, &geom.Bounds{Min: geom.Point{X: 0.5, Y: 0.5}, Max: geom.Point{X: 1.5, Y: 1.5}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{8, 9, 12, 13}, values(t, o, "v"), approx); diff != "" {
		t.Error(diff)
	}
	want := Geometry{CRS: webMercator, X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 2, Ny: 2}
	if !o.Geometry.Equal(want) {
		t.Errorf("geometry: got %s, want %s", o.Geometry, want)
	}
	_, err = CropBounds(g, &geom.Bounds{Min: geom.Point{X: 5, Y: 5}, Max: geom.Point{X: 6, Y: 6}})
	if !errors.As(err, new(*GeometryMismatchError)) {
		t.Errorf("disjoint: got %v", err)
	}
}

func TestTrimExtend(t *testing.T) {
	geo := Geometry{CRS: webMercator, X0: 0, Y0: 0, Dx: 1, Dy: 1, Nx: 5, Ny: 5}
	v := make([]float64, 25)
	for i := range v {
		v[i] = nan
	}
	v[1*5+1] = 1
	v[2*5+3] = 0
	g := testGrid(t, geo, "v", v...)
	b, err := g.AddLayer("w")
	if err != nil {
		t.Fatal(err)
	}
	b.Set(3, 1, 2)

	trimmed, err := Trim(g)
	if err != nil {
		t.Fatal(err)
	}
	wantGeo := Geometry{CRS: webMercator, X0: 1, Y0: 2, Dx: 1, Dy: 1, Nx: 3, Ny: 2}
	if !trimmed.Geometry.Equal(wantGeo) {
		t.Errorf("geometry: got %s, want %s", trimmed.Geometry, wantGeo)
	}
	want := map[string][]float64{
		"v": {1, nan, nan, nan, nan, 0},
		"w": {nan, 3, nan, nan, nan, nan},
	}
	if diff := cmp.Diff(want, gridValues(trimmed), approx); diff != "" {
		t.Error(diff)
	}

	extended, err := Extend(trimmed, geo)
	if err != nil {
		t.Fatal(err)
	}
	if !extended.Geometry.Equal(geo) {
		t.Errorf("geometry: got %s, want %s", extended.Geometry, geo)
	}
	if diff := cmp.Diff(gridValues(g), gridValues(extended), approx); diff != "" {
		t.Error(diff)
	}

	empty := testGrid(t, geo, "v", func() []float64 {
		o := make([]float64, 25)
		for i := range o {
			o[i] = math.NaN()
		}
		return o
	}()...)
	if _, err := Trim(empty); !errors.As(err, new(*MalformedInputError)) {
		t.Errorf("empty grid: got %v", err)
	}
}
