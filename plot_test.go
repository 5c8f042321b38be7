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
	"os"
	"path/filepath"
	"testing"
)

func TestPlot(t *testing.T) {
	g := sequence(t, grid4x4)
	g.Layers[0].Set(nan, 0, 0)
	dir := t.TempDir()
	boundary := &FeatureSet{CRS: webMercator, Features: []*Feature{{Geom: square(0.5, 0.5, 3.5, 3.5)}}}
	for _, name := range []string{"v.png", "v.svg"} {
		t.Run(name, func(t *testing.T) {
			f := filepath.Join(dir, name)
			if err := g.Plot("v", f, PlotOptions{Title: "values", Boundary: boundary}); err != nil {
				t.Fatal(err)
			}
			info, err := os.Stat(f)
			if err != nil {
				t.Fatal(err)
			}
			if info.Size() == 0 {
				t.Error("empty image")
			}
		})
	}

	t.Run("constant", func(t *testing.T) {
		c := testGrid(t, Geometry{CRS: webMercator, Dx: 1, Dy: 1, Nx: 2, Ny: 1}, "c", 7, 7)
		if err := c.Plot("", filepath.Join(dir, "c.png"), PlotOptions{}); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("no values", func(t *testing.T) {
		e := testGrid(t, Geometry{CRS: webMercator, Dx: 1, Dy: 1, Nx: 1, Ny: 1}, "e", nan)
		err := e.Plot("e", filepath.Join(dir, "e.png"), PlotOptions{})
		if !errors.As(err, new(*MalformedInputError)) {
			t.Errorf("got %v", err)
		}
	})
}
