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


package rasterutil

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spatialmodel/raster"
)

var approx = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(1.e-9, 1.e-9)}

var nan = math.NaN()

// writeFile writes contents to a file called name in dir and returns
// its path.
func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

// cellIDs is a table of the cell centers of a 2×2 global grid.
const cellIDs = `x,y,id
-90,45,1
90,45,2
-90,-45,3
90,-45,4
`

// occurrences relates species to the cells they occur in.
const occurrences = `species,cell,probability
a,1,0.5
b,1,0.1
a,2,0.9
b,2,0.7
c,3,0.2
`

func layerValues(t *testing.T, g *raster.Grid, layer string) []float64 {
	t.Helper()
	l, err := g.Layer(layer)
	if err != nil {
		t.Fatal(err)
	}
	return l.Data.Elements
}

const testPipeline = `
CacheDir = "$RASTER_TEST_DIR/cache"

[[Stage]]
Name = "cells"
Type = "table"
Table = "$RASTER_TEST_DIR/ids.csv"
ZCol = "id"
CRS = "+proj=longlat +datum=WGS84 +no_defs"

[[Stage]]
Name = "prob"
Type = "substitute"
Input = "cells"
Layer = "id"
Out = "prob"
Mapping = { "1" = "0.2", "2" = "0.8" }
Default = "NA"
Output = "$RASTER_TEST_DIR/prob.nc"

[[Stage]]
Name = "richness"
Type = "Richness"
Input = "cells"
Layer = "id"
Table = "$RASTER_TEST_DIR/occurrences.csv"
IDCol = "species"
KeyCol = "cell"
ValueCol = "probability"
Threshold = 0.5
Default = "0"

[[Stage]]
Name = "double"
Type = "calc"
Input = "prob"
Out = "double"
Expression = "prob * 2"

[[Stage]]
Name = "northeast"
Type = "crop"
Input = "double"
Bounds = [0.0, 0.0, 180.0, 90.0]

[[Stage]]
Type = "export"
Input = "richness"
Layer = "richness"
Output = "$RASTER_TEST_DIR/richness.csv"
IncludeNoData = true

[[Stage]]
Name = "fine"
Type = "grid"
Bounds = [-180.0, -90.0, 180.0, 90.0]
Dx = 90.0
Dy = 45.0
CRS = "+proj=longlat +datum=WGS84 +no_defs"
Layers = ["x"]

[[Stage]]
Name = "resampled"
Type = "reproject"
Input = "cells"
Reference = "fine"
Method = "nearest"

[[Stage]]
Name = "distance"
Type = "distance"
Input = "prob"
Layer = "prob"

[[Stage]]
Type = "plot"
Input = "prob"
Layer = "prob"
Title = "Probability"
Output = "$RASTER_TEST_DIR/prob.png"
`

func TestReadPipeline(t *testing.T) {
	t.Setenv("RASTER_TEST_DIR", "/data")
	p, err := ReadPipeline(strings.NewReader(testPipeline))
	if err != nil {
		t.Fatal(err)
	}
	if p.CacheDir != "/data/cache" {
		t.Errorf("cache directory %q", p.CacheDir)
	}
	var names, types []string
	for _, s := range p.Stage {
		names = append(names, s.Name)
		types = append(types, s.Type)
	}
	wantNames := []string{"cells", "prob", "richness", "double", "northeast", "export5", "fine", "resampled", "distance", "plot9"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Error(diff)
	}
	wantTypes := []string{"table", "substitute", "richness", "calc", "crop", "export", "grid", "reproject", "distance", "plot"}
	if diff := cmp.Diff(wantTypes, types); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff(map[string]string{"1": "0.2", "2": "0.8"}, p.Stage[1].Mapping); diff != "" {
		t.Error(diff)
	}
	if p.Stage[1].Output != "/data/prob.nc" {
		t.Errorf("output %q", p.Stage[1].Output)
	}
	if diff := cmp.Diff([]float64{0, 0, 180, 90}, p.Stage[4].Bounds); diff != "" {
		t.Error(diff)
	}

	for _, test := range []struct{ name, toml string }{
		{name: "duplicate", toml: "[[Stage]]\nName = \"a\"\nType = \"trim\"\n[[Stage]]\nName = \"a\"\nType = \"trim\"\n"},
		{name: "unknown key", toml: "[[Stage]]\nType = \"trim\"\nColour = \"red\"\n"},
		{name: "syntax", toml: "[[Stage]\n"},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := ReadPipeline(strings.NewReader(test.toml)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPipelineRun(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RASTER_TEST_DIR", dir)
	writeFile(t, dir, "ids.csv", cellIDs)
	writeFile(t, dir, "occurrences.csv", occurrences)
	p, err := ReadPipeline(strings.NewReader(testPipeline))
	if err != nil {
		t.Fatal(err)
	}
	grids, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	for _, test := range []struct {
		stage, layer string
		want         []float64
	}{
		{stage: "cells", layer: "id", want: []float64{1, 2, 3, 4}},
		{stage: "prob", layer: "prob", want: []float64{0.2, 0.8, nan, nan}},
		{stage: "richness", layer: "richness", want: []float64{1, 2, 0, 0}},
		{stage: "double", layer: "double", want: []float64{0.4, 1.6, nan, nan}},
		{stage: "northeast", layer: "double", want: []float64{1.6}},
		{stage: "resampled", layer: "id", want: []float64{
			1, 1, 2, 2,
			1, 1, 2, 2,
			3, 3, 4, 4,
			3, 3, 4, 4,
		}},
	} {
		t.Run(test.stage, func(t *testing.T) {
			g, ok := grids[test.stage]
			if !ok {
				t.Fatalf("no result for stage %s", test.stage)
			}
			if diff := cmp.Diff(test.want, layerValues(t, g, test.layer), approx); diff != "" {
				t.Error(diff)
			}
		})
	}
	if _, ok := grids["plot9"]; ok {
		t.Error("plot stages have no grid result")
	}

	d := layerValues(t, grids["distance"], raster.DistanceLayer)
	if d[0] != 0 || d[1] != 0 || !(d[2] > 0) || !(d[3] > 0) {
		t.Errorf("distances %v", d)
	}

	f, err := os.Open(filepath.Join(dir, "prob.nc"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	g, err := raster.ReadNetCDF(f)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{0.2, 0.8, nan, nan}, layerValues(t, g, "prob"), approx); diff != "" {
		t.Error(diff)
	}

	tf, err := os.Open(filepath.Join(dir, "richness.csv"))
	if err != nil {
		t.Fatal(err)
	}
	defer tf.Close()
	points, err := raster.ReadXYZ(tf, "x", "y", "richness")
	if err != nil {
		t.Fatal(err)
	}
	want := []raster.XYZ{{X: -90, Y: 45, Z: 1}, {X: 90, Y: 45, Z: 2}, {X: -90, Y: -45, Z: 0}, {X: 90, Y: -45, Z: 0}}
	if diff := cmp.Diff(want, points, approx); diff != "" {
		t.Error(diff)
	}

	for _, name := range []string{"prob.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Error(err)
		}
	}
	cached, err := os.ReadDir(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 {
		t.Errorf("%d cached reprojections", len(cached))
	}
}

func TestPipelineErrors(t *testing.T) {
	dir := t.TempDir()
	for _, test := range []struct {
		name  string
		stage Stage
	}{
		{name: "unknown type", stage: Stage{Name: "x", Type: "blur"}},
		{name: "missing input", stage: Stage{Name: "x", Type: "trim", Input: filepath.Join(dir, "missing.nc")}},
		{name: "unsupported format", stage: Stage{Name: "x", Type: "trim", Input: writeFile(t, dir, "grid.tif", "")}},
		{name: "export without output", stage: Stage{Name: "x", Type: "export", Input: "y"}},
		{name: "unsupported output format", stage: Stage{Name: "x", Type: "grid", Bounds: []float64{0, 0, 1, 1}, Dx: 1,
			CRS: raster.LongLatWGS84, Layers: []string{"a"}, Output: filepath.Join(dir, "g.tif")}},
		{name: "bad bounds", stage: Stage{Name: "x", Type: "grid", Bounds: []float64{0, 0, 1}}},
		{name: "bad output directory", stage: Stage{Name: "x", Type: "grid", Bounds: []float64{0, 0, 1, 1}, Dx: 1, Dy: 1,
			CRS: raster.LongLatWGS84, Layers: []string{"a"}, Output: filepath.Join(dir, "no", "such", "dir", "g.nc")}},
	} {
		t.Run(test.name, func(t *testing.T) {
			p := &Pipeline{Stage: []Stage{test.stage}}
			if _, err := p.Run(context.Background()); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestPipelineGridResolution(t *testing.T) {
	p, err := ReadPipeline(strings.NewReader(`
[[Stage]]
Name = "g"
Type = "grid"
Bounds = [0.0, 0.0, 6.0, 3.0]
Dx = 1.5
CRS = "+proj=longlat +datum=WGS84 +no_defs"
Layers = ["a"]
`))
	if err != nil {
		t.Fatal(err)
	}
	grids, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := raster.Geometry{CRS: raster.LongLatWGS84, Dx: 1.5, Dy: 1.5, Nx: 4, Ny: 2}
	if g := grids["g"]; !g.Geometry.Equal(want) {
		t.Errorf("have %s, want %s", g.Geometry, want)
	}
}
