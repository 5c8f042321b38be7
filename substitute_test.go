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
	"testing"

	"github.com/ctessum/geom"
	"github.com/google/go-cmp/cmp"
)

// globalGrid returns a 2×2 grid covering the globe with cell identifiers
// 1 to 4 in row-major order.
func globalGrid(t *testing.T) *Grid {
	t.Helper()
	b := &geom.Bounds{Min: geom.Point{X: -180, Y: -90}, Max: geom.Point{X: 180, Y: 90}}
	g, err := NewFromExtent(b, 180, 90, LongLatWGS84, "id")
	if err != nil {
		t.Fatal(err)
	}
	copy(g.Layers[0].Data.Elements, []float64{1, 2, 3, 4})
	return g
}

func TestSubstitute(t *testing.T) {
	g := globalGrid(t)
	t.Run("lookup", func(t *testing.T) {
		s, err := Substitute(g, "id", "prob", map[float64]float64{1: 0.2, 2: 0.8}, NoData)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]float64{0.2, 0.8, nan, nan}, values(t, s, "prob"), approx); diff != "" {
			t.Error(diff)
		}
		if !s.Geometry.Equal(g.Geometry) {
			t.Errorf("geometry changed: %s", s.Geometry)
		}
		if diff := cmp.Diff([]float64{1, 2, 3, 4}, values(t, g, "id")); diff != "" {
			t.Errorf("input modified: %s", diff)
		}
	})
	t.Run("identity", func(t *testing.T) {
		in := g.Copy()
		in.Layers[0].Set(NoData, 1, 1)
		s, err := Substitute(in, "", "", map[float64]float64{1: 1, 2: 2, 3: 3, 4: 4}, NoData)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(gridValues(in), gridValues(s), approx); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("default", func(t *testing.T) {
		in := g.Copy()
		in.Layers[0].Set(NoData, 0, 0)
		s, err := Substitute(in, "id", "", map[float64]float64{2: 20}, 0)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]float64{0, 20, 0, 0}, values(t, s, "id")); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("missing layer", func(t *testing.T) {
		if _, err := Substitute(g, "x", "", nil, 0); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestCountDistinct(t *testing.T) {
	records := []Record{
		{ID: "sp1", Key: 1, Value: 0.6},
		{ID: "sp2", Key: 1, Value: 0.4},
		{ID: "sp1", Key: 1, Value: 0.9},
		{ID: "sp3", Key: 2, Value: 0.7},
		{ID: "sp1", Key: 3, Value: 0.1},
		{ID: "sp2", Key: 2, Value: 0.5},
	}
	t.Run("threshold", func(t *testing.T) {
		have := CountDistinct(records, AtLeast(0.5))
		if diff := cmp.Diff(map[float64]float64{1: 1, 2: 2}, have); diff != "" {
			t.Error(diff)
		}
		if diff := cmp.Diff([]float64{1, 2}, Keys(have)); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("all", func(t *testing.T) {
		have := CountDistinct(records, nil)
		if diff := cmp.Diff(map[float64]float64{1: 2, 2: 2, 3: 1}, have); diff != "" {
			t.Error(diff)
		}
	})
	t.Run("richness", func(t *testing.T) {
		// Counts substituted into a grid of cell identifiers.
		s, err := Substitute(globalGrid(t), "id", "richness", CountDistinct(records, AtLeast(0.5)), 0)
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff([]float64{1, 2, 0, 0}, values(t, s, "richness")); diff != "" {
			t.Error(diff)
		}
	})
}
