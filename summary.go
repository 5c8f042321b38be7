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

	"gonum.org/v1/gonum/floats"
)

// Summary holds statistics of the cells of a layer that hold values.
type Summary struct {
	Name        string
	Units       string
	Cells       int
	Valid       int
	Min, Max    float64
	Sum, Mean   float64
	Description string
}

// Summary computes statistics of the named layer.
func (g *Grid) Summary(layer string) (Summary, error) {
	l, err := g.Layer(layer)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{
		Name:        l.Name,
		Units:       l.Units,
		Description: l.Description,
		Cells:       len(l.Data.Elements),
		Min:         NoData,
		Max:         NoData,
		Mean:        NoData,
	}
	v := make([]float64, 0, len(l.Data.Elements))
	for _, e := range l.Data.Elements {
		if !IsNoData(e) {
			v = append(v, e)
		}
	}
	s.Valid = len(v)
	if s.Valid == 0 {
		return s, nil
	}
	s.Min = floats.Min(v)
	s.Max = floats.Max(v)
	s.Sum = floats.Sum(v)
	s.Mean = s.Sum / float64(s.Valid)
	return s, nil
}

func (s Summary) String() string {
	return fmt.Sprintf("%s (%s): %d of %d cells valid; min=%g, max=%g, mean=%g, sum=%g",
		s.Name, s.Units, s.Valid, s.Cells, s.Min, s.Max, s.Mean, s.Sum)
}

// Values returns the distinct values held by the named layer, excluding
// NoData.
func (g *Grid) Values(layer string) (map[float64]int, error) {
	l, err := g.Layer(layer)
	if err != nil {
		return nil, err
	}
	o := make(map[float64]int)
	for _, v := range l.Data.Elements {
		if !IsNoData(v) {
			o[v]++
		}
	}
	return o, nil
}
