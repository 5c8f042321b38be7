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

// Substitute returns a single-layer grid with the geometry of g where each
// cell holds the value that mapping assigns to the identifier in the named
// layer of g. Cells whose identifier is not in mapping, and cells holding
// NoData, are set to def. The output layer is called outName, or the name
// of the input layer if outName is empty.
func Substitute(g *Grid, layer, outName string, mapping map[float64]float64, def float64) (*Grid, error) {
	in, err := g.Layer(layer)
	if err != nil {
		return nil, err
	}
	if outName == "" {
		outName = in.Name
	}
	o, err := New(g.Geometry, outName)
	if err != nil {
		return nil, err
	}
	out := o.Layers[0]
	if outName == in.Name {
		out.Description, out.Units = in.Description, in.Units
	}
	for i, id := range in.Data.Elements {
		v, ok := mapping[id]
		if !ok || IsNoData(id) {
			v = def
		}
		out.Data.Elements[i] = v
	}
	return o, nil
}
