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
	"encoding/gob"
	"fmt"
	"io"
)

// savedLayer is the gob representation of a Layer. sparse.DenseArray has
// unexported fields, so the data are stored as a flat slice.
type savedLayer struct {
	Name, Description, Units string
	Elements                 []float64
}

type savedGrid struct {
	Geometry
	Layers []savedLayer
}

// Save writes g to w in gob format.
func (g *Grid) Save(w io.Writer) error {
	s := savedGrid{Geometry: g.Geometry, Layers: make([]savedLayer, len(g.Layers))}
	for i, l := range g.Layers {
		s.Layers[i] = savedLayer{
			Name:        l.Name,
			Description: l.Description,
			Units:       l.Units,
			Elements:    l.Data.Elements,
		}
	}
	if err := gob.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("raster: saving grid: %w", err)
	}
	return nil
}

// Load reads a grid written by Save.
func Load(r io.Reader) (*Grid, error) {
	var s savedGrid
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("raster: loading grid: %w", err)
	}
	g, err := New(s.Geometry)
	if err != nil {
		return nil, err
	}
	for _, sl := range s.Layers {
		l, err := g.AddLayer(sl.Name)
		if err != nil {
			return nil, err
		}
		if len(sl.Elements) != len(l.Data.Elements) {
			return nil, malformed("load", "layer %s has %d values but the grid has %d cells",
				sl.Name, len(sl.Elements), len(l.Data.Elements))
		}
		l.Description, l.Units = sl.Description, sl.Units
		copy(l.Data.Elements, sl.Elements)
	}
	return g, nil
}
