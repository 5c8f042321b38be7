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
	"os"

	"github.com/ctessum/cdf"
)

// DataVersion is the version of the NetCDF grid file layout written by
// WriteNetCDF.
const DataVersion = "1.0.0"

// WriteNetCDF writes g to w as a NetCDF file with dimensions (y, x), where
// y=0 is the northernmost row. The grid geometry is stored in global
// attributes and each layer is stored as a double precision variable with
// its description and units.
func (g *Grid) WriteNetCDF(w *os.File) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Ny, g.Nx})
	h.AddAttribute("", "comment", "gridded data file")
	h.AddAttribute("", "x0", []float64{g.X0})
	h.AddAttribute("", "y0", []float64{g.Y0})
	h.AddAttribute("", "dx", []float64{g.Dx})
	h.AddAttribute("", "dy", []float64{g.Dy})
	h.AddAttribute("", "nx", []int32{int32(g.Nx)})
	h.AddAttribute("", "ny", []int32{int32(g.Ny)})
	h.AddAttribute("", "crs", g.CRS)
	h.AddAttribute("", "row_order", "north_to_south")
	h.AddAttribute("", "data_version", DataVersion)
	for _, l := range g.Layers {
		h.AddVariable(l.Name, []string{"y", "x"}, []float64{0})
		if l.Description != "" {
			h.AddAttribute(l.Name, "description", l.Description)
		}
		if l.Units != "" {
			h.AddAttribute(l.Name, "units", l.Units)
		}
	}
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return fmt.Errorf("raster: creating netcdf file: %w", err)
	}
	for _, l := range g.Layers {
		if err = writeNCF(f, l); err != nil {
			return fmt.Errorf("raster: writing layer %s to netcdf file: %w", l.Name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, l *Layer) error {
	end := f.Header.Lengths(l.Name)
	n := 1
	for _, v := range end {
		n *= v
	}
	if len(l.Data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(l.Data.Elements))
	}
	start := make([]int, len(end))
	_, err := f.Writer(l.Name, start, end).Write(l.Data.Elements)
	return err
}

// ReadNetCDF reads a grid written by WriteNetCDF.
func ReadNetCDF(rw cdf.ReaderWriterAt) (*Grid, error) {
	const op = "read netcdf"
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("raster: %s: %w", op, err)
	}
	h := f.Header
	if v, _ := h.GetAttribute("", "data_version").(string); v != DataVersion {
		return nil, malformed(op, "data version %q is incompatible with the required version %s", v, DataVersion)
	}
	getFloat := func(name string) (float64, error) {
		v, ok := h.GetAttribute("", name).([]float64)
		if !ok || len(v) != 1 {
			return 0, malformed(op, "missing attribute %q", name)
		}
		return v[0], nil
	}
	getInt := func(name string) (int, error) {
		v, ok := h.GetAttribute("", name).([]int32)
		if !ok || len(v) != 1 {
			return 0, malformed(op, "missing attribute %q", name)
		}
		return int(v[0]), nil
	}
	var geo Geometry
	if geo.X0, err = getFloat("x0"); err != nil {
		return nil, err
	}
	if geo.Y0, err = getFloat("y0"); err != nil {
		return nil, err
	}
	if geo.Dx, err = getFloat("dx"); err != nil {
		return nil, err
	}
	if geo.Dy, err = getFloat("dy"); err != nil {
		return nil, err
	}
	if geo.Nx, err = getInt("nx"); err != nil {
		return nil, err
	}
	if geo.Ny, err = getInt("ny"); err != nil {
		return nil, err
	}
	geo.CRS, _ = h.GetAttribute("", "crs").(string)
	g, err := New(geo)
	if err != nil {
		return nil, err
	}
	for _, v := range h.Variables() {
		dims := h.Lengths(v)
		if len(dims) != 2 || dims[0] != geo.Ny || dims[1] != geo.Nx {
			return nil, malformed(op, "variable %s has shape %v rather than [%d %d]", v, dims, geo.Ny, geo.Nx)
		}
		l, err := g.AddLayer(v)
		if err != nil {
			return nil, err
		}
		l.Description, _ = h.GetAttribute(v, "description").(string)
		l.Units, _ = h.GetAttribute(v, "units").(string)
		if _, err := f.Reader(v, nil, nil).Read(l.Data.Elements); err != nil {
			return nil, fmt.Errorf("raster: %s: variable %s: %w", op, v, err)
		}
	}
	return g, nil
}
