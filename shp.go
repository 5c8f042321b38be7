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
	"path/filepath"
	"strings"

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// WriteShapefile writes every cell of g as a polygon to a shapefile with
// integer row and col fields and one numeric field per layer, and writes
// the coordinate reference system to a .prj file. Cells where every layer
// holds NoData are skipped unless includeNoData is true. Shapefile field
// names are limited to 10 characters, so longer layer names are truncated.
func (g *Grid) WriteShapefile(filename string, includeNoData bool) error {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(base + ext)
	}
	fields := make([]goshp.Field, 2+len(g.Layers))
	fields[0] = goshp.NumberField("row", 10)
	fields[1] = goshp.NumberField("col", 10)
	for i, l := range g.Layers {
		fields[i+2] = goshp.FloatField(l.Name, 24, 8)
	}
	e, err := shp.NewEncoderFromFields(base+".shp", goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("raster: creating shapefile %s: %w", filename, err)
	}
	data := make([]interface{}, len(fields))
	for row := 0; row < g.Ny; row++ {
		for col := 0; col < g.Nx; col++ {
			valid := false
			data[0], data[1] = row, col
			for i, l := range g.Layers {
				v := l.Get(row, col)
				valid = valid || !IsNoData(v)
				data[i+2] = v
			}
			if !valid && !includeNoData {
				continue
			}
			if err = e.EncodeFields(g.CellPolygon(row, col), data...); err != nil {
				e.Close()
				return fmt.Errorf("raster: writing shapefile %s: %w", filename, err)
			}
		}
	}
	e.Close()
	return writePrj(base, g.CRS)
}
