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
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/spf13/cast"
)

// Feature is a vector geometry with attributes.
type Feature struct {
	geom.Geom
	Attributes map[string]string
}

// Value returns the numeric value of the named attribute.
func (f *Feature) Value(field string) (float64, error) {
	s, ok := f.Attributes[field]
	if !ok {
		return 0, fmt.Errorf("no attribute %q", field)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("attribute %q value %q is not a number", field, s)
	}
	return v, nil
}

// FeatureSet is a collection of features sharing a coordinate reference
// system.
type FeatureSet struct {
	CRS      string
	Features []*Feature
}

// Transform returns a copy of fs with every feature transformed into the
// coordinate reference system crs.
func (fs *FeatureSet) Transform(crs string) (*FeatureSet, error) {
	const op = "transform features"
	if sameCRS(fs.CRS, crs) {
		if _, err := parseCRS(op, crs); err != nil {
			return nil, err
		}
		return fs, nil
	}
	t, err := transformer(op, fs.CRS, crs)
	if err != nil {
		return nil, err
	}
	o := &FeatureSet{CRS: crs, Features: make([]*Feature, len(fs.Features))}
	for i, f := range fs.Features {
		g, err := f.Geom.Transform(t)
		if err != nil {
			return nil, fmt.Errorf("raster: %s: feature %d: %w", op, i, err)
		}
		o.Features[i] = &Feature{Geom: g, Attributes: f.Attributes}
	}
	return o, nil
}

// Polygons returns the polygonal features in fs.
func (fs *FeatureSet) Polygons() []geom.Polygonal {
	var o []geom.Polygonal
	for _, f := range fs.Features {
		if p, ok := f.Geom.(geom.Polygonal); ok {
			o = append(o, p)
		}
	}
	return o
}

// ReadShapefile reads every feature of a shapefile and all of its
// attributes. The coordinate reference system is read from the .prj file
// next to the shapefile.
func ReadShapefile(filename string) (*FeatureSet, error) {
	filename = strings.TrimSuffix(filename, ".shp") + ".shp"
	d, err := shp.NewDecoder(filename)
	if err != nil {
		return nil, fmt.Errorf("raster: opening shapefile %s: %w", filename, err)
	}
	defer d.Close()
	prj, err := os.ReadFile(strings.TrimSuffix(filename, ".shp") + ".prj")
	if err != nil {
		return nil, &UnknownCoordinateSystemError{Op: "read shapefile " + filename, Err: err}
	}
	fs := &FeatureSet{CRS: strings.TrimSpace(string(prj))}
	if _, err := d.SR(); err != nil {
		return nil, &UnknownCoordinateSystemError{Op: "read shapefile " + filename, CRS: fs.CRS, Err: err}
	}
	var names []string
	for _, f := range d.Fields() {
		names = append(names, strings.TrimRight(string(f.Name[:]), "\x00"))
	}
	for {
		g, fields, more := d.DecodeRowFields(names...)
		if !more {
			break
		}
		for k, v := range fields {
			fields[k] = strings.Trim(v, " \x00")
		}
		fs.Features = append(fs.Features, &Feature{Geom: g, Attributes: fields})
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("raster: reading shapefile %s: %w", filename, err)
	}
	return fs, nil
}

// WriteShapefile writes the features in fs to a shapefile, with one
// character field per attribute, and writes the coordinate reference
// system to a .prj file. All features must have the same geometry kind.
func (fs *FeatureSet) WriteShapefile(filename string) error {
	if len(fs.Features) == 0 {
		return fmt.Errorf("raster: writing shapefile %s: no features", filename)
	}
	var t goshp.ShapeType
	switch fs.Features[0].Geom.(type) {
	case geom.Polygonal:
		t = goshp.POLYGON
	case geom.Linear:
		t = goshp.POLYLINE
	case geom.Point:
		t = goshp.POINT
	case geom.MultiPoint:
		t = goshp.MULTIPOINT
	default:
		return fmt.Errorf("raster: writing shapefile %s: unsupported geometry type %T", filename, fs.Features[0].Geom)
	}
	keys := make(map[string]struct{})
	for _, f := range fs.Features {
		for k := range f.Attributes {
			keys[k] = struct{}{}
		}
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	fields := make([]goshp.Field, len(names))
	for i, n := range names {
		fields[i] = goshp.StringField(n, 50)
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	e, err := shp.NewEncoderFromFields(base+".shp", t, fields...)
	if err != nil {
		return fmt.Errorf("raster: creating shapefile %s: %w", filename, err)
	}
	for i, f := range fs.Features {
		vals := make([]interface{}, len(names))
		for j, n := range names {
			vals[j] = f.Attributes[n]
		}
		if err := e.EncodeFields(f.Geom, vals...); err != nil {
			e.Close()
			return fmt.Errorf("raster: writing shapefile %s feature %d: %w", filename, i, err)
		}
	}
	e.Close()
	return writePrj(base, fs.CRS)
}

func writePrj(base, crs string) error {
	f, err := os.Create(base + ".prj")
	if err != nil {
		return fmt.Errorf("raster: creating prj file: %w", err)
	}
	if _, err := fmt.Fprint(f, crs); err != nil {
		f.Close()
		return fmt.Errorf("raster: writing prj file: %w", err)
	}
	return f.Close()
}

// geoJSON is a GeoJSON object: a bare geometry, a Feature, or a
// FeatureCollection.
type geoJSON struct {
	Type       string                 `json:"type"`
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
	Features   []geoJSON              `json:"features"`
}

// ReadGeoJSON reads the features in a GeoJSON document. The document may be
// a bare geometry, a Feature, or a FeatureCollection. GeoJSON coordinates
// are longitude and latitude on the WGS84 datum.
func ReadGeoJSON(r io.Reader) (*FeatureSet, error) {
	const op = "read GeoJSON"
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("raster: %s: %w", op, err)
	}
	var doc geoJSON
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, malformed(op, "%v", err)
	}
	fs := &FeatureSet{CRS: LongLatWGS84}
	add := func(g []byte, props map[string]interface{}) error {
		gg, err := geojson.Decode(g)
		if err != nil {
			return malformed(op, "%v", err)
		}
		attrs := make(map[string]string, len(props))
		for k, v := range props {
			s, err := cast.ToStringE(v)
			if err != nil {
				return malformed(op, "property %q: %v", k, err)
			}
			attrs[k] = s
		}
		fs.Features = append(fs.Features, &Feature{Geom: gg, Attributes: attrs})
		return nil
	}
	switch doc.Type {
	case "FeatureCollection":
		for _, f := range doc.Features {
			if err := add(f.Geometry, f.Properties); err != nil {
				return nil, err
			}
		}
	case "Feature":
		if err := add(doc.Geometry, doc.Properties); err != nil {
			return nil, err
		}
	default:
		if err := add(b, nil); err != nil {
			return nil, err
		}
	}
	return fs, nil
}
