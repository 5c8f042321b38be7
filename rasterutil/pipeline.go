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
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/raster"
)

// Pipeline is a sequence of processing stages read from a TOML file.
// Each stage reads its inputs either from files or from the results of
// earlier stages, referred to by stage name.
type Pipeline struct {
	// CacheDir, if set, is where reprojection results are stored for
	// reuse by later runs.
	CacheDir string

	Stage []Stage
}

// Stage is one step of a Pipeline. Type selects the operation; which of
// the other fields are used depends on the type:
//
//	grid        Bounds, Dx, Dy (default Dx), CRS, Layers
//	table       Table, XCol, YCol, ZCol, CRS, Out
//	substitute  Input, Layer, Out, Mapping or (Table, KeyCol, ValueCol), Default
//	richness    Input, Layer, Out, Table, IDCol, KeyCol, ValueCol, Threshold, Default
//	reproject   Input, Reference or (CRS, Dx, Dy), Method, NoData
//	rasterize   Vector, Reference, Field
//	mask        Input, Reference and MaskLayer, or Vector
//	crop        Input, Reference or Bounds
//	trim        Input
//	distance    Input, Layer, Meters
//	calc        Input, Out, Expression
//	plot        Input, Layer, Vector (boundary), Title, Output
//	export      Input, Layer, Output, IncludeNoData
//
// Any stage other than plot also writes its result to Output if set.
type Stage struct {
	Name string
	Type string

	Input     string
	Reference string
	Vector    string
	Table     string
	Output    string

	Layer     string
	MaskLayer string
	Out       string
	Field     string

	XCol, YCol, ZCol        string
	IDCol, KeyCol, ValueCol string

	Bounds []float64
	Dx, Dy float64
	CRS    string
	Layers []string

	Mapping   map[string]string
	Default   string
	Threshold float64

	Method string
	NoData string

	Meters        bool
	Expression    string
	Title         string
	IncludeNoData bool
}

// ReadPipeline reads a pipeline from TOML.
func ReadPipeline(r io.Reader) (*Pipeline, error) {
	p := new(Pipeline)
	md, err := toml.DecodeReader(r, p)
	if err != nil {
		return nil, fmt.Errorf("rasterutil: reading pipeline: %w", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		return nil, fmt.Errorf("rasterutil: unknown pipeline configuration keys %v", u)
	}
	expandEnv(reflect.ValueOf(p).Elem())
	names := make(map[string]bool)
	for i := range p.Stage {
		s := &p.Stage[i]
		s.Type = strings.ToLower(s.Type)
		if s.Name == "" {
			s.Name = fmt.Sprintf("%s%d", s.Type, i)
		}
		if names[s.Name] {
			return nil, fmt.Errorf("rasterutil: duplicate pipeline stage name %q", s.Name)
		}
		names[s.Name] = true
	}
	return p, nil
}

// expandEnv expands environment variables in all of the settable string
// fields of v.
func expandEnv(v reflect.Value) {
	if !v.CanSet() {
		return
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(os.ExpandEnv(v.String()))
	case reflect.Array, reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandEnv(v.Index(i))
		}
	case reflect.Ptr:
		expandEnv(v.Elem())
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandEnv(v.Field(i))
		}
	}
}

// runner holds the results of the stages that have run so far.
type runner struct {
	s     *session
	rp    *Reprojector
	grids map[string]*raster.Grid
}

// Run runs the stages in order, stopping at the first error. It returns
// the result of each stage, keyed by stage name.
func (p *Pipeline) Run(ctx context.Context) (map[string]*raster.Grid, error) {
	rp, err := NewReprojector(p.CacheDir, len(p.Stage)+1)
	if err != nil {
		return nil, err
	}
	r := &runner{
		s:     newSession(ctx),
		rp:    rp,
		grids: make(map[string]*raster.Grid),
	}
	for i, s := range p.Stage {
		if err := r.step(i, len(p.Stage), s); err != nil {
			r.s.discard()
			return nil, fmt.Errorf("rasterutil: stage %q: %w", s.Name, err)
		}
	}
	if err := r.s.close(); err != nil {
		return nil, err
	}
	return r.grids, nil
}

// step runs stage s, the ith of n, and writes its result.
func (r *runner) step(i, n int, s Stage) error {
	log := Log.WithFields(logrus.Fields{"stage": s.Name, "type": s.Type})
	log.Infof("running stage %d of %d", i+1, n)
	g, err := r.run(s)
	if err != nil || g == nil {
		return err
	}
	r.grids[s.Name] = g
	log.WithFields(logrus.Fields{"nx": g.Nx, "ny": g.Ny, "layers": g.LayerNames()}).Debug("stage finished")
	if s.Output != "" && s.Type != "plot" {
		return r.s.writeGrid(g, s.Output, s.Layer, s.IncludeNoData)
	}
	return nil
}

func (r *runner) run(s Stage) (*raster.Grid, error) {
	if s.Dy == 0 {
		s.Dy = s.Dx
	}
	switch s.Type {
	case "grid":
		b, err := bounds(s.Bounds)
		if err != nil {
			return nil, err
		}
		return raster.NewFromExtent(b, s.Dx, s.Dy, s.CRS, s.Layers...)
	case "table":
		var points []raster.XYZ
		err := r.s.readTable(s.Table, func(f *os.File) error {
			var err error
			points, err = raster.ReadXYZ(f, or(s.XCol, "x"), or(s.YCol, "y"), or(s.ZCol, "z"))
			return err
		})
		if err != nil {
			return nil, err
		}
		return raster.FromXYZ(points, s.CRS, or(s.Out, or(s.ZCol, "z")))
	case "substitute":
		return r.substitute(s)
	case "richness":
		return r.richness(s)
	case "reproject":
		return r.reproject(s)
	case "rasterize":
		ref, err := r.grid(s.Reference)
		if err != nil {
			return nil, err
		}
		fs, err := r.s.readFeatures(s.Vector)
		if err != nil {
			return nil, err
		}
		return raster.Rasterize(fs, ref.Geometry, s.Field)
	case "mask":
		g, err := r.grid(s.Input)
		if err != nil {
			return nil, err
		}
		if s.Vector != "" {
			fs, err := r.s.readFeatures(s.Vector)
			if err != nil {
				return nil, err
			}
			return raster.MaskFeatures(g, fs)
		}
		m, err := r.grid(s.Reference)
		if err != nil {
			return nil, err
		}
		return raster.Mask(g, m, s.MaskLayer)
	case "crop":
		g, err := r.grid(s.Input)
		if err != nil {
			return nil, err
		}
		if len(s.Bounds) > 0 {
			b, err := bounds(s.Bounds)
			if err != nil {
				return nil, err
			}
			return raster.CropBounds(g, b)
		}
		ref, err := r.grid(s.Reference)
		if err != nil {
			return nil, err
		}
		return raster.Crop(g, ref.Geometry)
	case "trim":
		g, err := r.grid(s.Input)
		if err != nil {
			return nil, err
		}
		return raster.Trim(g)
	case "distance":
		g, err := r.grid(s.Input)
		if err != nil {
			return nil, err
		}
		return raster.Distance(g, s.Layer, raster.DistanceOptions{Meters: s.Meters})
	case "calc":
		g, err := r.grid(s.Input)
		if err != nil {
			return nil, err
		}
		return raster.Calc(g, s.Out, s.Expression)
	case "plot":
		return nil, r.plot(s)
	case "export":
		if s.Output == "" {
			return nil, fmt.Errorf("export stage needs an Output")
		}
		return r.grid(s.Input)
	default:
		return nil, fmt.Errorf("unknown stage type %q", s.Type)
	}
}

// grid returns the result of the stage with the given name, or else reads
// the grid from the file at loc.
func (r *runner) grid(loc string) (*raster.Grid, error) {
	if g, ok := r.grids[loc]; ok {
		return g, nil
	}
	return r.s.readGrid(loc)
}

// lookup returns the substitution table of a stage, given either inline
// or as a two-column table file.
func (r *runner) lookup(s Stage) (map[float64]float64, error) {
	if s.Table == "" {
		return floatMap(s.Mapping)
	}
	var m map[float64]float64
	err := r.s.readTable(s.Table, func(f *os.File) error {
		var err error
		m, err = raster.ReadLookup(f, or(s.KeyCol, "key"), or(s.ValueCol, "value"))
		return err
	})
	return m, err
}

func (r *runner) substitute(s Stage) (*raster.Grid, error) {
	g, err := r.grid(s.Input)
	if err != nil {
		return nil, err
	}
	m, err := r.lookup(s)
	if err != nil {
		return nil, err
	}
	def, err := parseNumber(s.Default)
	if err != nil {
		return nil, fmt.Errorf("invalid Default: %w", err)
	}
	return raster.Substitute(g, s.Layer, s.Out, m, def)
}

// richness counts, for each key, the distinct identifiers whose value is
// at least Threshold, and substitutes the counts into the input grid.
func (r *runner) richness(s Stage) (*raster.Grid, error) {
	g, err := r.grid(s.Input)
	if err != nil {
		return nil, err
	}
	var recs []raster.Record
	err = r.s.readTable(s.Table, func(f *os.File) error {
		var err error
		recs, err = raster.ReadRecords(f, or(s.IDCol, "id"), or(s.KeyCol, "key"), or(s.ValueCol, "value"))
		return err
	})
	if err != nil {
		return nil, err
	}
	counts := raster.CountDistinct(recs, raster.AtLeast(s.Threshold))
	Log.WithFields(logrus.Fields{"stage": s.Name, "records": len(recs), "keys": len(counts)}).Debug("counted distinct identifiers")
	def, err := parseNumber(s.Default)
	if err != nil {
		return nil, fmt.Errorf("invalid Default: %w", err)
	}
	return raster.Substitute(g, s.Layer, or(s.Out, "richness"), counts, def)
}

func (r *runner) reproject(s Stage) (*raster.Grid, error) {
	g, err := r.grid(s.Input)
	if err != nil {
		return nil, err
	}
	var opts raster.ReprojectOptions
	if opts.Method, err = raster.ParseResampling(s.Method); err != nil {
		return nil, err
	}
	if opts.NoData, err = raster.ParseNoDataPolicy(s.NoData); err != nil {
		return nil, err
	}
	var target raster.Geometry
	if s.Reference != "" {
		ref, err := r.grid(s.Reference)
		if err != nil {
			return nil, err
		}
		target = ref.Geometry
	} else {
		if s.CRS == "" {
			return nil, fmt.Errorf("reproject stage needs a Reference or a CRS")
		}
		if target, err = raster.ProjectGeometry(g.Geometry, s.CRS, s.Dx, s.Dy); err != nil {
			return nil, err
		}
	}
	return r.rp.Reproject(r.s.ctx, g, target, opts)
}

func (r *runner) plot(s Stage) error {
	g, err := r.grid(s.Input)
	if err != nil {
		return err
	}
	opts := raster.PlotOptions{Title: s.Title}
	if s.Vector != "" {
		if opts.Boundary, err = r.s.readFeatures(s.Vector); err != nil {
			return err
		}
	}
	out, err := r.s.output(s.Output)
	if err != nil {
		return err
	}
	return g.Plot(s.Layer, out, opts)
}

// or returns s, or def if s is empty.
func or(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
