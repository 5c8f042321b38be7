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
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/raster"
)

// session manages the input and output files of one command or pipeline
// run: remote inputs are downloaded and blob storage outputs are uploaded
// when the session is closed.
type session struct {
	ctx context.Context
	up  uploader

	// downloads are the temporary directories holding downloaded inputs.
	downloads []string
}

func newSession(ctx context.Context) *session {
	return &session{ctx: ctx}
}

// input returns a local path for the input file at loc.
func (s *session) input(loc string) (string, error) {
	if loc == "" {
		return "", fmt.Errorf("rasterutil: input file is not specified")
	}
	loc = os.ExpandEnv(loc)
	p, err := maybeDownload(s.ctx, loc)
	if err != nil {
		return "", err
	}
	if p != loc {
		s.downloads = append(s.downloads, filepath.Dir(p))
	}
	return p, nil
}

// output returns a local path where the output file destined for loc
// should be written.
func (s *session) output(loc string) (string, error) {
	loc, err := checkOutputFile(s.ctx, loc)
	if err != nil {
		return "", err
	}
	return s.up.maybeUpload(loc)
}

// close uploads any outputs destined for blob storage and removes
// downloaded inputs.
func (s *session) close() error {
	err := s.up.upload(s.ctx)
	if derr := s.removeDownloads(); err == nil {
		err = derr
	}
	return err
}

// discard removes downloaded inputs and outputs that have not been
// uploaded, without uploading them.
func (s *session) discard() error {
	err := s.up.discard()
	if derr := s.removeDownloads(); err == nil {
		err = derr
	}
	return err
}

func (s *session) removeDownloads() error {
	for _, d := range s.downloads {
		if err := os.RemoveAll(d); err != nil {
			return fmt.Errorf("rasterutil: removing downloaded files: %w", err)
		}
	}
	s.downloads = nil
	return nil
}

// readGrid reads a grid from a NetCDF (.nc, .ncf) or gob (.gob) file.
func (s *session) readGrid(loc string) (*raster.Grid, error) {
	p, err := s.input(loc)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("rasterutil: opening grid: %w", err)
	}
	defer f.Close()
	var g *raster.Grid
	switch strings.ToLower(filepath.Ext(p)) {
	case ".nc", ".ncf", ".cdf":
		g, err = raster.ReadNetCDF(f)
	case ".gob":
		g, err = raster.Load(f)
	default:
		return nil, fmt.Errorf("rasterutil: unsupported grid file format %q; use .nc or .gob", loc)
	}
	if err != nil {
		return nil, err
	}
	Log.WithFields(logrus.Fields{
		"file":   loc,
		"nx":     g.Nx,
		"ny":     g.Ny,
		"layers": g.LayerNames(),
	}).Debug("read grid")
	return g, nil
}

// writeGrid writes g to loc in the format given by the file extension:
// NetCDF (.nc, .ncf), gob (.gob), delimited text (.csv, .txt), shapefile
// (.shp), or an image (.png, .svg, .pdf, .jpg, .eps). Text and image
// outputs hold a single layer, chosen by name if g has more than one.
// includeNoData specifies whether text and shapefile outputs include
// cells that hold no data.
func (s *session) writeGrid(g *raster.Grid, loc, layer string, includeNoData bool) error {
	ext := strings.ToLower(filepath.Ext(loc))
	switch ext {
	case ".shp", ".png", ".svg", ".pdf", ".jpg", ".jpeg", ".eps",
		".nc", ".ncf", ".cdf", ".gob", ".csv", ".txt":
	default:
		return fmt.Errorf("rasterutil: unsupported output file format %q", loc)
	}
	p, err := s.output(loc)
	if err != nil {
		return err
	}
	switch ext {
	case ".shp":
		err = g.WriteShapefile(p, includeNoData)
	case ".png", ".svg", ".pdf", ".jpg", ".jpeg", ".eps":
		err = g.Plot(layer, p, raster.PlotOptions{})
	case ".nc", ".ncf", ".cdf", ".gob", ".csv", ".txt":
		var f *os.File
		if f, err = os.Create(p); err != nil {
			return fmt.Errorf("rasterutil: creating output file: %w", err)
		}
		switch ext {
		case ".gob":
			err = g.Save(f)
		case ".csv", ".txt":
			err = writeTable(f, g, layer, includeNoData)
		default:
			err = g.WriteNetCDF(f)
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}
	Log.WithFields(logrus.Fields{"file": loc, "nx": g.Nx, "ny": g.Ny}).Info("wrote grid")
	return nil
}

func writeTable(f *os.File, g *raster.Grid, layer string, includeNoData bool) error {
	l, err := g.Layer(layer)
	if err != nil {
		return err
	}
	xyz, err := g.XYZ(l.Name, includeNoData)
	if err != nil {
		return err
	}
	return raster.WriteXYZ(f, xyz, l.Name)
}

// readFeatures reads a vector feature set from a shapefile (.shp) or a
// GeoJSON (.json, .geojson) file.
func (s *session) readFeatures(loc string) (*raster.FeatureSet, error) {
	p, err := s.input(loc)
	if err != nil {
		return nil, err
	}
	var fs *raster.FeatureSet
	switch strings.ToLower(filepath.Ext(p)) {
	case ".shp":
		fs, err = raster.ReadShapefile(p)
	case ".json", ".geojson":
		var f *os.File
		if f, err = os.Open(p); err != nil {
			return nil, fmt.Errorf("rasterutil: opening vector file: %w", err)
		}
		fs, err = raster.ReadGeoJSON(f)
		f.Close()
	default:
		return nil, fmt.Errorf("rasterutil: unsupported vector file format %q; use .shp or .geojson", loc)
	}
	if err != nil {
		return nil, err
	}
	Log.WithFields(logrus.Fields{"file": loc, "features": len(fs.Features)}).Debug("read features")
	return fs, nil
}

// readTable opens a delimited text input file and passes it to read.
func (s *session) readTable(loc string, read func(f *os.File) error) error {
	p, err := s.input(loc)
	if err != nil {
		return err
	}
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("rasterutil: opening table: %w", err)
	}
	defer f.Close()
	return read(f)
}
