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
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/ctessum/requestcache"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/raster"
	"github.com/spatialmodel/raster/internal/hash"
)

// reprojectRequest holds the inputs of one reprojection.
type reprojectRequest struct {
	src    *raster.Grid
	target raster.Geometry
	opts   raster.ReprojectOptions
}

// Reprojector reprojects grids, reusing earlier results when the same
// source grid is reprojected onto the same target more than once.
type Reprojector struct {
	cache *requestcache.Cache
}

// NewReprojector creates a new Reprojector. If cacheDir is not empty,
// results are also stored in that directory so that they can be reused
// by later runs.
func NewReprojector(cacheDir string, memEntries int) (*Reprojector, error) {
	cacheFuncs := []requestcache.CacheFunc{requestcache.Deduplicate(), requestcache.Memory(memEntries)}
	if cacheDir != "" {
		cacheDir = os.ExpandEnv(cacheDir)
		if err := os.MkdirAll(cacheDir, os.ModePerm); err != nil {
			return nil, fmt.Errorf("rasterutil: creating cache directory: %w", err)
		}
		cacheFuncs = append(cacheFuncs, requestcache.Disk(cacheDir, marshalGrid, unmarshalGrid))
	}
	return &Reprojector{
		cache: requestcache.NewCache(reprojectWorker, runtime.GOMAXPROCS(-1), cacheFuncs...),
	}, nil
}

// Reproject returns src resampled onto target.
func (r *Reprojector) Reproject(ctx context.Context, src *raster.Grid, target raster.Geometry, opts raster.ReprojectOptions) (*raster.Grid, error) {
	key := "reproject_" + hash.Hash(src, target, opts)
	req := r.cache.NewRequest(ctx, reprojectRequest{src: src, target: target, opts: opts}, key)
	res, err := req.Result()
	if err != nil {
		return nil, err
	}
	return res.(*raster.Grid), nil
}

func reprojectWorker(ctx context.Context, request interface{}) (interface{}, error) {
	req := request.(reprojectRequest)
	Log.WithFields(logrus.Fields{
		"from":   req.src.CRS,
		"to":     req.target.CRS,
		"method": req.opts.Method,
	}).Info("reprojecting grid")
	return raster.Reproject(req.src, req.target, req.opts)
}

// marshalGrid stores a grid in the disk cache.
func marshalGrid(data interface{}) ([]byte, error) {
	i := data.(*interface{})
	g, ok := (*i).(*raster.Grid)
	if !ok {
		return nil, fmt.Errorf("rasterutil: cannot cache %T", *i)
	}
	b := new(bytes.Buffer)
	if err := g.Save(b); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// unmarshalGrid loads a grid from the disk cache.
func unmarshalGrid(b []byte) (interface{}, error) {
	return raster.Load(bytes.NewReader(b))
}

