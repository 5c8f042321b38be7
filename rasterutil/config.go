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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/raster"
	"github.com/spf13/cast"
)

// expandStringSlice expands environment variables in the members of s.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory (or storage bucket) exists, and expands any environment variables.
func checkOutputFile(ctx context.Context, f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`rasterutil: you need to specify an output file (for example: --output="out.nc")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) {
		b, _, err := OpenBlob(ctx, f)
		if err != nil {
			return f, fmt.Errorf("rasterutil: checking output location: %w", err)
		}
		return f, b.Close()
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("rasterutil: the output directory doesn't exist: %w", err)
	}
	return f, nil
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return map[string]string{}, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if v == "" {
			return o, nil
		}
		d := json.NewDecoder(bytes.NewBufferString(v))
		if err := d.Decode(&o); err != nil {
			return nil, fmt.Errorf("rasterutil: parsing %s: %w", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("rasterutil: invalid type for %s: %#v", varName, i)
	}
}

// floatMap converts a string mapping such as {"1": "0.2"} into numbers.
func floatMap(m map[string]string) (map[float64]float64, error) {
	o := make(map[float64]float64, len(m))
	for k, v := range m {
		kf, err := cast.ToFloat64E(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("rasterutil: invalid mapping key %q: %w", k, err)
		}
		vf, err := parseNumber(v)
		if err != nil {
			return nil, fmt.Errorf("rasterutil: invalid mapping value %q: %w", v, err)
		}
		o[kf] = vf
	}
	return o, nil
}

// parseNumber parses a number, treating NA and NaN as missing data.
func parseNumber(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "na", "nan", "nodata", "":
		return raster.NoData, nil
	}
	return cast.ToFloat64E(strings.TrimSpace(s))
}

// parseFloats parses a list of numbers.
func parseFloats(s []string) ([]float64, error) {
	v := make([]float64, len(s))
	for i, x := range s {
		f, err := cast.ToFloat64E(strings.TrimSpace(x))
		if err != nil {
			return nil, fmt.Errorf("rasterutil: invalid number %q: %w", x, err)
		}
		v[i] = f
	}
	return v, nil
}

// bounds converts [xmin, ymin, xmax, ymax] to a bounding box.
func bounds(v []float64) (*geom.Bounds, error) {
	if len(v) != 4 {
		return nil, fmt.Errorf("rasterutil: bounds must have 4 members (xmin, ymin, xmax, ymax) but has %d", len(v))
	}
	if v[2] <= v[0] || v[3] <= v[1] {
		return nil, fmt.Errorf("rasterutil: bounds %v are empty", v)
	}
	return &geom.Bounds{Min: geom.Point{X: v[0], Y: v[1]}, Max: geom.Point{X: v[2], Y: v[3]}}, nil
}
