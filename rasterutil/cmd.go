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

	"github.com/lnashier/viper"
	"github.com/spatialmodel/raster"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to the commands.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "verbose",
			usage: `
              verbose specifies whether to print detailed progress messages.`,
			shorthand:  "v",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "input",
			usage: `
              input specifies the input grid file (.nc or .gob). It can be a
              local path or an http(s)://, gs://, s3:// or file:// URL.`,
			shorthand:  "i",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{totableCmd.Flags(), substituteCmd.Flags(), richnessCmd.Flags(),
				reprojectCmd.Flags(), maskCmd.Flags(), cropCmd.Flags(), trimCmd.Flags(), distanceCmd.Flags(),
				calcCmd.Flags(), plotCmd.Flags(), toshpCmd.Flags(), infoCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output specifies the output file. The format is chosen by the
              file extension: .nc, .gob, .csv, .shp, or an image format such
              as .png or .svg. Output to gs://, s3:// and file:// URLs is
              also supported.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{gridCmd.Flags(), fromtableCmd.Flags(), totableCmd.Flags(),
				substituteCmd.Flags(), richnessCmd.Flags(), reprojectCmd.Flags(), rasterizeCmd.Flags(),
				maskCmd.Flags(), cropCmd.Flags(), trimCmd.Flags(), distanceCmd.Flags(), calcCmd.Flags(),
				plotCmd.Flags(), toshpCmd.Flags()},
		},
		{
			name: "layer",
			usage: `
              layer specifies the name of the input layer to use. It can be
              left empty if the input grid has only one layer.`,
			shorthand:  "l",
			defaultVal: "",
			flagsets: []*pflag.FlagSet{totableCmd.Flags(), substituteCmd.Flags(), richnessCmd.Flags(),
				distanceCmd.Flags(), plotCmd.Flags(), infoCmd.Flags()},
		},
		{
			name: "out",
			usage: `
              out specifies the name of the output layer.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fromtableCmd.Flags(), substituteCmd.Flags(), richnessCmd.Flags(), calcCmd.Flags()},
		},
		{
			name: "reference",
			usage: `
              reference specifies a grid file whose geometry (coordinate
              system, origin, resolution and extent) the output should match,
              or which should be used as a mask.`,
			shorthand:  "r",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{reprojectCmd.Flags(), rasterizeCmd.Flags(), maskCmd.Flags(), cropCmd.Flags()},
		},
		{
			name: "vector",
			usage: `
              vector specifies a shapefile (.shp) or GeoJSON (.geojson) file
              of features to rasterize, to use as a mask, or to draw as a
              boundary on a plot.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags(), maskCmd.Flags(), plotCmd.Flags()},
		},
		{
			name: "field",
			usage: `
              field specifies the feature attribute to burn into the grid.
              If empty, the 1-based index of each feature is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{rasterizeCmd.Flags()},
		},
		{
			name: "table",
			usage: `
              table specifies a delimited text file (comma or tab separated,
              with a header row) holding point values, a lookup table, or
              records to count.`,
			shorthand:  "t",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{fromtableCmd.Flags(), substituteCmd.Flags(), richnessCmd.Flags()},
		},
		{
			name: "xcol",
			usage: `
              xcol specifies the table column holding x coordinates.`,
			defaultVal: "x",
			flagsets:   []*pflag.FlagSet{fromtableCmd.Flags()},
		},
		{
			name: "ycol",
			usage: `
              ycol specifies the table column holding y coordinates.`,
			defaultVal: "y",
			flagsets:   []*pflag.FlagSet{fromtableCmd.Flags()},
		},
		{
			name: "zcol",
			usage: `
              zcol specifies the table column holding cell values.`,
			defaultVal: "z",
			flagsets:   []*pflag.FlagSet{fromtableCmd.Flags()},
		},
		{
			name: "idcol",
			usage: `
              idcol specifies the table column holding the identifiers to
              count, for example species names.`,
			defaultVal: "id",
			flagsets:   []*pflag.FlagSet{richnessCmd.Flags()},
		},
		{
			name: "keycol",
			usage: `
              keycol specifies the table column holding cell identifiers.`,
			defaultVal: "key",
			flagsets:   []*pflag.FlagSet{substituteCmd.Flags(), richnessCmd.Flags()},
		},
		{
			name: "valuecol",
			usage: `
              valuecol specifies the table column holding values.`,
			defaultVal: "value",
			flagsets:   []*pflag.FlagSet{substituteCmd.Flags(), richnessCmd.Flags()},
		},
		{
			name: "mapping",
			usage: `
              mapping specifies substitution values as a JSON object mapping
              cell identifiers to values, for example {"1":"0.2","2":"0.8"}.
              It is used when no table is specified.`,
			defaultVal: map[string]string{},
			flagsets:   []*pflag.FlagSet{substituteCmd.Flags()},
		},
		{
			name: "default",
			usage: `
              default specifies the value given to cells whose identifier
              has no substitution value. NA means no data.`,
			defaultVal: "NA",
			flagsets:   []*pflag.FlagSet{substituteCmd.Flags(), richnessCmd.Flags()},
		},
		{
			name: "threshold",
			usage: `
              threshold specifies the minimum value for a record to be counted.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{richnessCmd.Flags()},
		},
		{
			name: "bounds",
			usage: `
              bounds specifies an extent as xmin,ymin,xmax,ymax.`,
			shorthand:  "b",
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), cropCmd.Flags()},
		},
		{
			name: "dx",
			usage: `
              dx specifies the cell width in the units of the coordinate
              system. For reprojection, 0 chooses a resolution that keeps
              about the same number of cells.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), reprojectCmd.Flags()},
		},
		{
			name: "dy",
			usage: `
              dy specifies the cell height in the units of the coordinate
              system. If 0, it is set equal to dx.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), reprojectCmd.Flags()},
		},
		{
			name: "crs",
			usage: `
              crs specifies a coordinate reference system as a PROJ.4 string
              or WKT, for example "+proj=longlat +datum=WGS84 +no_defs".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{gridCmd.Flags(), fromtableCmd.Flags(), reprojectCmd.Flags()},
		},
		{
			name: "layers",
			usage: `
              layers specifies the names of the layers of a new grid.`,
			defaultVal: []string{"value"},
			flagsets:   []*pflag.FlagSet{gridCmd.Flags()},
		},
		{
			name: "method",
			usage: `
              method specifies the resampling method: nearest (for
              categorical data) or bilinear (for continuous data).`,
			shorthand:  "m",
			defaultVal: "nearest",
			flagsets:   []*pflag.FlagSet{reprojectCmd.Flags()},
		},
		{
			name: "nodata",
			usage: `
              nodata specifies how bilinear resampling treats contributing
              cells with no data: exclude drops them and renormalizes the
              weights of the rest; propagate gives no data if any is missing.`,
			defaultVal: "exclude",
			flagsets:   []*pflag.FlagSet{reprojectCmd.Flags()},
		},
		{
			name: "cachedir",
			usage: `
              cachedir specifies a directory where reprojection results are
              stored for reuse. Leave empty to disable the disk cache.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{reprojectCmd.Flags(), runCmd.Flags()},
		},
		{
			name: "masklayer",
			usage: `
              masklayer specifies the layer of the reference grid to use as
              a mask. If empty, the first layer is used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{maskCmd.Flags()},
		},
		{
			name: "meters",
			usage: `
              meters specifies whether distances should be converted to
              meters.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{distanceCmd.Flags()},
		},
		{
			name: "expression",
			usage: `
              expression specifies a formula over layer names, for example
              "richness * [land cover] / 2". Layer names containing spaces
              or operators must be surrounded by brackets.`,
			shorthand:  "e",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{calcCmd.Flags()},
		},
		{
			name: "title",
			usage: `
              title specifies the plot title.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{plotCmd.Flags()},
		},
		{
			name: "includenodata",
			usage: `
              includenodata specifies whether cells with no data should be
              included in the output.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{totableCmd.Flags(), toshpCmd.Flags()},
		},
		{
			name: "pipeline",
			usage: `
              pipeline specifies the TOML file describing the stages to run.`,
			shorthand:  "p",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("RASTER")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(v)
				set.StringP(option.name, option.shorthand, strings.TrimSpace(b.String()), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

// commands holds every command in the tree.
var commands []*cobra.Command

func init() {
	// Link the commands together.
	commands = []*cobra.Command{versionCmd, gridCmd, fromtableCmd, totableCmd, substituteCmd,
		richnessCmd, reprojectCmd, rasterizeCmd, maskCmd, cropCmd, trimCmd, distanceCmd,
		calcCmd, plotCmd, toshpCmd, infoCmd, runCmd}
	for _, cmd := range commands {
		Root.AddCommand(cmd)
	}
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("rasterutil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "raster",
	Short: "Create, reproject, rasterize and analyze gridded data.",
	Long: `raster creates gridded (raster) data from tables or explicit parameters,
substitutes cell values, reprojects grids between coordinate systems,
rasterizes vector features, masks, crops and trims grids, computes distance
transforms, and plots the results. Use the subcommands specified below to
access the functionality, or 'raster run' to run a full pipeline described
in a TOML file.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'RASTER_var' where 'var' is
the name of the variable to be set. File paths are additionally allowed to
contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error {
		if err := setConfig(); err != nil {
			return err
		}
		setVerbose(Cfg.GetBool("verbose"))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of raster.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("raster v%s\n", raster.Version)
	},
	DisableAutoGenTag: true,
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Create an empty grid",
	Long: `grid creates a grid covering the given bounds at the given resolution
and coordinate system. All cells hold no data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("grid")
	},
	DisableAutoGenTag: true,
}

var fromtableCmd = &cobra.Command{
	Use:   "fromtable",
	Short: "Create a grid from a table of points",
	Long: `fromtable creates a grid from a table of x, y and value columns
where each row is the center of a cell. The resolution is inferred from
the spacing of the points.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("table")
	},
	DisableAutoGenTag: true,
}

var totableCmd = &cobra.Command{
	Use:   "totable",
	Short: "Convert a grid to a table of points",
	Long: `totable writes the cell centers and values of one layer of a grid to
a delimited text file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ext := strings.ToLower(filepath.Ext(Cfg.GetString("output"))); ext != ".csv" && ext != ".txt" {
			return fmt.Errorf("rasterutil: totable output must be a .csv or .txt file")
		}
		return runStage("export")
	},
	DisableAutoGenTag: true,
}

var substituteCmd = &cobra.Command{
	Use:   "substitute",
	Short: "Replace cell identifiers with values",
	Long: `substitute replaces each cell identifier with the value given for it
in a lookup table or mapping. Cells whose identifier has no value are set
to the default.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("substitute")
	},
	DisableAutoGenTag: true,
}

var richnessCmd = &cobra.Command{
	Use:   "richness",
	Short: "Count distinct identifiers per cell",
	Long: `richness counts, for each cell identifier in a table of records, the
number of distinct identifiers (for example species) whose value (for
example probability of occurrence) is at least the threshold, and
substitutes the counts into the input grid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("richness")
	},
	DisableAutoGenTag: true,
}

var reprojectCmd = &cobra.Command{
	Use:   "reproject",
	Short: "Resample a grid to a new geometry",
	Long: `reproject resamples a grid onto the geometry of a reference grid, or
onto a new coordinate system and resolution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("reproject")
	},
	DisableAutoGenTag: true,
}

var rasterizeCmd = &cobra.Command{
	Use:   "rasterize",
	Short: "Burn vector features into a grid",
	Long: `rasterize creates a grid with the geometry of a reference grid where
each cell holds the field value of the polygon covering its center, or of
the nearest line or point within it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("rasterize")
	},
	DisableAutoGenTag: true,
}

var maskCmd = &cobra.Command{
	Use:   "mask",
	Short: "Mask a grid",
	Long: `mask sets to no data the cells of a grid where a reference grid has no
data, or whose centers lie outside the polygons of a vector file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("mask")
	},
	DisableAutoGenTag: true,
}

var cropCmd = &cobra.Command{
	Use:   "crop",
	Short: "Crop a grid",
	Long: `crop restricts a grid to the cells that overlap a reference grid or a
bounding box. A reference grid must be aligned with the input grid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("crop")
	},
	DisableAutoGenTag: true,
}

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Remove empty edges of a grid",
	Long: `trim shrinks a grid to the smallest extent holding all of the cells
that have data.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("trim")
	},
	DisableAutoGenTag: true,
}

var distanceCmd = &cobra.Command{
	Use:   "distance",
	Short: "Calculate distance to the nearest cell with data",
	Long: `distance calculates, for every cell, the distance to the center of the
nearest cell that has data. Distances are in the units of the coordinate
system, or in meters on request; on longitude-latitude grids they are
great-circle distances in meters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("distance")
	},
	DisableAutoGenTag: true,
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Calculate a new layer from an expression",
	Long: `calc adds a layer computed for every cell from an expression over the
other layers of the grid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("calc")
	},
	DisableAutoGenTag: true,
}

var plotCmd = &cobra.Command{
	Use:   "plot",
	Short: "Plot a grid layer",
	Long: `plot draws one layer of a grid as a heat map, optionally with the
outlines of vector features drawn on top.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("plot")
	},
	DisableAutoGenTag: true,
}

var toshpCmd = &cobra.Command{
	Use:   "toshp",
	Short: "Convert a grid to a shapefile",
	Long: `toshp writes the cells of a grid to a shapefile as polygons with one
attribute per layer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.ToLower(filepath.Ext(Cfg.GetString("output"))) != ".shp" {
			return fmt.Errorf("rasterutil: toshp output must be a .shp file")
		}
		return runStage("export")
	},
	DisableAutoGenTag: true,
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print information about a grid",
	Long: `info prints the geometry of a grid and a summary of each of its layers
(or of the selected layer).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newSession(context.Background())
		defer s.discard()
		g, err := s.readGrid(Cfg.GetString("input"))
		if err != nil {
			return err
		}
		cmd.Println(g.Geometry)
		names := g.LayerNames()
		if l := Cfg.GetString("layer"); l != "" {
			names = []string{l}
		}
		for _, name := range names {
			sum, err := g.Summary(name)
			if err != nil {
				return err
			}
			cmd.Println(sum)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline",
	Long: `run runs the sequence of stages described in a TOML pipeline file.
Each stage reads files or the results of earlier stages and may write its
result to a file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s := newSession(ctx)
		defer s.discard()
		loc, err := s.input(Cfg.GetString("pipeline"))
		if err != nil {
			return err
		}
		f, err := os.Open(loc)
		if err != nil {
			return fmt.Errorf("rasterutil: opening pipeline file: %w", err)
		}
		p, err := ReadPipeline(f)
		f.Close()
		if err != nil {
			return err
		}
		if d := Cfg.GetString("cachedir"); d != "" {
			p.CacheDir = d
		}
		_, err = p.Run(ctx)
		return err
	},
	DisableAutoGenTag: true,
}

// runStage runs a single pipeline stage of the given type configured
// from Cfg.
func runStage(typ string) error {
	s, err := stageFromConfig(typ)
	if err != nil {
		return err
	}
	if s.Output == "" {
		return fmt.Errorf("rasterutil: you need to specify an output file (for example: --output=out.nc)")
	}
	p := &Pipeline{CacheDir: Cfg.GetString("cachedir"), Stage: []Stage{s}}
	_, err = p.Run(context.Background())
	return err
}

// stageFromConfig creates a pipeline stage from the configuration.
func stageFromConfig(typ string) (Stage, error) {
	s := Stage{
		Name:          typ,
		Type:          typ,
		Input:         Cfg.GetString("input"),
		Reference:     Cfg.GetString("reference"),
		Vector:        Cfg.GetString("vector"),
		Table:         Cfg.GetString("table"),
		Output:        Cfg.GetString("output"),
		Layer:         Cfg.GetString("layer"),
		MaskLayer:     Cfg.GetString("masklayer"),
		Out:           Cfg.GetString("out"),
		Field:         Cfg.GetString("field"),
		XCol:          Cfg.GetString("xcol"),
		YCol:          Cfg.GetString("ycol"),
		ZCol:          Cfg.GetString("zcol"),
		IDCol:         Cfg.GetString("idcol"),
		KeyCol:        Cfg.GetString("keycol"),
		ValueCol:      Cfg.GetString("valuecol"),
		Dx:            Cfg.GetFloat64("dx"),
		Dy:            Cfg.GetFloat64("dy"),
		CRS:           Cfg.GetString("crs"),
		Layers:        expandStringSlice(Cfg.GetStringSlice("layers")),
		Default:       Cfg.GetString("default"),
		Threshold:     Cfg.GetFloat64("threshold"),
		Method:        Cfg.GetString("method"),
		NoData:        Cfg.GetString("nodata"),
		Meters:        Cfg.GetBool("meters"),
		Expression:    Cfg.GetString("expression"),
		Title:         Cfg.GetString("title"),
		IncludeNoData: Cfg.GetBool("includenodata"),
	}
	var err error
	if s.Mapping, err = GetStringMapString("mapping", Cfg); err != nil {
		return s, err
	}
	if b := Cfg.GetStringSlice("bounds"); len(b) > 0 {
		if s.Bounds, err = parseFloats(b); err != nil {
			return s, err
		}
	}
	return s, nil
}
