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
	"math"

	"github.com/Knetic/govaluate"
	"gonum.org/v1/gonum/floats"
)

// calcFunctions are the functions available to Calc expressions.
var calcFunctions = map[string]govaluate.ExpressionFunction{
	"exp":   unaryFunc("exp", math.Exp),
	"log":   unaryFunc("log", math.Log),
	"sqrt":  unaryFunc("sqrt", math.Sqrt),
	"abs":   unaryFunc("abs", math.Abs),
	"floor": unaryFunc("floor", math.Floor),
	"min": func(args ...interface{}) (interface{}, error) {
		v, err := floatArgs("min", args)
		if err != nil {
			return nil, err
		}
		return floats.Min(v), nil
	},
	"max": func(args ...interface{}) (interface{}, error) {
		v, err := floatArgs("max", args)
		if err != nil {
			return nil, err
		}
		return floats.Max(v), nil
	},
}

func unaryFunc(name string, f func(float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("raster: got %d arguments for function '%s', but needs 1", len(args), name)
		}
		v, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("raster: argument of function '%s' must be a number", name)
		}
		return f(v), nil
	}
}

func floatArgs(name string, args []interface{}) ([]float64, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("raster: function '%s' needs at least 1 argument", name)
	}
	v := make([]float64, len(args))
	for i, a := range args {
		f, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("raster: argument %d of function '%s' must be a number", i, name)
		}
		v[i] = f
	}
	return v, nil
}

// Calc returns a copy of g with a new layer called name whose value in
// each cell is the result of evaluating expression with the values of the
// other layers in that cell. Layer names with spaces or operators can be
// written in square brackets, e.g. "[mean temp] * 2". Boolean results are
// stored as 1 and 0. A cell holds NoData if any layer used by the
// expression holds NoData there.
func Calc(g *Grid, name, expression string) (*Grid, error) {
	const op = "calc"
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, calcFunctions)
	if err != nil {
		return nil, fmt.Errorf("raster: %s: parsing %q: %w", op, expression, err)
	}
	vars := expr.Vars()
	layers := make([]*Layer, len(vars))
	for i, v := range vars {
		if layers[i], err = g.Layer(v); err != nil {
			return nil, fmt.Errorf("raster: %s: %w", op, err)
		}
	}
	o := g.Copy()
	out, err := o.AddLayer(name)
	if err != nil {
		return nil, err
	}
	out.Description = expression
	params := make(map[string]interface{}, len(vars))
cells:
	for i := range out.Data.Elements {
		for j, l := range layers {
			v := l.Data.Elements[i]
			if IsNoData(v) {
				continue cells
			}
			params[vars[j]] = v
		}
		r, err := expr.Evaluate(params)
		if err != nil {
			return nil, fmt.Errorf("raster: %s: evaluating %q: %w", op, expression, err)
		}
		switch v := r.(type) {
		case float64:
			out.Data.Elements[i] = v
		case bool:
			if v {
				out.Data.Elements[i] = 1
			} else {
				out.Data.Elements[i] = 0
			}
		default:
			return nil, fmt.Errorf("raster: %s: expression %q gives %T rather than a number", op, expression, r)
		}
	}
	return o, nil
}
