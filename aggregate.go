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

import "sort"

// Record is one row of an attribute table relating an identifier, such as
// a species, to a group key, such as a cell identifier, with a secondary
// value, such as a probability of occurrence.
type Record struct {
	ID    string
	Key   float64
	Value float64
}

// CountDistinct returns, for every group key, the number of distinct
// identifiers with at least one record for which keep returns true.
// All records are kept if keep is nil. Keys with no kept records are
// absent from the result.
func CountDistinct(records []Record, keep func(value float64) bool) map[float64]float64 {
	seen := make(map[float64]map[string]struct{})
	for _, r := range records {
		if keep != nil && !keep(r.Value) {
			continue
		}
		ids, ok := seen[r.Key]
		if !ok {
			ids = make(map[string]struct{})
			seen[r.Key] = ids
		}
		ids[r.ID] = struct{}{}
	}
	o := make(map[float64]float64, len(seen))
	for k, ids := range seen {
		o[k] = float64(len(ids))
	}
	return o
}

// AtLeast returns a filter that keeps values greater than or equal to t.
func AtLeast(t float64) func(float64) bool {
	return func(v float64) bool { return v >= t }
}

// Keys returns the keys of m in increasing order.
func Keys(m map[float64]float64) []float64 {
	o := make([]float64, 0, len(m))
	for k := range m {
		o = append(o, k)
	}
	sort.Float64s(o)
	return o
}
