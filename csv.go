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
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// table is a delimited text table with a header row.
type table struct {
	header map[string]int
	rows   [][]string
}

// readTable reads comma or tab delimited text. Tabs are used if the header
// row contains a tab but no comma.
func readTable(op string, r io.Reader) (*table, error) {
	br := bufio.NewReader(r)
	first, err := br.Peek(br.Size())
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("raster: %s: %w", op, err)
	}
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	cr := csv.NewReader(br)
	if bytes.IndexByte(first, '\t') >= 0 && bytes.IndexByte(first, ',') < 0 {
		cr.Comma = '\t'
	}
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, malformed(op, "%v", err)
	}
	if len(recs) == 0 {
		return nil, malformed(op, "no header row")
	}
	t := &table{header: make(map[string]int), rows: recs[1:]}
	for i, h := range recs[0] {
		t.header[strings.TrimSpace(h)] = i
	}
	return t, nil
}

// columns returns the indices of the named columns.
func (t *table) columns(op string, names ...string) ([]int, error) {
	o := make([]int, len(names))
	for i, n := range names {
		j, ok := t.header[n]
		if !ok {
			return nil, malformed(op, "missing column %q", n)
		}
		o[i] = j
	}
	return o, nil
}

// parseValue parses a number, where an empty field or NA means NoData.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "NAN", "NULL":
		return NoData, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ReadXYZ reads cell center coordinates and values from the named columns
// of delimited text with a header row. Empty and NA values are NoData.
func ReadXYZ(r io.Reader, xCol, yCol, zCol string) ([]XYZ, error) {
	const op = "read table"
	t, err := readTable(op, r)
	if err != nil {
		return nil, err
	}
	cols, err := t.columns(op, xCol, yCol, zCol)
	if err != nil {
		return nil, err
	}
	o := make([]XYZ, len(t.rows))
	for i, row := range t.rows {
		x, err := strconv.ParseFloat(strings.TrimSpace(row[cols[0]]), 64)
		if err != nil {
			return nil, malformed(op, "row %d: invalid x coordinate %q", i+2, row[cols[0]])
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(row[cols[1]]), 64)
		if err != nil {
			return nil, malformed(op, "row %d: invalid y coordinate %q", i+2, row[cols[1]])
		}
		z, err := parseValue(row[cols[2]])
		if err != nil {
			return nil, malformed(op, "row %d: invalid value %q", i+2, row[cols[2]])
		}
		o[i] = XYZ{X: x, Y: y, Z: z}
	}
	return o, nil
}

// WriteXYZ writes points as comma delimited text with a header row of
// x, y, and the given value column name. NoData is written as NA.
func WriteXYZ(w io.Writer, points []XYZ, zCol string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", zCol}); err != nil {
		return fmt.Errorf("raster: writing table: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for _, p := range points {
		z := "NA"
		if !IsNoData(p.Z) {
			z = f(p.Z)
		}
		if err := cw.Write([]string{f(p.X), f(p.Y), z}); err != nil {
			return fmt.Errorf("raster: writing table: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("raster: writing table: %w", err)
	}
	return nil
}

// ReadLookup reads a substitution table mapping the numeric identifiers in
// column keyCol to the values in column valCol. A MalformedInputError is
// returned if an identifier appears more than once with different values.
func ReadLookup(r io.Reader, keyCol, valCol string) (map[float64]float64, error) {
	const op = "read lookup table"
	t, err := readTable(op, r)
	if err != nil {
		return nil, err
	}
	cols, err := t.columns(op, keyCol, valCol)
	if err != nil {
		return nil, err
	}
	o := make(map[float64]float64, len(t.rows))
	for i, row := range t.rows {
		k, err := strconv.ParseFloat(strings.TrimSpace(row[cols[0]]), 64)
		if err != nil {
			return nil, malformed(op, "row %d: invalid identifier %q", i+2, row[cols[0]])
		}
		v, err := parseValue(row[cols[1]])
		if err != nil {
			return nil, malformed(op, "row %d: invalid value %q", i+2, row[cols[1]])
		}
		if old, ok := o[k]; ok && old != v && !(IsNoData(old) && IsNoData(v)) {
			return nil, malformed(op, "identifier %g has conflicting values %g and %g", k, old, v)
		}
		o[k] = v
	}
	return o, nil
}

// ReadRecords reads attribute table rows from the named identifier, group
// key, and value columns. If valCol is empty, every value is 1.
func ReadRecords(r io.Reader, idCol, keyCol, valCol string) ([]Record, error) {
	const op = "read records"
	t, err := readTable(op, r)
	if err != nil {
		return nil, err
	}
	names := []string{idCol, keyCol}
	if valCol != "" {
		names = append(names, valCol)
	}
	cols, err := t.columns(op, names...)
	if err != nil {
		return nil, err
	}
	o := make([]Record, len(t.rows))
	for i, row := range t.rows {
		k, err := strconv.ParseFloat(strings.TrimSpace(row[cols[1]]), 64)
		if err != nil {
			return nil, malformed(op, "row %d: invalid key %q", i+2, row[cols[1]])
		}
		v := 1.
		if valCol != "" {
			if v, err = parseValue(row[cols[2]]); err != nil {
				return nil, malformed(op, "row %d: invalid value %q", i+2, row[cols[2]])
			}
		}
		o[i] = Record{ID: strings.TrimSpace(row[cols[0]]), Key: k, Value: v}
	}
	return o, nil
}
