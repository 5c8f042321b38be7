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
	"strings"
	"sync"

	"github.com/ctessum/geom/proj"
)

// LongLatWGS84 is the PROJ.4 description of geographic coordinates on the
// WGS84 datum.
const LongLatWGS84 = "+proj=longlat +datum=WGS84 +no_defs"

// crsULP is the number of floating point units in the last place within
// which two parsed projections are considered equal.
const crsULP = 100

// parsed holds the result of parsing each normalized coordinate reference
// system description.
var parsed sync.Map

type parseResult struct {
	sr  *proj.SR
	err error
}

// lookupCRS parses crs, reusing earlier results. The returned SR is a copy
// that the caller may modify.
func lookupCRS(crs string) (*proj.SR, error) {
	key := normalizeCRS(crs)
	r, ok := parsed.Load(key)
	if !ok {
		sr, err := proj.Parse(crs)
		r, _ = parsed.LoadOrStore(key, parseResult{sr: sr, err: err})
	}
	pr := r.(parseResult)
	if pr.err != nil {
		return nil, pr.err
	}
	sr := *pr.sr
	return &sr, nil
}

// parseCRS parses a PROJ.4 or WKT coordinate reference system description.
func parseCRS(op, crs string) (*proj.SR, error) {
	if strings.TrimSpace(crs) == "" {
		return nil, &UnknownCoordinateSystemError{Op: op}
	}
	sr, err := lookupCRS(crs)
	if err != nil {
		return nil, &UnknownCoordinateSystemError{Op: op, CRS: crs, Err: err}
	}
	return sr, nil
}

// normalizeCRS collapses runs of white space so that descriptions that
// differ only in formatting compare equal.
func normalizeCRS(crs string) string {
	return strings.Join(strings.Fields(crs), " ")
}

// sameCRS reports whether a and b describe the same coordinate reference
// system. Descriptions that cannot be parsed are only equal to themselves.
func sameCRS(a, b string) bool {
	na, nb := normalizeCRS(a), normalizeCRS(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}
	sa, err := lookupCRS(a)
	if err != nil {
		return false
	}
	sb, err := lookupCRS(b)
	if err != nil {
		return false
	}
	return sa.Equal(sb, crsULP)
}

// isGeographic reports whether sr is a longitude/latitude system.
func isGeographic(sr *proj.SR) bool {
	return sr.Name == "longlat"
}

// transformer returns a function that converts coordinates from the src
// system to the dst system. It returns the identity transform when the two
// systems are the same.
func transformer(op, src, dst string) (proj.Transformer, error) {
	srcSR, err := parseCRS(op, src)
	if err != nil {
		return nil, err
	}
	dstSR, err := parseCRS(op, dst)
	if err != nil {
		return nil, err
	}
	if sameCRS(src, dst) {
		return func(x, y float64) (float64, float64, error) { return x, y, nil }, nil
	}
	t, err := srcSR.NewTransform(dstSR)
	if err != nil {
		return nil, &UnknownCoordinateSystemError{Op: op, CRS: dst, Err: err}
	}
	return t, nil
}
