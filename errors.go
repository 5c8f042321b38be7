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

import "fmt"

// MalformedInputError is returned when input data cannot be resolved into
// a single regular grid, for example because the spacing between points is
// inconsistent or a coordinate appears twice with different values.
type MalformedInputError struct {
	Op     string
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("raster: %s: malformed input: %s", e.Op, e.Reason)
}

// GeometryMismatchError is returned when an operation that requires grids
// with matching geometry receives grids that differ in origin, resolution,
// or coordinate reference system.
type GeometryMismatchError struct {
	Op     string
	Reason string
}

func (e *GeometryMismatchError) Error() string {
	return fmt.Sprintf("raster: %s: geometry mismatch: %s", e.Op, e.Reason)
}

// UnknownCoordinateSystemError is returned when the coordinate reference
// system of a grid or feature set is missing or cannot be parsed.
type UnknownCoordinateSystemError struct {
	Op  string
	CRS string
	Err error
}

func (e *UnknownCoordinateSystemError) Error() string {
	if e.CRS == "" {
		return fmt.Sprintf("raster: %s: coordinate reference system is not set", e.Op)
	}
	if e.Err != nil {
		return fmt.Sprintf("raster: %s: unknown coordinate reference system %q: %v", e.Op, e.CRS, e.Err)
	}
	return fmt.Sprintf("raster: %s: unknown coordinate reference system %q", e.Op, e.CRS)
}

func (e *UnknownCoordinateSystemError) Unwrap() error { return e.Err }

func malformed(op, format string, a ...interface{}) error {
	return &MalformedInputError{Op: op, Reason: fmt.Sprintf(format, a...)}
}

func mismatch(op, format string, a ...interface{}) error {
	return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf(format, a...)}
}
