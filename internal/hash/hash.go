/*
Copyright © 2019 the InMAP authors.
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

// Package hash creates keys for caching the results of computations.
package hash

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// Saver is implemented by objects that can serialize themselves, such as
// grids.
type Saver interface {
	Save(w io.Writer) error
}

// Hash returns a hash key for the specified objects. Objects implementing
// Saver are hashed by their serialized form; other objects are gob encoded,
// falling back to a printed representation if they cannot be.
func Hash(objects ...interface{}) string {
	h := fnv.New128a()
	for i, object := range objects {
		fmt.Fprintf(h, "%d:", i)
		if s, ok := object.(Saver); ok {
			var b bytes.Buffer
			if err := s.Save(&b); err == nil {
				h.Write(b.Bytes())
				continue
			}
		}
		var b bytes.Buffer
		if err := gob.NewEncoder(&b).Encode(object); err == nil {
			h.Write(b.Bytes())
			continue
		}
		printer := spew.ConfigState{
			Indent:                  " ",
			SortKeys:                true,
			DisableMethods:          true,
			SpewKeys:                true,
			DisablePointerAddresses: true,
			DisableCapacities:       true,
		}
		printer.Fprintf(h, "%#v", object)
	}
	bKey := h.Sum([]byte{})
	return fmt.Sprintf("%x", bKey[0:h.Size()])
}
