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
	"runtime"
	"sync"
)

// parallelRows calls f once for every row in [0, ny), spreading the rows
// across GOMAXPROCS goroutines. f must only write to cells in its own row.
func parallelRows(ny int, f func(row int)) {
	nprocs := runtime.GOMAXPROCS(-1)
	if nprocs > ny {
		nprocs = ny
	}
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for p := 0; p < nprocs; p++ {
		go func(p int) {
			defer wg.Done()
			for row := p; row < ny; row += nprocs {
				f(row)
			}
		}(p)
	}
	wg.Wait()
}
