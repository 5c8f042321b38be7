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
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// uploader collects output files destined for blob storage. Outputs are
// first written to a temporary directory and copied to their destination
// by upload.
type uploader struct {
	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files [][2]string
	dir   string
}

// maybeUpload checks whether the given output file path refers to
// a blob storage location. If it does, then a temporary file location
// is returned. The file will then be uploaded to blob storage when
// the upload method is run.
func (u *uploader) maybeUpload(loc string) (string, error) {
	if !IsBlob(loc) {
		return loc, nil
	}
	if u.dir == "" {
		var err error
		if u.dir, err = os.MkdirTemp("", "raster"); err != nil {
			return "", fmt.Errorf("rasterutil: creating temporary upload directory: %w", err)
		}
	}
	files := expandShp(loc)
	for _, f := range files {
		u.files = append(u.files, [2]string{filepath.Join(u.dir, filepath.Base(f)), f})
	}
	return filepath.Join(u.dir, filepath.Base(files[0])), nil
}

// upload copies the collected files to blob storage and removes the
// temporary directory.
func (u *uploader) upload(ctx context.Context) error {
	for _, files := range u.files {
		if err := uploadFile(ctx, files[0], files[1]); err != nil {
			return err
		}
	}
	return u.discard()
}

// discard removes the temporary directory and forgets the collected files.
func (u *uploader) discard() error {
	u.files = nil
	if u.dir == "" {
		return nil
	}
	err := os.RemoveAll(u.dir)
	u.dir = ""
	return err
}

func uploadFile(ctx context.Context, local, remote string) error {
	r, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("rasterutil: opening file '%s' for upload: %w", local, err)
	}
	defer r.Close()
	bucket, key, err := OpenBlob(ctx, remote)
	if err != nil {
		return err
	}
	defer bucket.Close()
	Log.WithFields(logrus.Fields{"file": local, "blob": remote}).Debug("uploading")
	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("rasterutil: opening writer to upload file '%s': %w", remote, err)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("rasterutil: uploading file '%s' to '%s': %w", local, remote, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("rasterutil: uploading file '%s' to '%s': %w", local, remote, err)
	}
	return nil
}
