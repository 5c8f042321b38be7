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
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // gs:// buckets
	_ "gocloud.dev/blob/s3blob"  // s3:// buckets
)

// maybeDownload checks if the input is an existing local file. If not, and
// the input is an http(s) or blob storage URL, it downloads the file to a
// temporary directory and returns the path to the downloaded file.
// Shapefiles are downloaded together with their .dbf, .shx, and .prj
// files.
func maybeDownload(ctx context.Context, loc string) (string, error) {
	if _, err := os.Stat(loc); !os.IsNotExist(err) {
		return loc, nil
	}
	if strings.HasPrefix(loc, "http://") || strings.HasPrefix(loc, "https://") {
		return downloadHTTP(ctx, loc)
	}
	if IsBlob(loc) {
		return downloadBlob(ctx, loc)
	}
	return loc, nil
}

// downloadHTTP downloads a file from the specified URL and returns
// the path to the downloaded file.
func downloadHTTP(ctx context.Context, loc string) (string, error) {
	dir, err := os.MkdirTemp("", "raster")
	if err != nil {
		return "", fmt.Errorf("rasterutil: creating temporary download directory: %w", err)
	}
	for _, fname := range expandShp(loc) {
		u, err := url.Parse(fname)
		if err != nil {
			return "", fmt.Errorf("rasterutil: parsing download url: %w", err)
		}
		Log.WithFields(logrus.Fields{"url": fname}).Debug("downloading")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fname, nil)
		if err != nil {
			return "", fmt.Errorf("rasterutil: downloading %s: %w", fname, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return "", fmt.Errorf("rasterutil: downloading %s: %w", fname, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return "", fmt.Errorf("rasterutil: downloading %s: %s", fname, resp.Status)
		}
		err = saveTo(filepath.Join(dir, path.Base(u.Path)), resp.Body)
		resp.Body.Close()
		if err != nil {
			return "", err
		}
	}
	u, _ := url.Parse(loc)
	return filepath.Join(dir, path.Base(u.Path)), nil
}

func saveTo(fname string, r io.Reader) error {
	w, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("rasterutil: creating file for download: %w", err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("rasterutil: writing %s: %w", fname, err)
	}
	return w.Close()
}

// IsBlob returns whether the given filename represents a blob
// (i.e., if it starts with `gs://`, 's3://', or 'file://').
func IsBlob(loc string) bool {
	return strings.HasPrefix(loc, "gs://") || strings.HasPrefix(loc, "s3://") || strings.HasPrefix(loc, "file://")
}

// OpenBlob opens the bucket holding the blob at loc and returns it with
// the key of the blob within the bucket. For "gs" and "s3" URLs the bucket
// is the URL host; for "file" URLs the bucket is the directory holding the
// file, e.g. file:///data/out.nc is key out.nc in directory /data.
func OpenBlob(ctx context.Context, loc string) (*blob.Bucket, string, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return nil, "", fmt.Errorf("rasterutil: parsing blob url: %w", err)
	}
	switch u.Scheme {
	case "file":
		p := filepath.FromSlash(u.Host + u.Path)
		b, err := fileblob.OpenBucket(filepath.Dir(p), nil)
		if err != nil {
			return nil, "", fmt.Errorf("rasterutil: opening bucket %s: %w", filepath.Dir(p), err)
		}
		return b, filepath.Base(p), nil
	case "gs", "s3":
		b, err := blob.OpenBucket(ctx, u.Scheme+"://"+u.Host)
		if err != nil {
			return nil, "", fmt.Errorf("rasterutil: opening bucket %s: %w", u.Host, err)
		}
		return b, strings.TrimPrefix(u.Path, "/"), nil
	default:
		return nil, "", fmt.Errorf("rasterutil: invalid blob storage provider %q", u.Scheme)
	}
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, loc string) (string, error) {
	dir, err := os.MkdirTemp("", "raster")
	if err != nil {
		return "", fmt.Errorf("rasterutil: creating temporary download directory: %w", err)
	}
	var first string
	for i, fname := range expandShp(loc) {
		bucket, key, err := OpenBlob(ctx, fname)
		if err != nil {
			return "", err
		}
		Log.WithFields(logrus.Fields{"blob": fname}).Debug("downloading")
		r, err := bucket.NewReader(ctx, key, nil)
		if err != nil {
			bucket.Close()
			return "", fmt.Errorf("rasterutil: reading %s: %w", fname, err)
		}
		local := filepath.Join(dir, path.Base(key))
		err = saveTo(local, r)
		r.Close()
		bucket.Close()
		if err != nil {
			return "", err
		}
		if i == 0 {
			first = local
		}
	}
	return first, nil
}

// expandShp returns the given file + associated [.dbf, .shx, .prj]
// files if the given file has the .shp extension, and returns the given
// file otherwise
func expandShp(filename string) []string {
	o := []string{filename}
	ext := filepath.Ext(filename)
	if ext != ".shp" {
		return o
	}
	for _, newExt := range []string{".dbf", ".shx", ".prj"} {
		o = append(o, filename[0:len(filename)-4]+newExt)
	}
	return o
}
