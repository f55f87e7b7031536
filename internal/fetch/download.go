package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/dnswlt/skycat/internal/table"
)

// Options control how downloaded catalogs are written to disk.
type Options struct {
	// Overwrite replaces existing files. If false, existing files are kept
	// and the download is skipped.
	Overwrite bool
	// Compress gzips the payload before writing. The target path should
	// carry a .gz suffix in that case.
	Compress bool
	// MinSize is the minimum plausible size in bytes of a complete catalog.
	// Smaller downloads are treated as truncated and deleted.
	// Zero disables the check.
	MinSize int64
}

// DefaultMinSize matches the size of the smallest known complete base
// catalog. Downloads below it are almost certainly error pages or
// truncated responses.
const DefaultMinSize = 1_000_000

// DownloadAsFile runs the query and writes the result to path, creating
// parent directories as needed.
func DownloadAsFile(ctx context.Context, c *Client, q Query, path string, opts Options) error {
	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			log.Printf("Skipping %s: file exists", path)
			return nil
		}
	}
	data, err := q.Run(ctx, c)
	if err != nil {
		return err
	}
	if opts.Compress {
		data, err = GzipCompress(data)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	if opts.MinSize > 0 && int64(len(data)) < opts.MinSize {
		os.Remove(path)
		return fmt.Errorf("download %s too small (%d bytes), deleted", path, len(data))
	}
	return nil
}

// HostColumns names the columns of a host table that DownloadForHosts reads.
type HostColumns struct {
	ID  string
	RA  string
	Dec string
}

// DefaultHostColumns matches the canonical host list schema.
var DefaultHostColumns = HostColumns{ID: "NSAID", RA: "RA", Dec: "DEC"}

// DownloadForHosts downloads one catalog per host in the given table.
// newQuery builds the per-host query from the host coordinates, and
// pathPattern must contain a single %d verb for the host ID.
// It keeps going after per-host failures and returns the IDs of the
// hosts whose downloads failed, together with the collected errors.
func DownloadForHosts(ctx context.Context, c *Client, hosts *table.Table,
	newQuery func(ra, dec float64) Query, pathPattern string,
	cols HostColumns, opts Options) ([]int64, error) {

	ids, ras, decs, err := hostCoords(hosts, cols)
	if err != nil {
		return nil, err
	}
	var failed []int64
	var errs *multierror.Error
	for i := 0; i < hosts.NumRows(); i++ {
		id := ids[i]
		q := newQuery(ras[i], decs[i])
		path := fmt.Sprintf(pathPattern, id)
		log.Printf("Downloading %s for host %d", q, id)
		if err := DownloadAsFile(ctx, c, q, path, opts); err != nil {
			log.Printf("Download for host %d failed: %v", id, err)
			failed = append(failed, id)
			errs = multierror.Append(errs, fmt.Errorf("host %d: %w", id, err))
		}
	}
	return failed, errs.ErrorOrNil()
}

// hostCoords extracts the ID and coordinate columns of a host table.
// The coercing accessors matter here: CSV kind inference types an
// all-integral coordinate column as int.
func hostCoords(hosts *table.Table, cols HostColumns) (ids []int64, ras, decs []float64, err error) {
	idCol, err := hosts.Column(cols.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if ids, err = idCol.AsInts(); err != nil {
		return nil, nil, nil, err
	}
	raCol, err := hosts.Column(cols.RA)
	if err != nil {
		return nil, nil, nil, err
	}
	if ras, err = raCol.AsFloats(); err != nil {
		return nil, nil, nil, err
	}
	decCol, err := hosts.Column(cols.Dec)
	if err != nil {
		return nil, nil, nil, err
	}
	if decs, err = decCol.AsFloats(); err != nil {
		return nil, nil, nil, err
	}
	return ids, ras, decs, nil
}

// GzipCompress returns the gzip-compressed form of data.
func GzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GzipCompressFile compresses path into outPath. With deleteOriginal,
// the uncompressed file is removed on success.
func GzipCompressFile(path, outPath string, deleteOriginal bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	compressed, err := GzipCompress(data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, compressed, 0644); err != nil {
		return err
	}
	if deleteOriginal && outPath != path {
		return os.Remove(path)
	}
	return nil
}
