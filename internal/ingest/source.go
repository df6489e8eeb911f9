package ingest

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source lists and fetches weather files by object key.
type Source interface {
	// Name identifies the source in audit records and metrics.
	Name() string
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// decode returns the CSV body of a fetched object, inflating .gz keys.
func decode(key string, body []byte) ([]byte, error) {
	if !strings.HasSuffix(key, ".gz") {
		return body, nil
	}
	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gunzip %s: %w", key, err)
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

// DirSource serves weather files from a local directory.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (d *DirSource) Name() string { return "file" }

func (d *DirSource) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var keys []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			keys = append(keys, e.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *DirSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	if key != filepath.Base(key) {
		return nil, fmt.Errorf("invalid key %q", key)
	}
	return os.ReadFile(filepath.Join(d.dir, key))
}
