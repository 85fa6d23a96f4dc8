// Package blobsource lists and reads raw case files from a local directory or
// an S3 bucket.
package blobsource

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/giygas/cureid-api/caseparser"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
)

var _ interfaces.BlobSource = (*DirSource)(nil)

// isCaseFile reports whether name is a per-drug case file. Other JSON files
// in the raw files location, such as the treatment listing, are skipped.
func isCaseFile(name string) bool {
	if !strings.HasSuffix(strings.ToLower(path.Base(name)), ".json") {
		return false
	}
	if _, _, err := caseparser.ParseFileName(name); err != nil {
		logging.Debug("Skipping raw file", "name", name, "reason", err)
		return false
	}
	return true
}

// DirSource reads case files from one directory, without recursing.
type DirSource struct {
	dir string
}

// NewDirSource creates a source over dir. The directory must exist.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("raw files directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("raw files directory %s is not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// List returns the case file names in lexical order.
func (s *DirSource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isCaseFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Read returns a file's content. Names must not leave the directory.
func (s *DirSource) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("invalid file name %q", name)
	}
	body, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return body, nil
}
