package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"wadlib/internal/catalog"
	"wadlib/internal/model"
)

// FileSystemSource serves archives from a local mirror directory laid out as
// <root>/<filename>.
type FileSystemSource struct {
	name string
	root string
}

// NewFileSystemSource creates a source rooted at root, which must be a directory.
func NewFileSystemSource(name, root string) (*FileSystemSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("mirror root not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("mirror root is not a directory: %s", root)
	}
	return &FileSystemSource{name: name, root: root}, nil
}

func (s *FileSystemSource) Name() string { return s.name }

// Open opens the mirrored file and seeks to offset.
func (s *FileSystemSource) Open(_ context.Context, entry catalog.Entry, offset int64) (*Transfer, error) {
	p := filepath.Join(s.root, filepath.Base(entry.Filename))
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("opening %s: %w", p, model.ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", p, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", p, err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seeking %s: %w", p, err)
	}
	return &Transfer{Body: f, Offset: offset, Total: info.Size()}, nil
}

// Compile-time check that FileSystemSource implements Source
var _ Source = (*FileSystemSource)(nil)
