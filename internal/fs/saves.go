// Package fs discovers engine save files on disk.
package fs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SaveExtension is the extension of engine save containers.
const SaveExtension = ".zds"

// SaveFinder walks a set of save directories. The engine keeps one
// subdirectory per base game, so directories are walked recursively.
type SaveFinder struct {
	dirs   []string
	ignore []string
}

// NewSaveFinder creates a SaveFinder over dirs. ignore patterns apply in every
// directory, in addition to each directory's own ignore file.
func NewSaveFinder(dirs []string, ignore []string) *SaveFinder {
	return &SaveFinder{dirs: dirs, ignore: ignore}
}

// FindSaves returns the absolute paths of every save file, sorted and without
// duplicates. Directories that do not exist are skipped.
func (f *SaveFinder) FindSaves() ([]string, error) {
	return f.find(f.dirs)
}

// FindSavesIn lists the saves under dir alone, with the same ignore rules.
// A missing dir yields no saves.
func (f *SaveFinder) FindSavesIn(dir string) ([]string, error) {
	return f.find([]string{dir})
}

func (f *SaveFinder) find(dirs []string) ([]string, error) {
	seen := map[string]bool{}
	var saves []string

	for _, dir := range dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("resolving absolute path: %w", err)
		}
		info, err := os.Stat(absDir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("stat save directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("save path is not a directory: %s", absDir)
		}

		found, err := f.walk(absDir)
		if err != nil {
			return nil, err
		}
		for _, p := range found {
			if !seen[p] {
				seen[p] = true
				saves = append(saves, p)
			}
		}
	}

	sort.Strings(saves)
	return saves, nil
}

func (f *SaveFinder) walk(root string) ([]string, error) {
	local, err := ParseIgnoreFile(filepath.Join(root, IgnoreFileName))
	if err != nil {
		return nil, err
	}
	matcher := NewIgnoreMatcher(append(append([]string{}, f.ignore...), local...))

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(p), SaveExtension) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("calculating relative path: %w", err)
		}
		if matcher.Match(rel) {
			return nil
		}
		paths = append(paths, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking save directory: %w", err)
	}
	return paths, nil
}
