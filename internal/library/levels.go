package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"wadlib/internal/model"
)

func (l *Library) levelsPath(slug string) string {
	return filepath.Join(l.dataDir, levelsDir, slug+".json")
}

// LevelNames returns the cached level-name table for slug. It returns an
// error wrapping model.ErrNotFound when nothing is cached.
func (l *Library) LevelNames(slug string) (map[string]string, error) {
	data, err := os.ReadFile(l.levelsPath(slug))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("level names for %s: %w", slug, model.ErrNotFound)
		}
		return nil, fmt.Errorf("reading level names: %w", err)
	}

	var names map[string]string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("decoding level names for %s: %w", slug, err)
	}
	if names == nil {
		names = map[string]string{}
	}
	return names, nil
}

// SaveLevelNames replaces the cached table for slug.
func (l *Library) SaveLevelNames(slug string, names map[string]string) error {
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding level names: %w", err)
	}
	return writeFileAtomic(l.levelsPath(slug), data)
}

// DeleteLevelNames drops the cache entry for slug, if any.
func (l *Library) DeleteLevelNames(slug string) error {
	if err := os.Remove(l.levelsPath(slug)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing level names: %w", err)
	}
	return nil
}
