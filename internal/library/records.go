package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wadlib/internal/model"
)

// SaveSession writes an immutable session record named by its capture time.
// An existing record with the same name is never overwritten.
func (l *Library) SaveSession(s model.PlaySession) (string, error) {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = model.SchemaVersion
	}
	return writeRecord(filepath.Join(l.dataDir, sessionsDir, s.ContentSlug), s.CapturedAt, s)
}

// Sessions loads every session stored for slug, oldest first. Files that
// cannot be decoded are skipped.
func (l *Library) Sessions(slug string) ([]model.PlaySession, error) {
	var out []model.PlaySession
	err := readRecords(filepath.Join(l.dataDir, sessionsDir, slug), func(data []byte) {
		var s model.PlaySession
		if json.Unmarshal(data, &s) != nil || s.ContentSlug == "" {
			return
		}
		out = append(out, s)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CapturedAt.Before(out[j].CapturedAt) })
	return out, err
}

// SaveGameplayLog writes a classified transcript named by its start time.
func (l *Library) SaveGameplayLog(g model.GameplayLog) (string, error) {
	if g.SchemaVersion == 0 {
		g.SchemaVersion = model.SchemaVersion
	}
	return writeRecord(filepath.Join(l.dataDir, logsDir, g.ContentSlug), g.StartedAt, g)
}

// GameplayLogs loads every transcript stored for slug, oldest first.
func (l *Library) GameplayLogs(slug string) ([]model.GameplayLog, error) {
	var out []model.GameplayLog
	err := readRecords(filepath.Join(l.dataDir, logsDir, slug), func(data []byte) {
		var g model.GameplayLog
		if json.Unmarshal(data, &g) != nil || g.ContentSlug == "" {
			return
		}
		out = append(out, g)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, err
}

func writeRecord(dir string, at time.Time, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	name := timestampName(at)
	dest := filepath.Join(dir, name)
	// Records captured within the same second get a numeric suffix.
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dest = filepath.Join(dir, fmt.Sprintf("%s-%d.json", strings.TrimSuffix(name, ".json"), i))
	}

	if err := writeFileAtomic(dest, data); err != nil {
		return "", err
	}
	return dest, nil
}

// readRecords calls fn with the contents of each .json file in dir, in name
// order. A missing dir yields nothing.
func readRecords(dir string, fn func([]byte)) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), ".json") && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("reading record: %w", err)
		}
		fn(data)
	}
	return nil
}
