package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"wadlib/internal/model"
)

const manifestVersion = 1

type manifestFile struct {
	Version   int                        `json:"version"`
	Downloads map[string]json.RawMessage `json:"downloads"`
}

func (l *Library) manifestPath() string {
	return filepath.Join(l.dataDir, manifestName)
}

// loadManifest reads the manifest. A missing file is an empty manifest.
// Entries that fail to decode are logged and returned raw in unreadable so a
// later save writes them back unchanged.
func (l *Library) loadManifest() (records map[string]model.DownloadRecord, unreadable map[string]json.RawMessage, err error) {
	records = make(map[string]model.DownloadRecord)
	unreadable = make(map[string]json.RawMessage)

	data, err := os.ReadFile(l.manifestPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return records, unreadable, nil
		}
		return nil, nil, fmt.Errorf("reading manifest: %w", err)
	}

	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, nil, fmt.Errorf("decoding manifest: %w", err)
	}

	for slug, raw := range mf.Downloads {
		var rec model.DownloadRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			l.logger.Warn("skipping unreadable manifest entry", "slug", slug, "error", err)
			unreadable[slug] = raw
			continue
		}
		if rec.Filename == "" {
			l.logger.Warn("skipping manifest entry without filename", "slug", slug)
			unreadable[slug] = raw
			continue
		}
		rec.Slug = slug
		records[slug] = rec
	}
	return records, unreadable, nil
}

// saveManifest writes records plus the unreadable entries no record replaced.
func (l *Library) saveManifest(records map[string]model.DownloadRecord, unreadable map[string]json.RawMessage) error {
	mf := manifestFile{
		Version:   manifestVersion,
		Downloads: make(map[string]json.RawMessage, len(records)+len(unreadable)),
	}
	for slug, raw := range unreadable {
		mf.Downloads[slug] = raw
	}
	for slug, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encoding manifest entry %s: %w", slug, err)
		}
		mf.Downloads[slug] = raw
	}

	data, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return writeFileAtomic(l.manifestPath(), data)
}

// mutate runs fn on the current manifest under both locks and saves the result.
// fn may drop unreadable entries by deleting them from the second map.
func (l *Library) mutate(fn func(map[string]model.DownloadRecord, map[string]json.RawMessage) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.lock.Lock(); err != nil {
		return fmt.Errorf("locking manifest: %w", err)
	}
	defer l.lock.Unlock()

	records, unreadable, err := l.loadManifest()
	if err != nil {
		return err
	}
	if err := fn(records, unreadable); err != nil {
		return err
	}
	return l.saveManifest(records, unreadable)
}

// Upsert adds or replaces the record for rec.Slug.
func (l *Library) Upsert(rec model.DownloadRecord) error {
	if rec.Slug == "" {
		return fmt.Errorf("download record has no slug")
	}
	return l.mutate(func(records map[string]model.DownloadRecord, _ map[string]json.RawMessage) error {
		records[rec.Slug] = rec
		return nil
	})
}

// Delete removes the entry for slug, readable or not. Deleting an absent slug
// is not an error.
func (l *Library) Delete(slug string) error {
	return l.mutate(func(records map[string]model.DownloadRecord, unreadable map[string]json.RawMessage) error {
		delete(records, slug)
		delete(unreadable, slug)
		return nil
	})
}

// Record returns the manifest entry for slug.
func (l *Library) Record(slug string) (model.DownloadRecord, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, _, err := l.loadManifest()
	if err != nil {
		return model.DownloadRecord{}, false, err
	}
	rec, ok := records[slug]
	return rec, ok, nil
}

// Records returns all manifest entries sorted by slug.
func (l *Library) Records() ([]model.DownloadRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, _, err := l.loadManifest()
	if err != nil {
		return nil, err
	}
	out := make([]model.DownloadRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
