package wadlib

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wadlib/internal/download"
	"wadlib/internal/model"
)

// InstalledItem is one manifest record joined with its catalog entry.
type InstalledItem struct {
	model.DownloadRecord
	Title   string
	Path    string
	Missing bool
}

// Install makes slug and its dependencies available and returns the path of
// slug's archive. The attempt is added to the transfer history either way.
func (s *Service) Install(ctx context.Context, slug string, progress download.ProgressFunc) (string, error) {
	s.logger.Info("installing", "slug", slug)

	path, err := s.downloads.Install(ctx, slug, progress)
	s.recordTransfer(slug, err)
	if err != nil {
		return "", err
	}

	s.logger.Info("installed", "slug", slug, "path", path)
	return path, nil
}

func (s *Service) recordTransfer(slug string, installErr error) {
	t := &model.TransferRecord{
		OperationID: s.operationID,
		Slug:        slug,
		Source:      s.downloads.SourceName(),
		Status:      "ok",
	}
	if installErr != nil {
		t.Status = "failed"
		t.Error = installErr.Error()
	} else if rec, ok, err := s.library.Record(slug); err == nil && ok {
		t.Bytes = rec.Size
	}
	if err := s.database.RecordTransfer(t); err != nil {
		s.logger.Warn("recording transfer", "slug", slug, "error", err)
	}
}

// Remove deletes slug's archive, its manifest record and its cached level names.
func (s *Service) Remove(slug string) error {
	if err := s.downloads.Remove(slug); err != nil {
		return err
	}
	if err := s.library.DeleteLevelNames(slug); err != nil {
		return err
	}
	s.logger.Info("removed", "slug", slug)
	return nil
}

// List returns every installed item sorted by slug.
func (s *Service) List() ([]InstalledItem, error) {
	records, err := s.library.Records()
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	items := make([]InstalledItem, 0, len(records))
	for _, rec := range records {
		item := InstalledItem{
			DownloadRecord: rec,
			Path:           s.library.PathFor(rec.Filename),
		}
		if entry, ok := s.catalog.Lookup(rec.Slug); ok {
			item.Title = entry.Title
		}
		if _, err := os.Stat(item.Path); err != nil {
			item.Missing = true
		}
		items = append(items, item)
	}
	return items, nil
}

// LevelNames returns slug's level-name table, extracting and caching it on
// first use. The slug must be installed.
func (s *Service) LevelNames(slug string) (map[string]string, error) {
	names, err := s.library.LevelNames(slug)
	if err == nil {
		return names, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		s.logger.Warn("ignoring unreadable level-name cache", "slug", slug, "error", err)
	}

	rec, ok, err := s.library.Record(slug)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s is not installed: %w", slug, model.ErrNotFound)
	}

	names, err = s.extractor.ExtractFile(s.library.PathFor(rec.Filename))
	if err != nil {
		return nil, fmt.Errorf("extracting level names for %s: %w", slug, err)
	}
	if err := s.library.SaveLevelNames(slug, names); err != nil {
		return nil, fmt.Errorf("caching level names: %w", err)
	}

	s.logger.Debug("level names extracted", "slug", slug, "count", len(names))
	return names, nil
}
