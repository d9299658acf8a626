package wadlib

import (
	"fmt"
	"strings"

	"wadlib/internal/model"
	"wadlib/internal/savegame"
	"wadlib/internal/stats"
)

// CaptureSaves stores the saves that belong to slug and were not captured
// before. It returns the newly stored sessions.
//
// Saves in slug's own save directory (where Play points the engine) always
// belong to slug. Saves in the shared configured directories are only taken
// when their recorded map WAD is slug's archive; saves without that field
// cannot be attributed and are skipped.
func (s *Service) CaptureSaves(slug string) ([]model.PlaySession, error) {
	if s.saves == nil {
		return nil, fmt.Errorf("no save directories configured")
	}

	own, err := s.saves.FindSavesIn(s.library.SaveDir(slug))
	if err != nil {
		return nil, fmt.Errorf("finding saves for %s: %w", slug, err)
	}
	shared, err := s.saves.FindSaves()
	if err != nil {
		return nil, fmt.Errorf("finding saves: %w", err)
	}

	filename, err := s.archiveName(slug)
	if err != nil {
		return nil, err
	}

	owned := make(map[string]bool, len(own))
	paths := append([]string(nil), own...)
	for _, p := range own {
		owned[p] = true
	}
	for _, p := range shared {
		if !owned[p] {
			paths = append(paths, p)
		}
	}

	existing, err := s.library.Sessions(slug)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}

	names, err := s.LevelNames(slug)
	if err != nil {
		s.logger.Warn("capturing without level names", "slug", slug, "error", err)
		names = nil
	}

	keep := func(p string, res savegame.Result) bool {
		if owned[p] {
			return true
		}
		if filename != "" && strings.EqualFold(res.MapWAD, filename) {
			return true
		}
		s.logger.Debug("save belongs to other content", "path", p, "map_wad", res.MapWAD, "slug", slug)
		return false
	}

	captured := stats.CaptureMatching(slug, paths, existing, names, s.now(), s.logger, keep)
	for _, sess := range captured {
		if _, err := s.library.SaveSession(sess); err != nil {
			return nil, fmt.Errorf("saving session from %s: %w", sess.SourceFile, err)
		}
	}

	s.logger.Info("saves captured", "slug", slug, "found", len(paths), "new", len(captured))
	return captured, nil
}

// archiveName is the file name slug is installed under, or its catalog
// file name when not installed. It is empty for unknown content.
func (s *Service) archiveName(slug string) (string, error) {
	rec, ok, err := s.library.Record(slug)
	if err != nil {
		return "", fmt.Errorf("reading manifest: %w", err)
	}
	if ok {
		return rec.Filename, nil
	}
	if entry, ok := s.catalog.Lookup(slug); ok {
		return entry.Filename, nil
	}
	return "", nil
}

// BestRuns returns the best run per level and skill across every stored session.
func (s *Service) BestRuns(slug string) ([]stats.BestRun, error) {
	sessions, err := s.library.Sessions(slug)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	return stats.Best(sessions), nil
}
