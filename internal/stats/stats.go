// Package stats merges captured play sessions into per-level records.
package stats

import (
	"path/filepath"
	"sort"
	"time"

	"wadlib/internal/mapinfo"
	"wadlib/internal/model"
	"wadlib/internal/savegame"
)

// BestRun is the best recorded attempt at one level on one skill.
type BestRun struct {
	LevelID    string
	Skill      model.Skill
	Stats      model.LevelPlayStats
	SourceFile string
	CapturedAt time.Time
}

// better reports whether a beats b: strictly more kills, or equal kills in
// fewer tics.
func better(a, b model.LevelPlayStats) bool {
	if a.Kills != b.Kills {
		return a.Kills > b.Kills
	}
	return a.TimeTics < b.TimeTics
}

type runKey struct {
	level string
	skill model.Skill
}

// Best keeps, per (level, skill), the best run across sessions. The result
// is ordered by level id, then skill.
func Best(sessions []model.PlaySession) []BestRun {
	best := make(map[runKey]BestRun)
	for _, s := range sessions {
		for _, lvl := range s.Levels {
			k := runKey{level: lvl.ID, skill: s.Skill}
			cur, ok := best[k]
			if ok && !better(lvl, cur.Stats) {
				if cur.Stats.Name == "" && lvl.Name != "" {
					cur.Stats.Name = lvl.Name
					best[k] = cur
				}
				continue
			}
			if ok && lvl.Name == "" {
				lvl.Name = cur.Stats.Name
			}
			best[k] = BestRun{
				LevelID:    lvl.ID,
				Skill:      s.Skill,
				Stats:      lvl,
				SourceFile: s.SourceFile,
				CapturedAt: s.CapturedAt,
			}
		}
	}

	out := make([]BestRun, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LevelID != out[j].LevelID {
			return mapinfo.LessID(out[i].LevelID, out[j].LevelID)
		}
		return out[i].Skill < out[j].Skill
	})
	return out
}

// IsCaptured reports whether candidate duplicates an existing session. Two
// sessions match on source file, level count, start level and skill.
func IsCaptured(existing []model.PlaySession, candidate model.PlaySession) bool {
	for _, s := range existing {
		if s.SourceFile == candidate.SourceFile &&
			len(s.Levels) == len(candidate.Levels) &&
			s.StartLevel == candidate.StartLevel &&
			s.Skill == candidate.Skill {
			return true
		}
	}
	return false
}

// Logger receives warnings about save files that could not be read.
type Logger interface {
	Warn(msg string, args ...any)
}

// Capture reads save files and returns the sessions not already present in
// existing. Empty saves and duplicates are skipped. Level names missing from
// a save fall back to names.
func Capture(slug string, paths []string, existing []model.PlaySession, names map[string]string, at time.Time, logger Logger) []model.PlaySession {
	return CaptureMatching(slug, paths, existing, names, at, logger, nil)
}

// CaptureMatching is Capture restricted to the saves keep accepts. A nil keep
// accepts every save.
func CaptureMatching(slug string, paths []string, existing []model.PlaySession, names map[string]string, at time.Time, logger Logger, keep func(path string, res savegame.Result) bool) []model.PlaySession {
	seen := append([]model.PlaySession(nil), existing...)
	var captured []model.PlaySession

	for _, p := range paths {
		res, err := savegame.ReadFile(p)
		if err != nil {
			logger.Warn("skipping unreadable save", "path", p, "error", err)
			continue
		}
		if res.Empty() {
			continue
		}
		if keep != nil && !keep(p, res) {
			continue
		}

		s := FromResult(slug, filepath.Base(p), res, names, at)
		if IsCaptured(seen, s) {
			continue
		}
		seen = append(seen, s)
		captured = append(captured, s)
	}
	return captured
}

// FromResult converts a decoded save into a session record.
func FromResult(slug, sourceFile string, res savegame.Result, names map[string]string, at time.Time) model.PlaySession {
	levels := make([]model.LevelPlayStats, len(res.Levels))
	for i, lvl := range res.Levels {
		if lvl.Name == "" {
			lvl.Name = names[lvl.ID]
		}
		levels[i] = lvl
	}
	return model.PlaySession{
		SchemaVersion: model.SchemaVersion,
		ContentSlug:   slug,
		StartLevel:    res.StartLevel(),
		Skill:         res.Skill,
		SourceFile:    sourceFile,
		CapturedAt:    at,
		Levels:        levels,
	}
}
