// Package savegame reads play statistics out of engine save containers.
//
// A save is a zip container. One JSON member (globals.json in practice)
// carries statistics.levels; another (info.json) carries a free-text Comment
// whose first line names the active level as "<ID> - <name>", plus the
// "Game WAD" and "Map WAD" the save was made with. Older saves use a
// different layout and simply produce an empty Result.
package savegame

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"

	"wadlib/internal/model"
)

// maxMemberSize bounds how much of a single member is decompressed.
const maxMemberSize = 64 << 20

// Result is what a save container yields. A zero Result means the file held
// nothing usable.
type Result struct {
	Levels       []model.LevelPlayStats
	Skill        model.Skill
	CurrentLevel string
	CurrentName  string
	// GameWAD and MapWAD are base file names as recorded by the engine,
	// empty when the save does not carry them.
	GameWAD string
	MapWAD  string
}

// Empty reports whether no level statistics were found.
func (r Result) Empty() bool {
	return len(r.Levels) == 0
}

// StartLevel is the first level recorded in the statistics, falling back to
// the active level.
func (r Result) StartLevel() string {
	if len(r.Levels) > 0 {
		return r.Levels[0].ID
	}
	return r.CurrentLevel
}

// ReadFile reads the save at path. The error is reserved for I/O failures;
// unreadable containers produce an empty Result.
func ReadFile(p string) (Result, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Result{}, fmt.Errorf("reading save file: %w", err)
	}
	return Read(data), nil
}

// Read decodes a save container held in memory.
func Read(data []byte) Result {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}
	}

	var stats, info map[string]any
	for _, f := range zr.File {
		if !strings.EqualFold(path.Ext(f.Name), ".json") {
			continue
		}
		doc, err := readJSONMember(f)
		if err != nil {
			continue
		}
		if stats == nil && levelsOf(doc) != nil {
			stats = doc
		}
		if info == nil && isInfo(doc) {
			info = doc
		}
	}
	if stats == nil {
		return Result{}
	}

	res := Result{Skill: skillOf(stats)}
	if info != nil {
		comment, _ := info["Comment"].(string)
		res.CurrentLevel, res.CurrentName = parseComment(comment)
		res.GameWAD = wadName(info["Game WAD"])
		res.MapWAD = wadName(info["Map WAD"])
	}

	for _, raw := range levelsOf(stats) {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := entry["levelname"].(string)
		id = strings.ToUpper(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		lvl := model.LevelPlayStats{
			ID:           id,
			Kills:        toCount(entry["killcount"]),
			TotalKills:   toCount(entry["totalkills"]),
			Items:        toCount(entry["itemcount"]),
			TotalItems:   toCount(entry["totalitems"]),
			Secrets:      toCount(entry["secretcount"]),
			TotalSecrets: toCount(entry["totalsecrets"]),
			TimeTics:     toCount(entry["leveltime"]),
		}
		if id == res.CurrentLevel {
			lvl.Name = res.CurrentName
		}
		res.Levels = append(res.Levels, lvl)
	}
	return res
}

func readJSONMember(f *zip.File) (map[string]any, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var doc map[string]any
	if err := json.NewDecoder(io.LimitReader(rc, maxMemberSize)).Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func isInfo(doc map[string]any) bool {
	for _, key := range []string{"Comment", "Map WAD", "Game WAD"} {
		if _, ok := doc[key].(string); ok {
			return true
		}
	}
	return false
}

// wadName reduces a recorded WAD path to its base name. Windows separators
// are accepted regardless of the host.
func wadName(v any) string {
	s, _ := v.(string)
	s = strings.TrimSpace(strings.ReplaceAll(s, "\\", "/"))
	if s == "" {
		return ""
	}
	return path.Base(s)
}

// levelsOf returns statistics.levels, or nil when absent or not an array.
func levelsOf(doc map[string]any) []any {
	statistics, ok := doc["statistics"].(map[string]any)
	if !ok {
		return nil
	}
	levels, ok := statistics["levels"].([]any)
	if !ok {
		return nil
	}
	return levels
}

func skillOf(doc map[string]any) model.Skill {
	if cvars, ok := doc["servercvars"].(map[string]any); ok {
		if v, ok := toInt(cvars["skill"]); ok {
			return model.ClampSkill(v)
		}
	}
	if v, ok := toInt(doc["skill"]); ok {
		return model.ClampSkill(v)
	}
	return model.DefaultSkill
}

var commentLevel = regexp.MustCompile(`(?i)^\s*(MAP\d+|E\d+M\d+)\s+-\s+(.+?)\s*$`)

// parseComment reads "<ID> - <name>" from the first line of a save comment.
func parseComment(comment string) (id, name string) {
	first, _, _ := strings.Cut(comment, "\n")
	m := commentLevel.FindStringSubmatch(strings.TrimRight(first, "\r"))
	if m == nil {
		return "", ""
	}
	return strings.ToUpper(m[1]), m[2]
}

// toInt converts JSON numbers and numeric strings. ok is false for anything else.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return i, true
	default:
		return 0, false
	}
}

// toCount coerces a field to a non-negative int; absent or invalid fields are 0.
func toCount(v any) int {
	n, ok := toInt(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}
