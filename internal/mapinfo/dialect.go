// Package mapinfo extracts level display names from the text lumps that
// source ports read level metadata from.
package mapinfo

import (
	"fmt"
	"regexp"
	"strings"
)

// Dialect identifies one of the supported lump grammars.
type Dialect int

const (
	// DialectMapinfo covers MAPINFO and ZMAPINFO: map MAP01 "Name".
	DialectMapinfo Dialect = iota
	// DialectEmapinfo is the Eternity format: [MAP01] / levelname = MAP01: Name.
	DialectEmapinfo
	// DialectUmapinfo is the Boom-compatible format: MAP MAP01 / levelname = "Name".
	DialectUmapinfo
	// DialectDehacked reads HUSTR_* entries of a BEX [STRINGS] block.
	DialectDehacked
)

func (d Dialect) String() string {
	switch d {
	case DialectMapinfo:
		return "mapinfo"
	case DialectEmapinfo:
		return "emapinfo"
	case DialectUmapinfo:
		return "umapinfo"
	case DialectDehacked:
		return "dehacked"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// DialectFor selects the grammar purely by lump name.
func DialectFor(lumpName string) Dialect {
	switch strings.ToUpper(lumpName) {
	case "EMAPINFO":
		return DialectEmapinfo
	case "UMAPINFO":
		return DialectUmapinfo
	case "DEHACKED":
		return DialectDehacked
	default:
		return DialectMapinfo
	}
}

// Parse returns the level-id to display-name mapping found in one lump.
// IDs are upper-cased. Malformed entries are skipped.
func Parse(lumpName, text string) map[string]string {
	switch DialectFor(lumpName) {
	case DialectEmapinfo:
		return parseEmapinfo(text)
	case DialectUmapinfo:
		return parseUmapinfo(text)
	case DialectDehacked:
		return parseDehacked(text)
	default:
		return parseMapinfo(text)
	}
}

var mapinfoEntry = regexp.MustCompile(`(?i)\bmap\s+(\w+)\s+"([^"]+)"`)

// parseMapinfo scans for every map definition; within one lump the last
// definition of an ID wins.
func parseMapinfo(text string) map[string]string {
	levels := make(map[string]string)
	for _, m := range mapinfoEntry.FindAllStringSubmatch(text, -1) {
		levels[strings.ToUpper(m[1])] = m[2]
	}
	return levels
}

// section is the state of the line-oriented scanners. An empty id means no
// section is open.
type section struct {
	id string
}

func (s section) open() bool { return s.id != "" }

var (
	emapinfoSection   = regexp.MustCompile(`^\[(\w+)\]`)
	emapinfoLevelName = regexp.MustCompile(`(?i)^levelname\s*=\s*(.+)$`)
)

func parseEmapinfo(text string) map[string]string {
	levels := make(map[string]string)
	var state section

	for _, line := range lines(text) {
		if m := emapinfoSection.FindStringSubmatch(line); m != nil {
			state = section{id: strings.ToUpper(m[1])}
			continue
		}
		if !state.open() {
			continue
		}
		m := emapinfoLevelName.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name := stripIDPrefix(strings.TrimSpace(m[1]), state.id)
		if name == "" {
			continue
		}
		levels[state.id] = name
	}
	return levels
}

// stripIDPrefix removes a leading "<id>:" from value, ignoring case.
func stripIDPrefix(value, id string) string {
	prefix := id + ":"
	if len(value) >= len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return value
}

var (
	umapinfoSection   = regexp.MustCompile(`(?i)^map\s+(\w+)`)
	umapinfoLevelName = regexp.MustCompile(`(?i)^levelname\s*=\s*"?([^"]+)"?`)
)

func parseUmapinfo(text string) map[string]string {
	levels := make(map[string]string)
	var state section

	for _, line := range lines(text) {
		if m := umapinfoSection.FindStringSubmatch(line); m != nil {
			state = section{id: strings.ToUpper(m[1])}
			continue
		}
		if line == "}" {
			state = section{}
			continue
		}
		if !state.open() {
			continue
		}
		m := umapinfoLevelName.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if name := strings.TrimSpace(m[1]); name != "" {
			levels[state.id] = name
		}
	}
	return levels
}

var (
	dehackedSection = regexp.MustCompile(`^\[(\w+)\]`)
	// HUSTR_12, PHUSTR_3, THUSTR_30 name MAPxx; HUSTR_E1M1 names episode maps.
	dehackedKey    = regexp.MustCompile(`(?i)^[PT]?HUSTR_(?:(\d+)|E(\d)M(\d))\s*=\s*(.+)$`)
	dehackedPrefix = regexp.MustCompile(`(?i)^(?:level\s+\d+|MAP\d+|E\dM\d)\s*:\s*`)
)

func parseDehacked(text string) map[string]string {
	levels := make(map[string]string)
	inStrings := false

	for _, line := range lines(text) {
		if m := dehackedSection.FindStringSubmatch(line); m != nil {
			inStrings = strings.EqualFold(m[1], "STRINGS")
			continue
		}
		if !inStrings {
			continue
		}
		m := dehackedKey.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		var id string
		if m[1] != "" {
			var n int
			if _, err := fmt.Sscan(m[1], &n); err != nil || n < 1 {
				continue
			}
			id = fmt.Sprintf("MAP%02d", n)
		} else {
			id = fmt.Sprintf("E%sM%s", m[2], m[3])
		}
		value := strings.TrimSuffix(strings.TrimSpace(m[4]), `\`)
		name := strings.TrimSpace(dehackedPrefix.ReplaceAllString(value, ""))
		if name == "" {
			continue
		}
		levels[id] = name
	}
	return levels
}

// lines splits text into trimmed lines, tolerating CRLF endings.
func lines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		out = append(out, strings.TrimSpace(l))
	}
	return out
}
