package fs

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory pattern file read during discovery.
const IgnoreFileName = ".wadlibignore"

type ignoreRule struct {
	glob    string
	inPath  bool // glob contains '/' and is matched against the relative path
	negated bool // "!glob" re-includes a path excluded by an earlier rule
}

// IgnoreMatcher decides which save files discovery skips. Rules are
// evaluated in order and the last matching rule wins, so a later "!name"
// rule keeps a file an earlier glob excluded.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher parses raw pattern lines. Blank lines and '#' comments are dropped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r := ignoreRule{}
		if strings.HasPrefix(line, "!") {
			r.negated = true
			line = strings.TrimSpace(line[1:])
		}
		if line == "" {
			continue
		}
		r.glob = line
		r.inPath = strings.Contains(line, "/")
		m.rules = append(m.rules, r)
	}
	return m
}

// Match reports whether rel, a path relative to the save directory, is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	slashed := filepath.ToSlash(rel)
	base := filepath.Base(rel)

	ignored := false
	for _, r := range m.rules {
		target := base
		if r.inPath {
			target = slashed
		}
		// filepath.Match only fails on a malformed glob; such rules never match.
		if ok, err := filepath.Match(r.glob, target); err == nil && ok {
			ignored = !r.negated
		}
	}
	return ignored
}

// ParseIgnoreFile returns the raw lines of an ignore file, or nil when the
// file does not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file %s: %w", path, err)
	}
	return lines, nil
}
