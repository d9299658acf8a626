package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewIgnoreMatcher(t *testing.T) {
	t.Run("skips blank lines and comments", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"", "  ", "# comment", "!", "*.bak"})
		if len(m.rules) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(m.rules))
		}
		if m.rules[0].glob != "*.bak" {
			t.Errorf("expected *.bak, got %s", m.rules[0].glob)
		}
	})

	t.Run("classifies path, basename and negated rules", func(t *testing.T) {
		t.Parallel()
		m := NewIgnoreMatcher([]string{"*.bak", "doom2/quick*", "!keep.zds"})
		if m.rules[0].inPath {
			t.Error("*.bak should not be a path rule")
		}
		if !m.rules[1].inPath {
			t.Error("doom2/quick* should be a path rule")
		}
		if !m.rules[2].negated || m.rules[2].glob != "keep.zds" {
			t.Errorf("!keep.zds parsed as %+v", m.rules[2])
		}
	})
}

func TestIgnoreMatcher_Match(t *testing.T) {
	tests := []struct {
		name         string
		patterns     []string
		relativePath string
		want         bool
	}{
		{
			name:         "basename glob matches file in root",
			patterns:     []string{"*.bak"},
			relativePath: "save1.bak",
			want:         true,
		},
		{
			name:         "basename glob matches file in subdirectory",
			patterns:     []string{"*.bak"},
			relativePath: filepath.Join("sub", "save1.bak"),
			want:         true,
		},
		{
			name:         "basename glob does not match different extension",
			patterns:     []string{"*.bak"},
			relativePath: "save1.zds",
			want:         false,
		},
		{
			name:         "exact basename match",
			patterns:     []string{"autosave1.zds"},
			relativePath: "autosave1.zds",
			want:         true,
		},
		{
			name:         "exact basename matches in subdirectory",
			patterns:     []string{".DS_Store"},
			relativePath: filepath.Join("sub", ".DS_Store"),
			want:         true,
		},
		{
			name:         "path pattern matches exact relative path",
			patterns:     []string{"doom2/quicksave.zds"},
			relativePath: filepath.Join("doom2", "quicksave.zds"),
			want:         true,
		},
		{
			name:         "path pattern does not match wrong path",
			patterns:     []string{"doom2/quicksave.zds"},
			relativePath: filepath.Join("plutonia", "quicksave.zds"),
			want:         false,
		},
		{
			name:         "path pattern with glob",
			patterns:     []string{"doom2/auto*"},
			relativePath: filepath.Join("doom2", "autosave3.zds"),
			want:         true,
		},
		{
			name:         "question mark wildcard",
			patterns:     []string{"save?.zds"},
			relativePath: "save1.zds",
			want:         true,
		},
		{
			name:         "question mark does not match multiple chars",
			patterns:     []string{"save?.zds"},
			relativePath: "save12.zds",
			want:         false,
		},
		{
			name:         "character class",
			patterns:     []string{"*.[tb][ma][pk]"},
			relativePath: "save1.bak",
			want:         true,
		},
		{
			name:         "no patterns matches nothing",
			patterns:     nil,
			relativePath: "save1.zds",
			want:         false,
		},
		{
			name:         "empty string path",
			patterns:     []string{"*.bak"},
			relativePath: "",
			want:         false,
		},
		{
			name:         "multiple patterns first matches",
			patterns:     []string{"*.bak", "*.tmp"},
			relativePath: "save1.bak",
			want:         true,
		},
		{
			name:         "negation re-includes a file",
			patterns:     []string{"auto*", "!autosave0.zds"},
			relativePath: "autosave0.zds",
			want:         false,
		},
		{
			name:         "negation leaves other matches ignored",
			patterns:     []string{"auto*", "!autosave0.zds"},
			relativePath: "autosave1.zds",
			want:         true,
		},
		{
			name:         "later rule overrides negation",
			patterns:     []string{"!autosave0.zds", "auto*"},
			relativePath: "autosave0.zds",
			want:         true,
		},
		{
			name:         "malformed glob never matches",
			patterns:     []string{"save[.zds"},
			relativePath: "save[.zds",
			want:         false,
		},
		{
			name:         "multiple patterns second matches",
			patterns:     []string{"*.bak", "*.tmp"},
			relativePath: "data.tmp",
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewIgnoreMatcher(tt.patterns)
			got := m.Match(tt.relativePath)
			if got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.relativePath, got, tt.want)
			}
		})
	}
}

func TestParseIgnoreFile(t *testing.T) {
	t.Run("reads patterns from file", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, IgnoreFileName)
		content := "auto*\n# comment\n\n*.tmp\ndoom2/quick*\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("writing test file: %v", err)
		}

		patterns, err := ParseIgnoreFile(path)
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if len(patterns) != 5 {
			t.Fatalf("expected 5 raw lines, got %d", len(patterns))
		}

		// Verify the matcher filters correctly
		m := NewIgnoreMatcher(patterns)
		if len(m.rules) != 3 {
			t.Errorf("expected 3 parsed rules, got %d", len(m.rules))
		}
	})

	t.Run("returns nil for missing file", func(t *testing.T) {
		t.Parallel()
		patterns, err := ParseIgnoreFile(filepath.Join("/nonexistent", IgnoreFileName))
		if err != nil {
			t.Fatalf("ParseIgnoreFile() error = %v", err)
		}
		if patterns != nil {
			t.Errorf("expected nil patterns, got %v", patterns)
		}
	})
}
