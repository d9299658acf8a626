// Package catalog loads the list of installable content.
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var entrySchema string

const schemaURL = "wadlib://catalog-entry.json"

// Entry describes one installable archive.
type Entry struct {
	Slug         string   `json:"slug"`
	Title        string   `json:"title,omitempty"`
	Filename     string   `json:"filename"`
	URL          string   `json:"url,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	IWAD         string   `json:"iwad,omitempty"`
	SHA256       string   `json:"sha256,omitempty"`
}

// Logger receives warnings about skipped entries.
type Logger interface {
	Warn(msg string, args ...any)
}

// Catalog is an immutable, slug-indexed set of entries.
type Catalog struct {
	entries []Entry
	bySlug  map[string]int
}

// New builds a catalog from entries. Later duplicates of a slug are ignored.
func New(entries ...Entry) *Catalog {
	c := &Catalog{bySlug: make(map[string]int, len(entries))}
	for _, e := range entries {
		c.add(e)
	}
	return c
}

func (c *Catalog) add(e Entry) bool {
	if _, dup := c.bySlug[e.Slug]; dup {
		return false
	}
	c.bySlug[e.Slug] = len(c.entries)
	c.entries = append(c.entries, e)
	return true
}

// Lookup returns the entry for slug.
func (c *Catalog) Lookup(slug string) (Entry, bool) {
	i, ok := c.bySlug[slug]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns all entries in file order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(entrySchema)); err != nil {
		return nil, fmt.Errorf("adding catalog schema: %w", err)
	}
	return c.Compile(schemaURL)
}

// LoadFile reads a catalog file from disk.
func LoadFile(path string, logger Logger) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load parses a catalog document, either {"wads": [...]} or a bare array.
// Entries that fail schema validation are logged and skipped.
func Load(r io.Reader, logger Logger) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	raw, err := rawEntries(data)
	if err != nil {
		return nil, err
	}

	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	c := New()
	for i, msg := range raw {
		var doc any
		if err := json.Unmarshal(msg, &doc); err != nil {
			logger.Warn("skipping catalog entry", "index", i, "error", err)
			continue
		}
		if err := schema.Validate(doc); err != nil {
			logger.Warn("skipping invalid catalog entry", "index", i, "error", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(msg, &e); err != nil {
			logger.Warn("skipping catalog entry", "index", i, "error", err)
			continue
		}
		if !c.add(e) {
			logger.Warn("skipping duplicate catalog entry", "slug", e.Slug)
		}
	}
	return c, nil
}

func rawEntries(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decoding catalog: %w", err)
		}
		return list, nil
	}

	var doc struct {
		Wads []json.RawMessage `json:"wads"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return doc.Wads, nil
}
