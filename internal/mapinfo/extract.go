package mapinfo

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"wadlib/internal/model"
	"wadlib/internal/wad"
)

// LumpPriority is the merge order across lumps of one archive: names found in
// an earlier lump are never overwritten by a later one. Lumps of equal
// priority keep their directory order.
var LumpPriority = []string{"MAPINFO", "ZMAPINFO", "EMAPINFO", "UMAPINFO", "DEHACKED"}

// Logger receives warnings about lumps that had to be skipped.
type Logger interface {
	Warn(msg string, args ...any)
}

// Extractor builds LevelNameTables from whole archives.
type Extractor struct {
	logger Logger
}

// NewExtractor creates an Extractor that reports skipped lumps to logger.
func NewExtractor(logger Logger) *Extractor {
	return &Extractor{logger: logger}
}

// textLump is a candidate metadata lump regardless of container.
type textLump struct {
	name     string
	priority int
	data     []byte
}

func priorityOf(name string) (int, bool) {
	for i, p := range LumpPriority {
		if strings.EqualFold(p, name) {
			return i, true
		}
	}
	return 0, false
}

// Extract returns the level names defined in a WAD archive.
func (e *Extractor) Extract(a *wad.Archive) map[string]string {
	var candidates []textLump
	for _, l := range a.Lumps {
		prio, ok := priorityOf(l.Name)
		if !ok || l.Size == 0 {
			continue
		}
		candidates = append(candidates, textLump{name: strings.ToUpper(l.Name), priority: prio, data: a.Data(l)})
	}
	return e.merge(candidates)
}

// ExtractBytes accepts either a WAD or a PK3/ZIP archive.
func (e *Extractor) ExtractBytes(data []byte) (map[string]string, error) {
	if wad.KindOf(data) != wad.KindUnknown {
		a, err := wad.Parse(data)
		if err != nil {
			return nil, err
		}
		return e.Extract(a), nil
	}
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) {
		return e.extractZip(data)
	}
	return nil, fmt.Errorf("%w: not a wad or pk3 archive", model.ErrFormat)
}

// ExtractFile reads the archive at path and extracts its level names.
func (e *Extractor) ExtractFile(p string) (map[string]string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	names, err := e.ExtractBytes(data)
	if err != nil {
		return nil, fmt.Errorf("extracting level names from %s: %w", p, err)
	}
	return names, nil
}

// extractZip treats root-level members named like metadata lumps as lumps and
// merges in any WADs shipped under maps/. Root lumps take precedence.
func (e *Extractor) extractZip(data []byte) (map[string]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrFormat, err)
	}

	var candidates []textLump
	var nested [][]byte
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dir, base := path.Split(f.Name)
		ext := strings.ToLower(path.Ext(base))
		stem := strings.TrimSuffix(base, path.Ext(base))

		switch {
		case dir == "" && (ext == "" || ext == ".txt" || ext == ".lmp"):
			prio, ok := priorityOf(stem)
			if !ok {
				continue
			}
			body, err := readZipFile(f)
			if err != nil {
				e.warn("skipping unreadable archive member", "member", f.Name, "error", err)
				continue
			}
			candidates = append(candidates, textLump{name: strings.ToUpper(stem), priority: prio, data: body})
		case strings.EqualFold(strings.TrimSuffix(dir, "/"), "maps") && ext == ".wad":
			body, err := readZipFile(f)
			if err != nil {
				e.warn("skipping unreadable archive member", "member", f.Name, "error", err)
				continue
			}
			nested = append(nested, body)
		}
	}

	levels := e.merge(candidates)
	for _, body := range nested {
		a, err := wad.Parse(body)
		if err != nil {
			e.warn("skipping embedded map archive", "error", err)
			continue
		}
		for id, name := range e.Extract(a) {
			if _, seen := levels[id]; !seen {
				levels[id] = name
			}
		}
	}
	return levels, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// merge parses candidates in priority order, first writer wins.
func (e *Extractor) merge(candidates []textLump) map[string]string {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority < candidates[j].priority
	})

	levels := make(map[string]string)
	for _, c := range candidates {
		text, err := DecodeText(c.data)
		if err != nil {
			e.warn("skipping undecodable lump", "lump", c.name, "error", err)
			continue
		}
		for id, name := range Parse(c.name, text) {
			if _, seen := levels[id]; !seen {
				levels[id] = name
			}
		}
	}
	return levels
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

// DecodeText decodes a text lump. UTF-8 is used when valid, Windows-1252
// otherwise. Lumps holding NUL bytes before their padding are binary and
// rejected with ErrFormat.
func DecodeText(data []byte) (string, error) {
	data = bytes.TrimRight(data, "\x00")
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: binary data in text lump", model.ErrFormat)
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrFormat, err)
	}
	return string(decoded), nil
}

// SortIDs orders level ids by their first number, then lexically, so MAP02
// sorts before MAP10 and E1M9 before E2M1.
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return LessID(ids[i], ids[j]) })
}

// LessID orders level ids by their first number, then lexically.
func LessID(a, b string) bool {
	na, nb := leadingNumber(a), leadingNumber(b)
	if na != nb {
		return na < nb
	}
	return a < b
}

func leadingNumber(id string) int {
	start := strings.IndexAny(id, "0123456789")
	if start < 0 {
		return 999
	}
	end := start
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(id[start:end])
	if err != nil {
		return 999
	}
	return n
}
