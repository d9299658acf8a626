// Package wad reads the directory of IWAD/PWAD content archives.
//
// Layout (all integers little-endian):
//
//	0   magic      [4]byte  "IWAD" or "PWAD"
//	4   numLumps   uint32
//	8   dirOffset  uint32
//	dirOffset + 16*i:
//	    offset uint32, size uint32, name [8]byte (NUL padded)
package wad

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"wadlib/internal/model"
)

const (
	// HeaderSize is the fixed size of the archive header.
	HeaderSize = 12
	// EntrySize is the fixed size of one directory entry.
	EntrySize = 16
	// nameSize is the width of the NUL-padded lump name.
	nameSize = 8
)

// Recognized magic values.
const (
	MagicIWAD = "IWAD"
	MagicPWAD = "PWAD"
)

// Kind distinguishes base game archives from patches.
type Kind int

const (
	KindUnknown Kind = iota
	KindBase         // IWAD
	KindPatch        // PWAD
)

func (k Kind) String() string {
	switch k {
	case KindBase:
		return "iwad"
	case KindPatch:
		return "pwad"
	default:
		return "unknown"
	}
}

// KindOf returns the archive kind for the leading bytes of a file.
func KindOf(head []byte) Kind {
	if len(head) < 4 {
		return KindUnknown
	}
	switch string(head[:4]) {
	case MagicIWAD:
		return KindBase
	case MagicPWAD:
		return KindPatch
	default:
		return KindUnknown
	}
}

// Lump is one named, offset-addressed record of the archive directory.
// Name keeps the case stored in the archive.
type Lump struct {
	Name   string
	Offset uint32
	Size   uint32
}

// Archive is a parsed archive with its backing bytes.
type Archive struct {
	Kind  Kind
	Lumps []Lump
	data  []byte
}

// ReadDirectory parses the directory of an archive held in data.
//
// Entries whose 16 bytes would extend past the buffer end the scan; records
// read so far remain valid. Records whose data range exceeds the buffer are
// treated as truncated and skipped.
func ReadDirectory(data []byte) ([]Lump, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: archive is %d bytes, shorter than header", model.ErrFormat, len(data))
	}
	if KindOf(data) == KindUnknown {
		return nil, fmt.Errorf("%w: bad archive magic %q", model.ErrFormat, data[:4])
	}

	count := binary.LittleEndian.Uint32(data[4:8])
	dirOffset := uint64(binary.LittleEndian.Uint32(data[8:12]))
	size := uint64(len(data))

	var lumps []Lump
	for i := uint64(0); i < uint64(count); i++ {
		pos := dirOffset + EntrySize*i
		if pos+EntrySize > size {
			break
		}
		entry := data[pos : pos+EntrySize]
		l := Lump{
			Offset: binary.LittleEndian.Uint32(entry[0:4]),
			Size:   binary.LittleEndian.Uint32(entry[4:8]),
			Name:   decodeName(entry[8 : 8+nameSize]),
		}
		if uint64(l.Offset)+uint64(l.Size) > size {
			continue
		}
		lumps = append(lumps, l)
	}
	return lumps, nil
}

// Parse reads the directory and keeps data for lump access.
func Parse(data []byte) (*Archive, error) {
	lumps, err := ReadDirectory(data)
	if err != nil {
		return nil, err
	}
	return &Archive{Kind: KindOf(data), Lumps: lumps, data: data}, nil
}

// ReadFile loads and parses the archive at path.
func ReadFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	a, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return a, nil
}

// Data returns the bytes of a lump. The slice aliases the archive buffer.
func (a *Archive) Data(l Lump) []byte {
	return a.data[l.Offset : l.Offset+l.Size]
}

// Find returns lumps whose name matches name case-insensitively, in directory order.
func (a *Archive) Find(name string) []Lump {
	var out []Lump
	for _, l := range a.Lumps {
		if strings.EqualFold(l.Name, name) {
			out = append(out, l)
		}
	}
	return out
}

// decodeName decodes a single-byte encoded lump name truncated at the first NUL.
func decodeName(raw []byte) string {
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
