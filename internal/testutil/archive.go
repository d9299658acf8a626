package testutil

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"testing"
)

// Lump is a named payload for BuildWAD.
type Lump struct {
	Name string
	Data []byte
}

// BuildWAD assembles an archive with the given magic. Lump data follows the
// header and the directory is written last, as the engine tools do.
func BuildWAD(magic string, lumps ...Lump) []byte {
	var body bytes.Buffer
	offsets := make([]uint32, len(lumps))
	for i, l := range lumps {
		offsets[i] = uint32(12 + body.Len())
		body.Write(l.Data)
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	binary.Write(&buf, binary.LittleEndian, uint32(len(lumps)))
	binary.Write(&buf, binary.LittleEndian, uint32(12+body.Len()))
	buf.Write(body.Bytes())
	for i, l := range lumps {
		binary.Write(&buf, binary.LittleEndian, offsets[i])
		binary.Write(&buf, binary.LittleEndian, uint32(len(l.Data)))
		var name [8]byte
		copy(name[:], l.Name)
		buf.Write(name[:])
	}
	return buf.Bytes()
}

// ZipEntry is one member for BuildZip, written in order.
type ZipEntry struct {
	Name string
	Data []byte
}

// BuildZip assembles a zip container in memory.
func BuildZip(t *testing.T, entries ...ZipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("creating zip entry %s: %v", e.Name, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			t.Fatalf("writing zip entry %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}
	return buf.Bytes()
}
