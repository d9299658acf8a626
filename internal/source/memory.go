package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"wadlib/internal/catalog"
	"wadlib/internal/model"
)

// MemorySource serves archives from memory, keyed by filename. It is safe for
// concurrent use and counts Open calls, which makes it useful for testing.
type MemorySource struct {
	name    string
	mu      sync.RWMutex
	files   map[string][]byte
	opens   map[string]int
	noRange bool
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource(name string) *MemorySource {
	return &MemorySource{
		name:  name,
		files: make(map[string][]byte),
		opens: make(map[string]int),
	}
}

func (m *MemorySource) Name() string { return m.name }

// Put stores data under filename, replacing any previous content.
func (m *MemorySource) Put(filename string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filename] = bytes.Clone(data)
}

// DisableRanges makes Open ignore offsets, like a server without range support.
func (m *MemorySource) DisableRanges() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noRange = true
}

// Opens returns how many times filename has been opened.
func (m *MemorySource) Opens(filename string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opens[filename]
}

// Open returns a reader over the stored bytes starting at offset.
func (m *MemorySource) Open(_ context.Context, entry catalog.Entry, offset int64) (*Transfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[entry.Filename]
	if !ok {
		return nil, fmt.Errorf("memory source %s: %s: %w", m.name, entry.Filename, model.ErrNotFound)
	}
	m.opens[entry.Filename]++

	if m.noRange || offset > int64(len(data)) {
		offset = 0
	}
	return &Transfer{
		Body:   io.NopCloser(bytes.NewReader(data[offset:])),
		Offset: offset,
		Total:  int64(len(data)),
	}, nil
}

// Compile-time check that MemorySource implements Source
var _ Source = (*MemorySource)(nil)
