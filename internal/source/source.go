// Package source provides the backends archives are transferred from.
package source

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"wadlib/internal/catalog"
)

// Transfer is an open download stream.
type Transfer struct {
	Body io.ReadCloser
	// Offset is the position Body starts at. It is 0 when the backend ignored
	// a resume request and restarted from the beginning.
	Offset int64
	// Total is the full object size, or 0 when the backend does not say.
	Total int64
}

// Source opens transfers for catalog entries.
type Source interface {
	// Open starts reading entry at offset. Implementations that cannot seek
	// return a Transfer with Offset 0. Missing objects wrap model.ErrNotFound.
	Open(ctx context.Context, entry catalog.Entry, offset int64) (*Transfer, error)
	Name() string
}

func rangeHeader(offset int64) string {
	return fmt.Sprintf("bytes=%d-", offset)
}

// parseContentRange reads "bytes <start>-<end>/<total>". total is 0 when the
// server sends "*".
func parseContentRange(v string) (start, total int64, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(v), "bytes ")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported content range %q", v)
	}
	span, size, ok := strings.Cut(rest, "/")
	if !ok {
		return 0, 0, fmt.Errorf("malformed content range %q", v)
	}
	first, _, ok := strings.Cut(span, "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed content range %q", v)
	}
	start, err = strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed content range %q: %w", v, err)
	}
	if size == "*" {
		return start, 0, nil
	}
	total, err = strconv.ParseInt(size, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed content range %q: %w", v, err)
	}
	return start, total, nil
}
