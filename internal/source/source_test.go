package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"wadlib/internal/catalog"
	"wadlib/internal/config"
	"wadlib/internal/model"
)

const payload = "PWAD0123456789abcdef"

func readAll(t *testing.T, tr *Transfer) string {
	t.Helper()
	defer tr.Body.Close()
	data, err := io.ReadAll(tr.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return string(data)
}

// rangeServer serves payload at /files/<name>, honouring "bytes=N-" ranges
// unless ranges is false.
func rangeServer(t *testing.T, ranges bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/files/") {
			http.NotFound(w, r)
			return
		}
		rng := r.Header.Get("Range")
		if !ranges || rng == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			io.WriteString(w, payload)
			return
		}
		start, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-"))
		if err != nil {
			http.Error(w, "bad range", http.StatusBadRequest)
			return
		}
		if start >= len(payload) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(payload)-1, len(payload)))
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, payload[start:])
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPSource_Open(t *testing.T) {
	tests := []struct {
		name       string
		ranges     bool
		offset     int64
		wantOffset int64
		wantBody   string
	}{
		{name: "full download", ranges: true, offset: 0, wantOffset: 0, wantBody: payload},
		{name: "resume", ranges: true, offset: 4, wantOffset: 4, wantBody: payload[4:]},
		{name: "server ignores range", ranges: false, offset: 4, wantOffset: 0, wantBody: payload},
		{name: "range past end restarts", ranges: true, offset: int64(len(payload)), wantOffset: 0, wantBody: payload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rangeServer(t, tt.ranges)
			src := NewHTTPSource("test", srv.URL+"/files/", srv.Client())

			tr, err := src.Open(context.Background(), catalog.Entry{Slug: "a", Filename: "a.wad"}, tt.offset)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if tr.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", tr.Offset, tt.wantOffset)
			}
			if tr.Total != int64(len(payload)) {
				t.Errorf("Total = %d, want %d", tr.Total, len(payload))
			}
			if got := readAll(t, tr); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
		})
	}
}

func TestHTTPSource_EntryURL(t *testing.T) {
	srv := rangeServer(t, true)
	src := NewHTTPSource("test", "", srv.Client())

	tr, err := src.Open(context.Background(), catalog.Entry{Slug: "a", Filename: "ignored.wad", URL: srv.URL + "/files/x"}, 0)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := readAll(t, tr); got != payload {
		t.Errorf("body = %q, want %q", got, payload)
	}

	if _, err := src.Open(context.Background(), catalog.Entry{Slug: "b", Filename: "b.wad"}, 0); err == nil {
		t.Error("Open() without url or base url returned nil error")
	}
}

func TestHTTPSource_NotFound(t *testing.T) {
	srv := rangeServer(t, true)
	src := NewHTTPSource("test", srv.URL+"/missing", srv.Client())

	_, err := src.Open(context.Background(), catalog.Entry{Slug: "a", Filename: "a.wad"}, 0)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestHTTPSource_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	src := NewHTTPSource("test", srv.URL, srv.Client())
	_, err := src.Open(context.Background(), catalog.Entry{Slug: "a", Filename: "a.wad"}, 0)
	if err == nil {
		t.Fatal("Open() error = nil, want error")
	}
	if errors.Is(err, model.ErrNotFound) {
		t.Error("server error reported as ErrNotFound")
	}
}

func TestHTTPSource_UserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	src := NewHTTPSource("test", srv.URL, srv.Client()).WithUserAgent("wadlib-test")
	tr, err := src.Open(context.Background(), catalog.Entry{Slug: "a", Filename: "a.wad"}, 0)
	if err != nil {
		t.Fatal(err)
	}
	readAll(t, tr)
	if got != "wadlib-test" {
		t.Errorf("User-Agent = %q, want wadlib-test", got)
	}
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		in        string
		wantStart int64
		wantTotal int64
		wantErr   bool
	}{
		{in: "bytes 0-99/100", wantStart: 0, wantTotal: 100},
		{in: "bytes 50-99/100", wantStart: 50, wantTotal: 100},
		{in: "bytes 50-99/*", wantStart: 50, wantTotal: 0},
		{in: "items 0-1/2", wantErr: true},
		{in: "bytes 50-99", wantErr: true},
		{in: "bytes x-99/100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, total, err := parseContentRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseContentRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if start != tt.wantStart || total != tt.wantTotal {
				t.Errorf("parseContentRange() = (%d, %d), want (%d, %d)", start, total, tt.wantStart, tt.wantTotal)
			}
		})
	}
}

func TestFileSystemSource_Open(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.wad"), []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := NewFileSystemSource("mirror", root)
	if err != nil {
		t.Fatalf("NewFileSystemSource() error = %v", err)
	}

	tr, err := src.Open(context.Background(), catalog.Entry{Slug: "a", Filename: "a.wad"}, 6)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if tr.Offset != 6 || tr.Total != int64(len(payload)) {
		t.Errorf("Transfer = {Offset: %d, Total: %d}", tr.Offset, tr.Total)
	}
	if got := readAll(t, tr); got != payload[6:] {
		t.Errorf("body = %q, want %q", got, payload[6:])
	}

	_, err = src.Open(context.Background(), catalog.Entry{Slug: "b", Filename: "b.wad"}, 0)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewFileSystemSource_NotADirectory(t *testing.T) {
	p := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSystemSource("mirror", p); err == nil {
		t.Error("NewFileSystemSource() on a file returned nil error")
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource("mem")
	src.Put("a.wad", []byte(payload))
	entry := catalog.Entry{Slug: "a", Filename: "a.wad"}

	tr, err := src.Open(context.Background(), entry, 4)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got := readAll(t, tr); got != payload[4:] {
		t.Errorf("body = %q, want %q", got, payload[4:])
	}

	src.DisableRanges()
	tr, err = src.Open(context.Background(), entry, 4)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if tr.Offset != 0 {
		t.Errorf("Offset = %d with ranges disabled, want 0", tr.Offset)
	}
	readAll(t, tr)

	if n := src.Opens("a.wad"); n != 2 {
		t.Errorf("Opens() = %d, want 2", n)
	}

	if _, err := src.Open(context.Background(), catalog.Entry{Filename: "nope.wad"}, 0); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
	}
}

func TestNewSourceFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.SourceConfig
		wantErr bool
	}{
		{name: "memory source", cfg: config.SourceConfig{Type: "memory", Name: "mem"}},
		{name: "http source", cfg: config.SourceConfig{Type: "http", Name: "web", HTTPBaseURL: "https://example.com/wads"}},
		{name: "filesystem source", cfg: config.SourceConfig{Type: "filesystem", Name: "fs", FSRoot: t.TempDir()}},
		{name: "filesystem source without root", cfg: config.SourceConfig{Type: "filesystem", Name: "fs"}, wantErr: true},
		{name: "s3 source without bucket", cfg: config.SourceConfig{Type: "s3", Name: "s3"}, wantErr: true},
		{name: "unknown source type", cfg: config.SourceConfig{Type: "ftp", Name: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSourceFromConfig(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSourceFromConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Name() != tt.cfg.Name {
				t.Errorf("Name() = %q, want %q", got.Name(), tt.cfg.Name)
			}
		})
	}
}
