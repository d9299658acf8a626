// Package library persists what is installed and what has been played.
//
// Layout under the data directory:
//
//	<data>/
//	  library.json               (manifest of installed archives)
//	  library.lock               (cross-process manifest lock)
//	  levels/<slug>.json         (cached level-name tables)
//	  sessions/<slug>/<ts>.json  (captured play sessions)
//	  logs/<slug>/<ts>.json      (classified console transcripts)
//	  saves/<slug>/              (engine -savedir for sessions started here)
//
// Archives themselves live flat in the wad directory.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	manifestName = "library.json"
	lockName     = "library.lock"
	levelsDir    = "levels"
	sessionsDir  = "sessions"
	logsDir      = "logs"
	savesDir     = "saves"
)

// Library is safe for concurrent use. Manifest mutations are serialized
// within the process by a mutex and across processes by a file lock.
type Library struct {
	wadDir  string
	dataDir string
	logger  Logger

	mu   sync.Mutex
	lock *flock.Flock
}

// New creates the directory structure and returns a Library.
func New(wadDir, dataDir string) (*Library, error) {
	for _, dir := range []string{
		wadDir,
		dataDir,
		filepath.Join(dataDir, levelsDir),
		filepath.Join(dataDir, sessionsDir),
		filepath.Join(dataDir, logsDir),
		filepath.Join(dataDir, savesDir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create library directory: %w", err)
		}
	}

	return &Library{
		wadDir:  wadDir,
		dataDir: dataDir,
		logger:  nopLogger{},
		lock:    flock.New(filepath.Join(dataDir, lockName)),
	}, nil
}

// Logger receives warnings about manifest entries that cannot be read.
type Logger interface {
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// SetLogger replaces the default logger, which discards everything. Call it
// before the Library is shared.
func (l *Library) SetLogger(logger Logger) {
	if logger == nil {
		logger = nopLogger{}
	}
	l.logger = logger
}

// WadDir is where archives are stored.
func (l *Library) WadDir() string { return l.wadDir }

// DataDir is the root of the persisted records.
func (l *Library) DataDir() string { return l.dataDir }

// PathFor returns the final location of an archive file.
func (l *Library) PathFor(filename string) string {
	return filepath.Join(l.wadDir, filepath.Base(filename))
}

// SaveDir is the directory the engine writes slug's saves to when launched
// by wadlib. Every save found there belongs to slug. The directory is not
// created here.
func (l *Library) SaveDir(slug string) string {
	return filepath.Join(l.dataDir, savesDir, filepath.Base(slug))
}

// timestampName formats t as RFC3339 with ':' replaced so it is a valid
// file name everywhere.
func timestampName(t time.Time) string {
	return strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-") + ".json"
}

// writeFileAtomic writes data to a temp file in the destination directory
// and renames it into place.
func writeFileAtomic(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
