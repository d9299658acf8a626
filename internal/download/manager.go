// Package download installs catalog entries into the library.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"wadlib/internal/catalog"
	"wadlib/internal/library"
	"wadlib/internal/model"
	"wadlib/internal/source"
)

// DefaultProgressInterval is the minimum gap between progress callbacks.
const DefaultProgressInterval = 100 * time.Millisecond

const partSuffix = ".part"

// ProgressFunc receives transfer progress. Calls for one transfer never overlap.
type ProgressFunc func(model.TransferProgress)

// Logger is the subset of structured logging the manager needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Clock stamps DownloadRecords.
type Clock interface {
	Now() time.Time
}

// Catalog resolves slugs to entries.
type Catalog interface {
	Lookup(slug string) (catalog.Entry, bool)
}

// State is the lifecycle position of one slug.
type State int

const (
	StateAbsent State = iota
	StateTransferring
	StateValidating
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateTransferring:
		return "transferring"
	case StateValidating:
		return "validating"
	case StateCommitted:
		return "committed"
	default:
		return "absent"
	}
}

// Manager transfers, validates and commits archives. It is safe for
// concurrent use; concurrent installs of one slug share a single transfer.
// The shared transfer runs until its last waiting caller gives up, and every
// waiting caller receives its progress.
type Manager struct {
	catalog  Catalog
	source   source.Source
	library  *library.Library
	clock    Clock
	logger   Logger
	interval time.Duration

	group singleflight.Group

	mu       sync.Mutex
	inflight map[string]State
	flights  map[string]*flight
	nextSub  int
}

// flight is the caller-side state of one shared transfer.
type flight struct {
	ctx      context.Context
	cancel   context.CancelFunc
	waiters  int
	progress map[int]ProgressFunc
}

// NewManager creates a Manager. A non-positive interval uses DefaultProgressInterval.
func NewManager(cat Catalog, src source.Source, lib *library.Library, clock Clock, logger Logger, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &Manager{
		catalog:  cat,
		source:   src,
		library:  lib,
		clock:    clock,
		logger:   logger,
		interval: interval,
		inflight: make(map[string]State),
		flights:  make(map[string]*flight),
	}
}

// SourceName names the backend archives are fetched from.
func (m *Manager) SourceName() string {
	return m.source.Name()
}

// Install makes slug and its dependencies available locally and returns the
// path of slug's archive. Dependencies are installed first, depth-first.
// Progress for every archive involved is delivered to progress, which may be nil.
func (m *Manager) Install(ctx context.Context, slug string, progress ProgressFunc) (string, error) {
	entry, ok := m.catalog.Lookup(slug)
	if !ok {
		return "", fmt.Errorf("unknown content %q: %w", slug, model.ErrNotFound)
	}
	return m.install(ctx, entry, progress, map[string]bool{})
}

func (m *Manager) install(ctx context.Context, entry catalog.Entry, progress ProgressFunc, visited map[string]bool) (string, error) {
	visited[entry.Slug] = true

	for _, dep := range entry.Dependencies {
		if visited[dep] {
			continue
		}
		depEntry, ok := m.catalog.Lookup(dep)
		if !ok {
			visited[dep] = true
			m.logger.Warn("skipping unknown dependency", "slug", entry.Slug, "dependency", dep)
			continue
		}
		if _, err := m.install(ctx, depEntry, progress, visited); err != nil {
			return "", fmt.Errorf("installing dependency %s of %s: %w", dep, entry.Slug, err)
		}
	}

	for {
		path, retry, err := m.await(ctx, entry, progress)
		if !retry {
			return path, err
		}
	}
}

// await joins or starts the shared transfer of entry and waits for it or for
// ctx. A caller that stops waiting leaves the transfer running for the others;
// the last one to leave cancels it and waits for it to wind down. retry is set
// when the result came from a transfer cancelled by callers that had already
// left.
func (m *Manager) await(ctx context.Context, entry catalog.Entry, progress ProgressFunc) (path string, retry bool, err error) {
	fl, id := m.join(ctx, entry.Slug, progress)
	ch := m.group.DoChan(entry.Slug, func() (any, error) {
		return m.fetch(fl.ctx, entry)
	})

	select {
	case res := <-ch:
		m.leave(entry.Slug, fl, id)
		if res.Shared {
			m.logger.Debug("joined in-flight install", "slug", entry.Slug)
		}
		if res.Err != nil {
			if errors.Is(res.Err, context.Canceled) && ctx.Err() == nil {
				return "", true, nil
			}
			return "", false, res.Err
		}
		return res.Val.(string), false, nil
	case <-ctx.Done():
		if m.leave(entry.Slug, fl, id) {
			<-ch
		}
		return "", false, ctx.Err()
	}
}

// join registers a waiter on slug's flight, creating the flight when there is
// none. The flight's context keeps ctx's values but not its cancellation.
func (m *Manager) join(ctx context.Context, slug string, progress ProgressFunc) (*flight, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fl, ok := m.flights[slug]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel, progress: make(map[int]ProgressFunc)}
		m.flights[slug] = fl
	}
	fl.waiters++
	m.nextSub++
	if progress != nil {
		fl.progress[m.nextSub] = progress
	}
	return fl, m.nextSub
}

// leave drops a waiter and reports whether it was the last one, in which case
// the flight has been cancelled.
func (m *Manager) leave(slug string, fl *flight, id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(fl.progress, id)
	fl.waiters--
	if fl.waiters > 0 {
		return false
	}
	fl.cancel()
	if m.flights[slug] == fl {
		delete(m.flights, slug)
	}
	return true
}

// broadcast delivers p to every caller currently waiting on p.Slug.
func (m *Manager) broadcast(p model.TransferProgress) {
	m.mu.Lock()
	var fns []ProgressFunc
	if fl, ok := m.flights[p.Slug]; ok {
		fns = make([]ProgressFunc, 0, len(fl.progress))
		for _, fn := range fl.progress {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

// State reports where slug is in its lifecycle.
func (m *Manager) State(slug string) State {
	m.mu.Lock()
	st, ok := m.inflight[slug]
	m.mu.Unlock()
	if ok {
		return st
	}

	rec, ok, err := m.library.Record(slug)
	if err != nil || !ok {
		return StateAbsent
	}
	if _, err := os.Stat(m.library.PathFor(rec.Filename)); err != nil {
		return StateAbsent
	}
	return StateCommitted
}

func (m *Manager) setState(slug string, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st == StateAbsent || st == StateCommitted {
		delete(m.inflight, slug)
		return
	}
	m.inflight[slug] = st
}

func (m *Manager) fetch(ctx context.Context, entry catalog.Entry) (string, error) {
	final := m.library.PathFor(entry.Filename)

	rec, ok, err := m.library.Record(entry.Slug)
	if err != nil {
		return "", err
	}
	if ok {
		p := m.library.PathFor(rec.Filename)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
		m.logger.Warn("manifest entry has no file, downloading again", "slug", entry.Slug, "path", p)
	}

	if info, err := os.Stat(final); err == nil && info.Mode().IsRegular() {
		if err := Validate(final, entry.Filename, entry.SHA256); err == nil {
			m.logger.Info("registering existing file", "slug", entry.Slug, "path", final)
			if err := m.commitRecord(entry, final, info.Size()); err != nil {
				return "", err
			}
			return final, nil
		}
		m.logger.Warn("existing file failed validation, downloading again", "slug", entry.Slug, "path", final)
	}

	defer m.setState(entry.Slug, StateAbsent)
	m.setState(entry.Slug, StateTransferring)

	size, err := m.transfer(ctx, entry, final)
	if err != nil {
		return "", err
	}
	if err := m.commitRecord(entry, final, size); err != nil {
		return "", err
	}
	m.logger.Info("installed", "slug", entry.Slug, "path", final, "size", size)
	return final, nil
}

// transfer downloads into <final>.part, validates it and renames it into
// place. The partial file never survives a failed call.
func (m *Manager) transfer(ctx context.Context, entry catalog.Entry, final string) (int64, error) {
	part := final + partSuffix

	var offset int64
	if info, err := os.Stat(part); err == nil && info.Mode().IsRegular() {
		offset = info.Size()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("stat %s: %w", part, err)
	}

	tr, err := m.source.Open(ctx, entry, offset)
	if err != nil {
		return 0, fmt.Errorf("opening %s from %s: %w", entry.Slug, m.source.Name(), err)
	}
	defer tr.Body.Close()

	success := false
	defer func() {
		if !success {
			os.Remove(part)
		}
	}()

	if tr.Offset != 0 && tr.Offset != offset {
		return 0, fmt.Errorf("source resumed %s at %d, requested %d", entry.Slug, tr.Offset, offset)
	}
	if offset > 0 {
		if tr.Offset == 0 {
			m.logger.Info("source restarted transfer", "slug", entry.Slug, "discarded", offset)
		} else {
			m.logger.Info("resuming transfer", "slug", entry.Slug, "offset", offset)
		}
	}

	flag := os.O_CREATE | os.O_WRONLY
	if tr.Offset > 0 {
		flag |= os.O_APPEND
	} else {
		flag |= os.O_TRUNC
	}
	f, err := os.OpenFile(part, flag, 0644)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", part, err)
	}

	size, err := m.copy(ctx, f, tr, entry.Slug)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", part, cerr)
	}
	if err != nil {
		return 0, err
	}

	m.setState(entry.Slug, StateValidating)
	if tr.Total > 0 && size != tr.Total {
		return 0, &model.IntegrityError{
			Path:     part,
			Expected: fmt.Sprintf("%d bytes", tr.Total),
			Actual:   fmt.Sprintf("%d bytes", size),
		}
	}
	if err := Validate(part, entry.Filename, entry.SHA256); err != nil {
		return 0, err
	}

	if err := os.Rename(part, final); err != nil {
		return 0, fmt.Errorf("committing %s: %w", final, err)
	}
	success = true
	return size, nil
}

// copy streams the body into w and returns the total size of the partial
// file. The last progress update is always delivered.
func (m *Manager) copy(ctx context.Context, w io.Writer, tr *source.Transfer, slug string) (int64, error) {
	limiter := rate.NewLimiter(rate.Every(m.interval), 1)
	done := tr.Offset
	report := func() {
		m.broadcast(model.TransferProgress{Slug: slug, BytesTransferred: done, TotalBytes: tr.Total})
	}

	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		n, rerr := tr.Body.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return done, fmt.Errorf("writing %s: %w", slug, err)
			}
			done += int64(n)
			if limiter.Allow() {
				report()
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return done, fmt.Errorf("transferring %s: %w", slug, rerr)
		}
	}

	report()
	return done, nil
}

func (m *Manager) commitRecord(entry catalog.Entry, final string, size int64) error {
	err := m.library.Upsert(model.DownloadRecord{
		Slug:         entry.Slug,
		Filename:     entry.Filename,
		DownloadedAt: m.clock.Now().UTC(),
		Size:         size,
	})
	if err != nil {
		return fmt.Errorf("recording %s in manifest: %w", final, err)
	}
	return nil
}

// Remove deletes slug's archive, any leftover partial file and its manifest
// record.
func (m *Manager) Remove(slug string) error {
	rec, ok, err := m.library.Record(slug)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s is not installed: %w", slug, model.ErrNotFound)
	}

	p := m.library.PathFor(rec.Filename)
	for _, f := range []string{p, p + partSuffix} {
		if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing %s: %w", f, err)
		}
	}
	if err := m.library.Delete(slug); err != nil {
		return fmt.Errorf("removing %s from manifest: %w", slug, err)
	}
	m.logger.Info("removed", "slug", slug, "path", p)
	return nil
}
